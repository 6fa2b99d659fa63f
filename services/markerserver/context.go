package markerserver

import (
	"time"

	"markerhub/internal/marker"
)

// FeedbackFunc handles one inbound observer event. Handlers run
// synchronously inside ProcessFeedback with no server lock held, so they may
// call back into the staging API.
type FeedbackFunc func(marker.Feedback)

type updateKind int

const (
	fullReplace updateKind = iota
	poseOnly
	eraseMarker
)

// markerContext is the authoritative, already-published state of one marker
// plus its registered feedback handlers and last-feedback bookkeeping.
type markerContext struct {
	def marker.Definition

	lastFeedback time.Time
	lastClientID string

	defaultFeedbackCB FeedbackFunc
	feedbackCBs       map[uint8]FeedbackFunc
}

// pendingUpdate is one staged, not-yet-published change to a marker. For
// poseOnly entries only def.Pose and def.Header are meaningful.
type pendingUpdate struct {
	kind updateKind
	def  marker.Definition

	defaultFeedbackCB FeedbackFunc
	feedbackCBs       map[uint8]FeedbackFunc
}

func newPendingUpdate(kind updateKind) *pendingUpdate {
	return &pendingUpdate{
		kind:        kind,
		feedbackCBs: make(map[uint8]FeedbackFunc),
	}
}

func copyCallbacks(cbs map[uint8]FeedbackFunc) map[uint8]FeedbackFunc {
	out := make(map[uint8]FeedbackFunc, len(cbs))
	for eventType, cb := range cbs {
		out[eventType] = cb
	}
	return out
}
