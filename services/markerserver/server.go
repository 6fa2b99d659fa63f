// Package markerserver maintains the registry of named markers shared with
// remote observers and synchronizes it through ordered diffs: staged changes
// are coalesced per marker in a pending buffer and committed by ApplyChanges,
// which publishes exactly one diff per non-empty flush.
package markerserver

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"markerhub/internal/marker"
)

// Publisher is the transport collaborator diffs are handed to. markerbus.Bus
// implements it; tests substitute a capture.
type Publisher interface {
	PublishUpdate(ctx context.Context, update marker.Update) error
}

// Server owns two independently guarded maps: the registry of published
// marker contexts and the pending buffer of staged updates. Lock order is
// contextsMu before pendingMu whenever both are held.
type Server struct {
	namespace string
	pub       Publisher

	contextsMu sync.Mutex
	contexts   map[string]*markerContext

	pendingMu sync.Mutex
	pending   map[string]*pendingUpdate

	seq atomic.Uint64
}

func NewServer(namespace string, pub Publisher) *Server {
	return &Server{
		namespace: namespace,
		pub:       pub,
		contexts:  make(map[string]*markerContext),
		pending:   make(map[string]*pendingUpdate),
	}
}

// Namespace returns the scene namespace the server publishes under.
func (s *Server) Namespace() string {
	return s.namespace
}

// Insert stages a full (re)definition of a marker. Any previously staged
// update for the same name is replaced wholesale, including handler changes
// staged alongside it. Takes effect on the next ApplyChanges.
func (s *Server) Insert(def marker.Definition) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	update := newPendingUpdate(fullReplace)
	update.def = def.Clone()
	s.pending[def.Name] = update
}

// InsertWithCallback stages the definition and registers a feedback handler
// for the given event type in one call.
func (s *Server) InsertWithCallback(def marker.Definition, cb FeedbackFunc, eventType uint8) {
	s.Insert(def)
	s.SetCallback(def.Name, cb, eventType)
}

// SetCallback registers (cb non-nil) or removes (cb nil) a feedback handler
// for the marker. eventType marker.DefaultFeedbackType addresses the default
// handler, which fires for events with no type-specific handler. The change
// lands on whichever of the context and the pending update exist, so handlers
// set before a flush survive the commit. Reports false if the marker is
// entirely unknown.
func (s *Server) SetCallback(name string, cb FeedbackFunc, eventType uint8) bool {
	s.contextsMu.Lock()
	defer s.contextsMu.Unlock()
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	mc := s.contexts[name]
	pu := s.pending[name]
	if mc == nil && pu == nil {
		return false
	}

	if mc != nil {
		if eventType == marker.DefaultFeedbackType {
			mc.defaultFeedbackCB = cb
		} else if cb != nil {
			mc.feedbackCBs[eventType] = cb
		} else {
			delete(mc.feedbackCBs, eventType)
		}
	}
	if pu != nil {
		if eventType == marker.DefaultFeedbackType {
			pu.defaultFeedbackCB = cb
		} else if cb != nil {
			pu.feedbackCBs[eventType] = cb
		} else {
			delete(pu.feedbackCBs, eventType)
		}
	}
	return true
}

// SetPose stages a pose-only update. header nil defaults to the published
// context's header, or the staged update's header if the marker only exists
// in the pending buffer. Reports false if the marker is entirely unknown.
func (s *Server) SetPose(name string, pose marker.Pose, header *marker.Header) bool {
	s.contextsMu.Lock()
	defer s.contextsMu.Unlock()
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	mc := s.contexts[name]
	pu := s.pending[name]
	if mc == nil && pu == nil {
		return false
	}

	var newHeader marker.Header
	switch {
	case header != nil:
		newHeader = *header
	case mc != nil:
		newHeader = mc.def.Header
	default:
		newHeader = pu.def.Header
	}

	if pu == nil {
		pu = newPendingUpdate(poseOnly)
		pu.def.Name = name
		s.pending[name] = pu
	}
	pu.def.Pose = pose
	pu.def.Header = newHeader
	pu.kind = poseOnly
	return true
}

// Erase stages removal of a marker, replacing any other staged update for
// it. Reports false if the marker is entirely unknown.
func (s *Server) Erase(name string) bool {
	s.contextsMu.Lock()
	defer s.contextsMu.Unlock()
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if s.contexts[name] == nil && s.pending[name] == nil {
		return false
	}
	s.pending[name] = newPendingUpdate(eraseMarker)
	return true
}

// Clear discards the pending buffer and stages an erase for every published
// marker.
func (s *Server) Clear() {
	s.contextsMu.Lock()
	defer s.contextsMu.Unlock()
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	s.pending = make(map[string]*pendingUpdate)
	for name := range s.contexts {
		s.pending[name] = newPendingUpdate(eraseMarker)
	}
}

// Empty reports whether the registry holds no published markers.
func (s *Server) Empty() bool {
	return s.Size() == 0
}

// Size returns the number of published markers. Staged inserts do not count
// until they are flushed.
func (s *Server) Size() int {
	s.contextsMu.Lock()
	defer s.contextsMu.Unlock()
	return len(s.contexts)
}

// ApplyChanges commits every staged update into the registry and publishes a
// single diff carrying the next sequence number. An empty pending buffer is
// a no-op and does not advance the sequence. The publish happens while the
// locks are still held so diffs reach the channel in sequence order.
func (s *Server) ApplyChanges(ctx context.Context) error {
	s.contextsMu.Lock()
	defer s.contextsMu.Unlock()
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	update := marker.Update{
		Namespace: s.namespace,
		Type:      marker.UpdateDiff,
		Markers:   []marker.Definition{},
		Poses:     []marker.PoseStamped{},
		Erases:    []string{},
	}

	for name, pu := range s.pending {
		switch pu.kind {
		case fullReplace:
			mc := s.contexts[name]
			if mc == nil {
				mc = &markerContext{lastFeedback: time.Now()}
				s.contexts[name] = mc
			}
			mc.def = pu.def
			mc.defaultFeedbackCB = pu.defaultFeedbackCB
			mc.feedbackCBs = copyCallbacks(pu.feedbackCBs)
			update.Markers = append(update.Markers, mc.def.Clone())
		case poseOnly:
			mc := s.contexts[name]
			if mc == nil {
				log.Printf("Pending pose update for non-existing marker %q, dropping", name)
				continue
			}
			mc.def.Pose = pu.def.Pose
			mc.def.Header = pu.def.Header
			update.Poses = append(update.Poses, marker.PoseStamped{
				Name:   name,
				Header: mc.def.Header,
				Pose:   mc.def.Pose,
			})
		case eraseMarker:
			delete(s.contexts, name)
			update.Erases = append(update.Erases, name)
		}
	}
	s.pending = make(map[string]*pendingUpdate)

	if len(update.Markers) == 0 && len(update.Poses) == 0 && len(update.Erases) == 0 {
		return nil
	}

	update.SeqNum = s.seq.Add(1)
	if err := s.pub.PublishUpdate(ctx, update); err != nil {
		return fmt.Errorf("publish update seq=%d: %w", update.SeqNum, err)
	}
	return nil
}

// ProcessFeedback routes one inbound observer event: updates the marker's
// feedback bookkeeping, stages a pose update for pose events, and invokes the
// matching handler (type-specific first, default otherwise). Events for
// unknown markers are logged and dropped. The handler runs with no lock held.
func (s *Server) ProcessFeedback(fb marker.Feedback) {
	s.contextsMu.Lock()
	mc := s.contexts[fb.MarkerName]
	if mc == nil {
		s.contextsMu.Unlock()
		log.Printf("Received feedback for unknown marker %q, ignoring", fb.MarkerName)
		return
	}
	mc.lastFeedback = time.Now()
	mc.lastClientID = fb.ClientID
	cb := mc.feedbackCBs[fb.EventType]
	if cb == nil {
		cb = mc.defaultFeedbackCB
	}
	s.contextsMu.Unlock()

	if fb.EventType == marker.FeedbackPoseUpdate {
		s.pendingMu.Lock()
		pu := s.pending[fb.MarkerName]
		if pu == nil {
			pu = newPendingUpdate(poseOnly)
			pu.def.Name = fb.MarkerName
			s.pending[fb.MarkerName] = pu
		}
		pu.def.Pose = fb.Pose
		pu.def.Header = fb.Header
		pu.kind = poseOnly
		s.pendingMu.Unlock()
	}

	if cb != nil {
		cb(fb)
	}
}

// Get returns the effective current definition of a marker, reflecting any
// staged update that has not been flushed yet.
func (s *Server) Get(name string) (marker.Definition, bool) {
	s.contextsMu.Lock()
	defer s.contextsMu.Unlock()
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if pu := s.pending[name]; pu != nil {
		switch pu.kind {
		case eraseMarker:
			return marker.Definition{}, false
		case fullReplace:
			return pu.def.Clone(), true
		case poseOnly:
			mc := s.contexts[name]
			if mc == nil {
				return marker.Definition{}, false
			}
			def := mc.def.Clone()
			def.Pose = pu.def.Pose
			def.Header = pu.def.Header
			return def, true
		}
	}
	if mc := s.contexts[name]; mc != nil {
		return mc.def.Clone(), true
	}
	return marker.Definition{}, false
}

// LastFeedback returns when the marker last received feedback and from which
// client. ok is false for unknown markers.
func (s *Server) LastFeedback(name string) (clientID string, at time.Time, ok bool) {
	s.contextsMu.Lock()
	defer s.contextsMu.Unlock()

	mc := s.contexts[name]
	if mc == nil {
		return "", time.Time{}, false
	}
	return mc.lastClientID, mc.lastFeedback, true
}

// Snapshot returns the current sequence number and every published marker
// definition, sorted by name. Staged, unflushed updates are not included.
func (s *Server) Snapshot() (uint64, []marker.Definition) {
	s.contextsMu.Lock()
	defer s.contextsMu.Unlock()

	defs := make([]marker.Definition, 0, len(s.contexts))
	for _, mc := range s.contexts {
		defs = append(defs, mc.def.Clone())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return s.seq.Load(), defs
}
