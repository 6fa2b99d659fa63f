package markerserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markerhub/internal/marker"
)

// capturePublisher records every published diff instead of touching Kafka.
type capturePublisher struct {
	updates []marker.Update
	err     error
}

func (p *capturePublisher) PublishUpdate(_ context.Context, update marker.Update) error {
	if p.err != nil {
		return p.err
	}
	p.updates = append(p.updates, update)
	return nil
}

func newTestServer() (*Server, *capturePublisher) {
	pub := &capturePublisher{}
	return NewServer("test_scene", pub), pub
}

func boxDef(name string) marker.Definition {
	return marker.Definition{
		Name:        name,
		Description: "test box",
		Header:      marker.Header{FrameID: "base_link"},
		Pose:        marker.IdentityPose(),
		Scale:       1,
		Controls: []marker.Control{{
			AlwaysVisible: true,
			Shapes: []marker.Shape{{
				Type:  marker.ShapeCube,
				Scale: marker.Uniform(0.45),
				Color: marker.Color{G: 0.5, B: 0.5, A: 1},
			}},
		}},
	}
}

func poseAt(x, y, z float64) marker.Pose {
	return marker.Pose{
		Position:    marker.Point{X: x, Y: y, Z: z},
		Orientation: marker.IdentityQuaternion(),
	}
}

func TestInsertApplyGet(t *testing.T) {
	s, pub := newTestServer()
	def := boxDef("my_marker")

	s.Insert(def)
	assert.Equal(t, 0, s.Size(), "staged insert must not count before flush")

	require.NoError(t, s.ApplyChanges(context.Background()))
	require.Len(t, pub.updates, 1)

	update := pub.updates[0]
	assert.Equal(t, uint64(1), update.SeqNum)
	assert.Equal(t, "test_scene", update.Namespace)
	assert.Equal(t, marker.UpdateDiff, update.Type)
	require.Len(t, update.Markers, 1)
	assert.Equal(t, def, update.Markers[0])
	assert.Empty(t, update.Poses)
	assert.Empty(t, update.Erases)

	got, ok := s.Get("my_marker")
	require.True(t, ok)
	assert.Equal(t, def, got)
	assert.Equal(t, 1, s.Size())
	assert.False(t, s.Empty())
}

func TestApplyChangesEmptyBufferEmitsNothing(t *testing.T) {
	s, pub := newTestServer()

	require.NoError(t, s.ApplyChanges(context.Background()))
	assert.Empty(t, pub.updates)

	// The sequence number must not have advanced on the empty flush.
	s.Insert(boxDef("a"))
	require.NoError(t, s.ApplyChanges(context.Background()))
	require.Len(t, pub.updates, 1)
	assert.Equal(t, uint64(1), pub.updates[0].SeqNum)
}

func TestPoseCoalescingScenario(t *testing.T) {
	s, pub := newTestServer()
	ctx := context.Background()

	s.Insert(boxDef("a"))
	require.NoError(t, s.ApplyChanges(ctx))
	require.Len(t, pub.updates, 1)
	assert.Equal(t, uint64(1), pub.updates[0].SeqNum)
	assert.Equal(t, 1, s.Size())

	assert.True(t, s.SetPose("a", poseAt(1, 0, 0), nil))
	assert.True(t, s.SetPose("a", poseAt(2, 0, 0), nil))
	require.NoError(t, s.ApplyChanges(ctx))
	require.Len(t, pub.updates, 2)

	update := pub.updates[1]
	assert.Equal(t, uint64(2), update.SeqNum)
	assert.Empty(t, update.Markers)
	require.Len(t, update.Poses, 1, "repeated SetPose must coalesce into one record")
	assert.Equal(t, "a", update.Poses[0].Name)
	assert.Equal(t, poseAt(2, 0, 0), update.Poses[0].Pose)

	assert.True(t, s.Erase("a"))
	require.NoError(t, s.ApplyChanges(ctx))
	require.Len(t, pub.updates, 3)
	assert.Equal(t, uint64(3), pub.updates[2].SeqNum)
	assert.Equal(t, []string{"a"}, pub.updates[2].Erases)
	assert.Equal(t, 0, s.Size())
	assert.True(t, s.Empty())
}

func TestLastStagedOperationWins(t *testing.T) {
	s, pub := newTestServer()
	ctx := context.Background()

	s.Insert(boxDef("a"))
	require.NoError(t, s.ApplyChanges(ctx))

	s.Insert(boxDef("a"))
	assert.True(t, s.SetPose("a", poseAt(5, 5, 5), nil))
	assert.True(t, s.Erase("a"))
	require.NoError(t, s.ApplyChanges(ctx))

	require.Len(t, pub.updates, 2)
	update := pub.updates[1]
	assert.Empty(t, update.Markers)
	assert.Empty(t, update.Poses)
	assert.Equal(t, []string{"a"}, update.Erases)
}

func TestSetPoseUnknownMarkerFails(t *testing.T) {
	s, pub := newTestServer()

	assert.False(t, s.SetPose("ghost", poseAt(1, 2, 3), nil))
	require.NoError(t, s.ApplyChanges(context.Background()))
	assert.Empty(t, pub.updates, "failed SetPose must stage nothing")
}

func TestEraseUnknownMarkerFails(t *testing.T) {
	s, _ := newTestServer()
	assert.False(t, s.Erase("ghost"))
}

func TestSetCallbackUnknownMarkerFails(t *testing.T) {
	s, _ := newTestServer()
	assert.False(t, s.SetCallback("ghost", func(marker.Feedback) {}, marker.DefaultFeedbackType))
}

func TestEraseOfPendingOnlyMarker(t *testing.T) {
	s, pub := newTestServer()

	s.Insert(boxDef("draft"))
	assert.True(t, s.Erase("draft"))
	require.NoError(t, s.ApplyChanges(context.Background()))

	require.Len(t, pub.updates, 1)
	assert.Equal(t, []string{"draft"}, pub.updates[0].Erases)
	assert.Empty(t, pub.updates[0].Markers)
	assert.Equal(t, 0, s.Size())
}

func TestClearErasesEverything(t *testing.T) {
	s, pub := newTestServer()
	ctx := context.Background()

	s.Insert(boxDef("a"))
	s.Insert(boxDef("b"))
	require.NoError(t, s.ApplyChanges(ctx))
	assert.Equal(t, 2, s.Size())

	s.Insert(boxDef("c")) // staged but never flushed; Clear drops it
	s.Clear()
	require.NoError(t, s.ApplyChanges(ctx))

	require.Len(t, pub.updates, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, pub.updates[1].Erases)
	assert.Empty(t, pub.updates[1].Markers)
	assert.Equal(t, 0, s.Size())

	_, ok := s.Get("c")
	assert.False(t, ok)
}

func TestGetReflectsPendingUpdates(t *testing.T) {
	s, _ := newTestServer()
	ctx := context.Background()

	// Pending full replace is visible before the flush.
	def := boxDef("a")
	s.Insert(def)
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, def, got)

	require.NoError(t, s.ApplyChanges(ctx))

	// Pending pose override on a published marker.
	header := marker.Header{FrameID: "odom"}
	require.True(t, s.SetPose("a", poseAt(7, 0, 0), &header))
	got, ok = s.Get("a")
	require.True(t, ok)
	assert.Equal(t, poseAt(7, 0, 0), got.Pose)
	assert.Equal(t, "odom", got.Header.FrameID)
	assert.Equal(t, def.Controls, got.Controls, "pose override must keep the rest of the definition")

	// Pending erase hides the published marker.
	require.True(t, s.Erase("a"))
	_, ok = s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Size(), "pending erase does not change Size until flushed")
}

func TestSetPoseConvertsStagedInsert(t *testing.T) {
	s, pub := newTestServer()

	// SetPose on a marker that only exists as a staged insert converts the
	// entry to pose-only; with no published context it is invisible to Get
	// and dropped at flush time without a sequence number being spent.
	s.Insert(boxDef("draft"))
	require.True(t, s.SetPose("draft", poseAt(1, 1, 1), nil))

	_, ok := s.Get("draft")
	assert.False(t, ok)

	require.NoError(t, s.ApplyChanges(context.Background()))
	assert.Empty(t, pub.updates)

	s.Insert(boxDef("draft"))
	require.NoError(t, s.ApplyChanges(context.Background()))
	require.Len(t, pub.updates, 1)
	assert.Equal(t, uint64(1), pub.updates[0].SeqNum, "dropped flush must not consume a sequence number")
}

func TestSetPoseDefaultsToContextHeader(t *testing.T) {
	s, pub := newTestServer()
	ctx := context.Background()

	def := boxDef("a")
	def.Header.FrameID = "map"
	s.Insert(def)
	require.NoError(t, s.ApplyChanges(ctx))

	require.True(t, s.SetPose("a", poseAt(3, 0, 0), nil))
	require.NoError(t, s.ApplyChanges(ctx))

	require.Len(t, pub.updates, 2)
	require.Len(t, pub.updates[1].Poses, 1)
	assert.Equal(t, "map", pub.updates[1].Poses[0].Header.FrameID)
}

func TestFeedbackForUnknownMarkerDropped(t *testing.T) {
	s, pub := newTestServer()

	assert.NotPanics(t, func() {
		s.ProcessFeedback(marker.Feedback{
			MarkerName: "ghost",
			ClientID:   "rviz",
			EventType:  marker.FeedbackPoseUpdate,
		})
	})
	require.NoError(t, s.ApplyChanges(context.Background()))
	assert.Empty(t, pub.updates, "feedback for an unknown marker must stage nothing")
	assert.Equal(t, 0, s.Size())
}

func TestFeedbackRoutingAndBookkeeping(t *testing.T) {
	s, pub := newTestServer()
	ctx := context.Background()

	var defaultEvents, clickEvents []marker.Feedback
	s.InsertWithCallback(boxDef("a"), func(fb marker.Feedback) {
		defaultEvents = append(defaultEvents, fb)
	}, marker.DefaultFeedbackType)
	require.True(t, s.SetCallback("a", func(fb marker.Feedback) {
		clickEvents = append(clickEvents, fb)
	}, marker.FeedbackButtonClick))
	require.NoError(t, s.ApplyChanges(ctx))

	// Type-specific handler takes priority for its event type.
	s.ProcessFeedback(marker.Feedback{
		MarkerName: "a",
		ClientID:   "client-1",
		EventType:  marker.FeedbackButtonClick,
	})
	assert.Len(t, clickEvents, 1)
	assert.Empty(t, defaultEvents)

	// Anything else falls back to the default handler.
	s.ProcessFeedback(marker.Feedback{
		MarkerName: "a",
		ClientID:   "client-2",
		EventType:  marker.FeedbackMouseDown,
	})
	assert.Len(t, defaultEvents, 1)

	clientID, at, ok := s.LastFeedback("a")
	require.True(t, ok)
	assert.Equal(t, "client-2", clientID)
	assert.False(t, at.IsZero())

	// A pose-update event stages a pose change that the next flush emits.
	s.ProcessFeedback(marker.Feedback{
		MarkerName: "a",
		ClientID:   "client-2",
		EventType:  marker.FeedbackPoseUpdate,
		Header:     marker.Header{FrameID: "base_link"},
		Pose:       poseAt(0.5, 0, 0),
	})
	require.NoError(t, s.ApplyChanges(ctx))
	last := pub.updates[len(pub.updates)-1]
	require.Len(t, last.Poses, 1)
	assert.Equal(t, poseAt(0.5, 0, 0), last.Poses[0].Pose)
}

func TestCallbackSetBeforeFlushSurvivesCommit(t *testing.T) {
	s, _ := newTestServer()

	fired := 0
	s.Insert(boxDef("a"))
	require.True(t, s.SetCallback("a", func(marker.Feedback) { fired++ }, marker.DefaultFeedbackType))
	require.NoError(t, s.ApplyChanges(context.Background()))

	s.ProcessFeedback(marker.Feedback{MarkerName: "a", EventType: marker.FeedbackKeepAlive})
	assert.Equal(t, 1, fired)
}

func TestInsertDiscardsStagedHandlers(t *testing.T) {
	s, _ := newTestServer()

	fired := 0
	s.Insert(boxDef("a"))
	require.True(t, s.SetCallback("a", func(marker.Feedback) { fired++ }, marker.DefaultFeedbackType))

	// Re-inserting replaces the staged entry wholesale, including the
	// handler staged alongside it.
	s.Insert(boxDef("a"))
	require.NoError(t, s.ApplyChanges(context.Background()))

	s.ProcessFeedback(marker.Feedback{MarkerName: "a", EventType: marker.FeedbackKeepAlive})
	assert.Equal(t, 0, fired)
}

func TestRemovingCallback(t *testing.T) {
	s, _ := newTestServer()

	fired := 0
	s.InsertWithCallback(boxDef("a"), func(marker.Feedback) { fired++ }, marker.FeedbackMenuSelect)
	require.NoError(t, s.ApplyChanges(context.Background()))

	require.True(t, s.SetCallback("a", nil, marker.FeedbackMenuSelect))
	s.ProcessFeedback(marker.Feedback{MarkerName: "a", EventType: marker.FeedbackMenuSelect})
	assert.Equal(t, 0, fired)
}

func TestReentrantHandlerMayStageUpdates(t *testing.T) {
	s, pub := newTestServer()
	ctx := context.Background()

	s.InsertWithCallback(boxDef("a"), func(fb marker.Feedback) {
		// Handlers run without server locks, so staging from inside one
		// must not deadlock.
		s.SetPose("a", poseAt(9, 9, 9), nil)
	}, marker.DefaultFeedbackType)
	require.NoError(t, s.ApplyChanges(ctx))

	done := make(chan struct{})
	go func() {
		s.ProcessFeedback(marker.Feedback{MarkerName: "a", EventType: marker.FeedbackButtonClick})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessFeedback deadlocked with a re-entrant handler")
	}

	require.NoError(t, s.ApplyChanges(ctx))
	last := pub.updates[len(pub.updates)-1]
	require.Len(t, last.Poses, 1)
	assert.Equal(t, poseAt(9, 9, 9), last.Poses[0].Pose)
}

func TestSnapshotReflectsRegistryOnly(t *testing.T) {
	s, _ := newTestServer()
	ctx := context.Background()

	s.Insert(boxDef("b"))
	s.Insert(boxDef("a"))
	require.NoError(t, s.ApplyChanges(ctx))
	s.Insert(boxDef("c")) // staged, must not appear

	seq, defs := s.Snapshot()
	assert.Equal(t, uint64(1), seq)
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, "b", defs[1].Name)
}

func TestPublishFailureIsReported(t *testing.T) {
	pub := &capturePublisher{err: errTransport}
	s := NewServer("test_scene", pub)

	s.Insert(boxDef("a"))
	err := s.ApplyChanges(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransport)
}

func TestInsertCopiesDefinition(t *testing.T) {
	s, _ := newTestServer()

	def := boxDef("a")
	s.Insert(def)
	def.Controls[0].Shapes[0].Color = marker.Color{R: 1, A: 1}
	def.Description = "mutated"

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "test box", got.Description)
	assert.Equal(t, float32(0), got.Controls[0].Shapes[0].Color.R)
}

var errTransport = errors.New("broker unreachable")
