package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"markerhub/internal/marker"
)

func TestProcessFeedbackIgnoresOutOfRangeNames(t *testing.T) {
	scene := &cubeScene{positions: []marker.Point{{X: 1}, {X: 2}}}
	before := append([]marker.Point(nil), scene.positions...)

	for _, name := range []string{"-1", "2", "not-a-number"} {
		assert.NotPanics(t, func() {
			scene.processFeedback(marker.Feedback{
				MarkerName: name,
				EventType:  marker.FeedbackPoseUpdate,
				Pose: marker.Pose{
					Position:    marker.Point{X: 9},
					Orientation: marker.IdentityQuaternion(),
				},
			})
		})
	}
	assert.Equal(t, before, scene.positions)
}

func TestProcessFeedbackDragsNeighbours(t *testing.T) {
	scene := &cubeScene{positions: []marker.Point{{}, {X: 0.1}}}

	scene.processFeedback(marker.Feedback{
		MarkerName: "0",
		EventType:  marker.FeedbackPoseUpdate,
		Pose: marker.Pose{
			Position:    marker.Point{X: 0.5},
			Orientation: marker.IdentityQuaternion(),
		},
	})

	assert.Equal(t, marker.Point{X: 0.5}, scene.positions[0], "dragged cube snaps to the target")
	assert.Greater(t, scene.positions[1].X, 0.1, "nearby cube is pulled along")

	// Non-pose events leave the grid alone.
	scene.processFeedback(marker.Feedback{MarkerName: "1", EventType: marker.FeedbackButtonClick})
	assert.Equal(t, marker.Point{X: 0.5}, scene.positions[0])
}
