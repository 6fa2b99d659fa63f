package markerbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "cube.marker_updates", UpdateTopic("cube"))
	assert.Equal(t, "cube.marker_feedback", FeedbackTopic("cube"))
	assert.Equal(t, "cube.static_frames", FramesTopic("cube"))
}

func TestNewBusCreatesWritersPerTopic(t *testing.T) {
	bus := NewBus("test_scene", []string{"localhost:9092"})
	defer bus.Close()

	assert.Equal(t, "test_scene", bus.Namespace())
	assert.Len(t, bus.writers, 3)
	assert.Contains(t, bus.writers, UpdateTopic("test_scene"))
	assert.Contains(t, bus.writers, FeedbackTopic("test_scene"))
	assert.Contains(t, bus.writers, FramesTopic("test_scene"))
}
