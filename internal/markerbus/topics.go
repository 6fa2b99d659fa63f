package markerbus

// Topic suffixes. Every marker namespace gets its own trio of topics so
// unrelated scenes never share a channel.
const (
	suffixUpdate   = "marker_updates"
	suffixFeedback = "marker_feedback"
	suffixFrames   = "static_frames"
)

// UpdateTopic returns the diff topic for a namespace.
func UpdateTopic(namespace string) string {
	return namespace + "." + suffixUpdate
}

// FeedbackTopic returns the observer feedback topic for a namespace.
func FeedbackTopic(namespace string) string {
	return namespace + "." + suffixFeedback
}

// FramesTopic returns the static-frame topic for a namespace.
func FramesTopic(namespace string) string {
	return namespace + "." + suffixFrames
}
