// Package marker defines the message types shared by the marker server,
// the bus, and the observer-facing services.
package marker

import "time"

// Feedback event types reported by observers.
const (
	FeedbackKeepAlive   uint8 = 0
	FeedbackPoseUpdate  uint8 = 1
	FeedbackMenuSelect  uint8 = 2
	FeedbackButtonClick uint8 = 3
	FeedbackMouseDown   uint8 = 4
	FeedbackMouseUp     uint8 = 5

	// DefaultFeedbackType is the sentinel passed to SetCallback to register
	// a handler that fires for any event type without a specific handler.
	DefaultFeedbackType uint8 = 255
)

// Update message types.
const (
	UpdateKeepAlive uint8 = 0
	UpdateDiff      uint8 = 1
)

// Shape type codes for visual primitives.
const (
	ShapeArrow    int32 = 0
	ShapeCube     int32 = 1
	ShapeSphere   int32 = 2
	ShapeCylinder int32 = 3
	ShapeText     int32 = 9
)

// Control interaction modes.
const (
	InteractionNone       uint8 = 0
	InteractionMenu       uint8 = 1
	InteractionButton     uint8 = 2
	InteractionMoveAxis   uint8 = 3
	InteractionMovePlane  uint8 = 4
	InteractionRotateAxis uint8 = 5
	InteractionMoveRotate uint8 = 6
)

// Control orientation modes.
const (
	OrientationInherit    uint8 = 0
	OrientationFixed      uint8 = 1
	OrientationViewFacing uint8 = 2
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

type Color struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

// Header stamps a message with the coordinate frame it is expressed in.
type Header struct {
	FrameID string    `json:"frame_id"`
	Stamp   time.Time `json:"stamp"`
}

// Shape is one visual primitive rendered as part of a control.
type Shape struct {
	Type  int32   `json:"type"`
	Pose  Pose    `json:"pose"`
	Scale Vector3 `json:"scale"`
	Color Color   `json:"color"`
	Text  string  `json:"text,omitempty"`
}

// Control describes one interactive handle on a marker.
type Control struct {
	Name                         string     `json:"name"`
	Orientation                  Quaternion `json:"orientation"`
	OrientationMode              uint8      `json:"orientation_mode"`
	InteractionMode              uint8      `json:"interaction_mode"`
	AlwaysVisible                bool       `json:"always_visible"`
	IndependentMarkerOrientation bool       `json:"independent_marker_orientation"`
	Description                  string     `json:"description,omitempty"`
	Shapes                       []Shape    `json:"shapes,omitempty"`
}

// MenuEntry is one item of a marker's context menu.
type MenuEntry struct {
	ID       uint32 `json:"id"`
	ParentID uint32 `json:"parent_id"`
	Title    string `json:"title"`
}

// Definition is the full description of one marker: its visual and
// interactive structure plus its current pose. Treated as a value type;
// the server copies it and never mutates a caller's instance.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Header      Header      `json:"header"`
	Pose        Pose        `json:"pose"`
	Scale       float64     `json:"scale"`
	Controls    []Control   `json:"controls,omitempty"`
	MenuEntries []MenuEntry `json:"menu_entries,omitempty"`
}

// PoseStamped is one pose-only record inside a diff.
type PoseStamped struct {
	Name   string `json:"name"`
	Header Header `json:"header"`
	Pose   Pose   `json:"pose"`
}

// Update is the diff message published after each non-empty flush.
// Observers apply the three lists in place of retransmitting the scene.
type Update struct {
	Namespace string        `json:"namespace"`
	Type      uint8         `json:"type"`
	SeqNum    uint64        `json:"seq_num"`
	Markers   []Definition  `json:"markers"`
	Poses     []PoseStamped `json:"poses"`
	Erases    []string      `json:"erases"`
}

// Feedback is one inbound observer event targeting a marker.
type Feedback struct {
	ClientID    string `json:"client_id,omitempty"`
	MarkerName  string `json:"marker_name"`
	ControlName string `json:"control_name,omitempty"`
	EventType   uint8  `json:"event_type"`
	Header      Header `json:"header"`
	Pose        Pose   `json:"pose"`
	MenuEntryID uint32 `json:"menu_entry_id,omitempty"`
	MousePoint  *Point `json:"mouse_point,omitempty"`
}

// Transform is a static frame published by scene binaries so observers have
// a frame to place markers in.
type Transform struct {
	ParentFrameID string     `json:"parent_frame_id"`
	ChildFrameID  string     `json:"child_frame_id"`
	Translation   Vector3    `json:"translation"`
	Rotation      Quaternion `json:"rotation"`
	Stamp         time.Time  `json:"stamp"`
}
