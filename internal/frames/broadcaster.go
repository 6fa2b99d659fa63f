// Package frames periodically rebroadcasts a static set of coordinate frames
// so observers always have a frame to place markers in. Frame math is out of
// scope; transforms are published verbatim.
package frames

import (
	"context"
	"log"
	"sync"
	"time"

	"markerhub/internal/marker"
)

// Publisher is the transport the frame set is published on.
type Publisher interface {
	PublishFrames(ctx context.Context, frames []marker.Transform) error
}

// Frame is one named transform. Only static frames are rebroadcast; dynamic
// ones are expected to come from a live source instead.
type Frame struct {
	ParentFrameID string
	ChildFrameID  string
	Translation   marker.Vector3
	Rotation      marker.Quaternion
	Static        bool
}

type Broadcaster struct {
	pub      Publisher
	interval time.Duration

	mu     sync.Mutex
	frames map[string]Frame
}

func NewBroadcaster(pub Publisher, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Broadcaster{
		pub:      pub,
		interval: interval,
		frames:   make(map[string]Frame),
	}
}

// SetFrame adds or replaces a frame, keyed by its child frame id.
func (b *Broadcaster) SetFrame(frame Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames[frame.ChildFrameID] = frame
}

// RemoveFrame drops a frame from the broadcast set.
func (b *Broadcaster) RemoveFrame(childFrameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.frames, childFrameID)
}

func (b *Broadcaster) snapshot(now time.Time) []marker.Transform {
	b.mu.Lock()
	defer b.mu.Unlock()

	transforms := make([]marker.Transform, 0, len(b.frames))
	for _, f := range b.frames {
		if !f.Static {
			continue
		}
		transforms = append(transforms, marker.Transform{
			ParentFrameID: f.ParentFrameID,
			ChildFrameID:  f.ChildFrameID,
			Translation:   f.Translation,
			Rotation:      f.Rotation,
			Stamp:         now,
		})
	}
	return transforms
}

// Run rebroadcasts the static frame set every interval until ctx is
// cancelled. Publish failures are logged and the loop continues.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			transforms := b.snapshot(time.Now().UTC())
			if len(transforms) == 0 {
				continue
			}
			if err := b.pub.PublishFrames(ctx, transforms); err != nil {
				log.Printf("Static frame broadcast failed: %v", err)
			}
		}
	}
}
