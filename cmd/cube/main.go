// Example scene: a 10x10x10 grid of cube markers. Dragging one cube pulls
// its neighbours along, weighted by distance.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"markerhub/internal/config"
	"markerhub/internal/frames"
	"markerhub/internal/marker"
	"markerhub/internal/markerbus"
	"markerhub/services/markerserver"
)

const sideLength = 10

type cubeScene struct {
	mu        sync.Mutex
	positions []marker.Point
}

func main() {
	cfg := config.Default()
	cfg.Namespace = getEnv("MARKER_NAMESPACE", "cube")
	cfg.KafkaBrokers = getEnvBrokers("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down cube...")
		cancel()
	}()

	framesBus := markerbus.NewBus(cfg.Namespace, cfg.KafkaBrokers)
	defer framesBus.Close()
	broadcaster := frames.NewBroadcaster(framesBus, 100*time.Millisecond)
	broadcaster.SetFrame(frames.Frame{
		ParentFrameID: "world",
		ChildFrameID:  "base_link",
		Translation:   marker.Vector3{Z: 1},
		Rotation:      marker.IdentityQuaternion(),
		Static:        true,
	})
	go broadcaster.Run(ctx)

	service, err := markerserver.NewService(cfg)
	if err != nil {
		log.Fatalf("Failed to create marker server: %v", err)
	}
	server := service.Server()

	scene := &cubeScene{}
	scene.makeCube(server)

	service.Start(ctx)
	if err := server.ApplyChanges(ctx); err != nil {
		log.Printf("Initial flush failed: %v", err)
	}
	log.Println("cube started.")

	// Re-stage every cube's position each tick so feedback-driven motion
	// propagates to all observers.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			service.Stop()
			return
		case <-ticker.C:
			scene.mu.Lock()
			for i, pos := range scene.positions {
				server.SetPose(strconv.Itoa(i), marker.Pose{
					Position:    pos,
					Orientation: marker.IdentityQuaternion(),
				}, nil)
			}
			scene.mu.Unlock()
			if err := server.ApplyChanges(ctx); err != nil {
				log.Printf("Flush failed: %v", err)
			}
		}
	}
}

func (c *cubeScene) makeCube(server *markerserver.Server) {
	step := 1.0 / float64(sideLength)
	count := 0

	for i := 0; i < sideLength; i++ {
		x := -0.5 + step*float64(i)
		for j := 0; j < sideLength; j++ {
			y := -0.5 + step*float64(j)
			for k := 0; k < sideLength; k++ {
				z := step * float64(k)

				def := marker.Definition{
					Name:   strconv.Itoa(count),
					Header: marker.Header{FrameID: "base_link"},
					Pose: marker.Pose{
						Position:    marker.Point{X: x, Y: y, Z: z},
						Orientation: marker.IdentityQuaternion(),
					},
					Scale: step,
				}
				addBoxControl(&def, step)

				c.mu.Lock()
				c.positions = append(c.positions, def.Pose.Position)
				c.mu.Unlock()

				server.InsertWithCallback(def, c.processFeedback, marker.DefaultFeedbackType)
				count++
			}
		}
	}
}

func addBoxControl(def *marker.Definition, scale float64) {
	pos := def.Pose.Position
	control := marker.Control{
		AlwaysVisible:                true,
		OrientationMode:              marker.OrientationViewFacing,
		InteractionMode:              marker.InteractionMovePlane,
		IndependentMarkerOrientation: true,
		Shapes: []marker.Shape{{
			Type:  marker.ShapeCube,
			Scale: marker.Uniform(scale),
			Color: marker.Color{
				R: float32(0.65 + 0.7*pos.X),
				G: float32(0.65 + 0.7*pos.Y),
				B: float32(0.65 + 0.7*pos.Z),
				A: 1,
			},
		}},
	}
	def.Controls = append(def.Controls, control)
}

// processFeedback drags the whole grid towards a moved cube, weighted by
// distance to the drag point.
func (c *cubeScene) processFeedback(fb marker.Feedback) {
	if fb.EventType != marker.FeedbackPoseUpdate {
		return
	}
	index, err := strconv.Atoi(fb.MarkerName)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.positions) {
		return
	}

	target := fb.Pose.Position
	delta := target.Sub(c.positions[index])

	for i := range c.positions {
		d := target.Distance(c.positions[i])
		t := 1.0/(d*5.0+1.0) - 0.2
		if t < 0 {
			t = 0
		}
		c.positions[i] = c.positions[i].Add(delta.Scaled(t))
		if i == index {
			c.positions[i] = target
		}
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBrokers(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		brokers := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				brokers = append(brokers, trimmed)
			}
		}
		if len(brokers) > 0 {
			return brokers
		}
	}
	return fallback
}
