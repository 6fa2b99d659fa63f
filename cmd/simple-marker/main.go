// Example scene: one grey box marker with a single move-x control. Feedback
// from observers is printed by a default callback.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"markerhub/internal/config"
	"markerhub/internal/frames"
	"markerhub/internal/marker"
	"markerhub/internal/markerbus"
	"markerhub/services/markerserver"
)

func main() {
	cfg := config.Default()
	cfg.Namespace = getEnv("MARKER_NAMESPACE", "simple_marker")
	cfg.KafkaBrokers = getEnvBrokers("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down simple_marker...")
		cancel()
	}()

	// Observers need a frame to place the marker in.
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

	server.InsertWithCallback(makeMarker(), func(fb marker.Feedback) {
		pos := fb.Pose.Position
		log.Printf("%s is now at %g, %g, %g.", fb.MarkerName, pos.X, pos.Y, pos.Z)
	}, marker.DefaultFeedbackType)

	service.Start(ctx)
	if err := server.ApplyChanges(ctx); err != nil {
		log.Printf("Initial flush failed: %v", err)
	}
	log.Println("simple_marker started.")

	<-ctx.Done()
	service.Stop()
}

func makeMarker() marker.Definition {
	boxShape := marker.Shape{
		Type:  marker.ShapeCube,
		Pose:  marker.IdentityPose(),
		Scale: marker.Uniform(0.45),
		Color: marker.Color{R: 0, G: 0.5, B: 0.5, A: 1},
	}

	// A non-interactive control carrying the box, plus a control that moves
	// the box along the x-axis.
	boxControl := marker.Control{
		AlwaysVisible: true,
		Shapes:        []marker.Shape{boxShape},
	}
	moveControl := marker.Control{
		Name:            "move_x",
		InteractionMode: marker.InteractionMoveAxis,
		Orientation:     marker.IdentityQuaternion(),
	}

	return marker.Definition{
		Name:        "my_marker",
		Description: "Simple 1-DoF Control",
		Header:      marker.Header{FrameID: "base_link"},
		Pose:        marker.IdentityPose(),
		Scale:       1,
		Controls:    []marker.Control{boxControl, moveControl},
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
