package markerarchivist

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"markerhub/internal/config"
	"markerhub/internal/marker"
	"markerhub/internal/markerbus"
)

type Service struct {
	cfg   config.Config
	bus   *markerbus.Bus
	neo4j *Neo4jClient

	cancel context.CancelFunc
}

func NewService(cfg config.Config) (*Service, error) {
	neo4jClient, err := NewNeo4jClient(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:   cfg,
		bus:   markerbus.NewBus(cfg.Namespace, cfg.KafkaBrokers),
		neo4j: neo4jClient,
	}, nil
}

// Start subscribes the update and feedback topics and archives everything
// that flows past.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.bus.SubscribeUpdates(ctx, "marker-archivist-group", s.handleUpdate)
	go s.bus.SubscribeFeedback(ctx, "marker-archivist-group", s.handleFeedback)

	log.Printf("Marker archivist started for namespace %q", s.cfg.Namespace)
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.bus.Close(); err != nil {
		log.Printf("Bus close error: %v", err)
	}
	if err := s.neo4j.Close(); err != nil {
		log.Printf("Neo4j close error: %v", err)
	}
	log.Println("Marker archivist stopped")
}

func (s *Service) handleUpdate(update marker.Update) {
	for _, def := range update.Markers {
		if err := s.neo4j.UpsertMarker(update.Namespace, def.Name, def.Description, def.Header.FrameID); err != nil {
			log.Printf("Failed to archive marker %q: %v", def.Name, err)
			continue
		}
		pos := def.Pose.Position
		if err := s.neo4j.RecordPose(update.Namespace, def.Name, pos.X, pos.Y, pos.Z); err != nil {
			log.Printf("Failed to archive pose for %q: %v", def.Name, err)
		}
	}
	for _, ps := range update.Poses {
		pos := ps.Pose.Position
		if err := s.neo4j.RecordPose(update.Namespace, ps.Name, pos.X, pos.Y, pos.Z); err != nil {
			log.Printf("Failed to archive pose for %q: %v", ps.Name, err)
		}
	}
	for _, name := range update.Erases {
		if err := s.neo4j.MarkErased(update.Namespace, name); err != nil {
			log.Printf("Failed to archive erase of %q: %v", name, err)
		}
	}
}

func (s *Service) handleFeedback(fb marker.Feedback) {
	eventID := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339)
	if err := s.neo4j.StoreFeedback(eventID, s.cfg.Namespace, fb.MarkerName, fb.ClientID, fb.EventType, timestamp); err != nil {
		log.Printf("Failed to archive feedback for %q: %v", fb.MarkerName, err)
	}
}
