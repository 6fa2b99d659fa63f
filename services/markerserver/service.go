package markerserver

import (
	"context"
	"log"
	"time"

	"markerhub/internal/config"
	"markerhub/internal/markerbus"
	"markerhub/internal/scenestore"
	"markerhub/internal/schema"
)

// Service hosts a Server: it drives the flush loop, feeds bus feedback into
// the router, serves the snapshot HTTP endpoint, and optionally persists and
// restores the committed scene.
type Service struct {
	cfg    config.Config
	server *Server
	bus    *markerbus.Bus
	http   *HTTPServer
	scenes *scenestore.Store

	cancel context.CancelFunc
}

func NewService(cfg config.Config) (*Service, error) {
	bus := markerbus.NewBus(cfg.Namespace, cfg.KafkaBrokers)
	server := NewServer(cfg.Namespace, bus)

	svc := &Service{
		cfg:    cfg,
		server: server,
		bus:    bus,
	}
	svc.http = NewHTTPServer(cfg.HTTPAddr, server)

	if cfg.SnapshotInterval() > 0 {
		scenes, err := scenestore.New(scenestore.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Bucket:    cfg.Snapshot.Bucket,
		})
		if err != nil {
			return nil, err
		}
		svc.scenes = scenes
	}
	return svc, nil
}

// Server exposes the underlying marker server so scene code can stage
// markers and register callbacks.
func (s *Service) Server() *Server {
	return s.server
}

// Start launches the feedback subscription, the flush ticker, the snapshot
// HTTP endpoint, and (when configured) scene persistence.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	if s.scenes != nil {
		s.restoreScene(ctx)
	}

	go s.bus.SubscribeFeedback(ctx, "marker-server-"+s.cfg.Namespace, s.server.ProcessFeedback)
	go s.flushLoop(ctx)
	if s.scenes != nil {
		go s.persistLoop(ctx)
	}
	s.http.Start()

	log.Printf("Marker server started for namespace %q", s.cfg.Namespace)
}

// Stop shuts the service down. The host's shutdown simply stops driving the
// flush and feedback loops; no final flush is attempted.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.http.Stop()
	if err := s.bus.Close(); err != nil {
		log.Printf("Bus close error: %v", err)
	}
	log.Printf("Marker server stopped for namespace %q", s.cfg.Namespace)
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FlushInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.server.ApplyChanges(ctx); err != nil {
				log.Printf("Flush failed: %v", err)
			}
		}
	}
}

func (s *Service) persistLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SnapshotInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq, defs := s.server.Snapshot()
			if len(defs) == 0 {
				continue
			}
			scene := scenestore.Scene{
				Namespace: s.cfg.Namespace,
				SeqNum:    seq,
				SavedAt:   time.Now().UTC(),
				Markers:   defs,
			}
			if err := s.scenes.SaveScene(ctx, scene); err != nil {
				log.Printf("Scene persistence failed: %v", err)
			}
		}
	}
}

// restoreScene republishes the last persisted scene. Definitions failing
// schema validation are skipped so one corrupt object cannot poison the
// registry.
func (s *Service) restoreScene(ctx context.Context) {
	scene, err := s.scenes.LoadScene(ctx, s.cfg.Namespace)
	if err != nil {
		log.Printf("No persisted scene for %q: %v", s.cfg.Namespace, err)
		return
	}

	validator, err := schema.NewDefinitionValidator()
	if err != nil {
		log.Printf("Definition validator unavailable: %v", err)
		return
	}

	restored := 0
	for _, def := range scene.Markers {
		if err := validator.ValidateValue(def); err != nil {
			log.Printf("Skipping invalid persisted marker %q: %v", def.Name, err)
			continue
		}
		s.server.Insert(def)
		restored++
	}
	if restored == 0 {
		return
	}
	if err := s.server.ApplyChanges(ctx); err != nil {
		log.Printf("Failed to publish restored scene: %v", err)
		return
	}
	log.Printf("Restored %d markers from persisted scene %q (was seq %d)", restored, scene.Namespace, scene.SeqNum)
}
