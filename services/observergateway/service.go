package observergateway

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"markerhub/internal/config"
	"markerhub/internal/markerbus"
)

type Service struct {
	cfg    config.Config
	bus    *markerbus.Bus
	ws     *WebSocketServer
	server *http.Server

	cancel context.CancelFunc
}

func NewService(cfg config.Config) (*Service, error) {
	bus := markerbus.NewBus(cfg.Namespace, cfg.KafkaBrokers)
	ws, err := NewWebSocketServer(bus.PublishFeedback)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.HandleFunc("/ws/markers", ws.HandleWebSocket)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	server := &http.Server{
		Addr:         cfg.Gateway.HTTPAddr,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	return &Service{
		cfg:    cfg,
		bus:    bus,
		ws:     ws,
		server: server,
	}, nil
}

// Start subscribes the update topic and begins serving observers. Each
// gateway instance uses its own consumer group so every instance sees every
// diff.
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	groupID := "observer-gateway-" + uuid.NewString()
	go s.bus.SubscribeUpdates(ctx, groupID, s.ws.BroadcastUpdate)

	go func() {
		log.Printf("Observer gateway starting on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Observer gateway error: %v", err)
		}
	}()
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.Printf("Observer gateway shutdown error: %v", err)
	}
	if err := s.bus.Close(); err != nil {
		log.Printf("Bus close error: %v", err)
	}
	log.Println("Observer gateway stopped")
}
