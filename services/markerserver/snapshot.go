package markerserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"markerhub/internal/marker"
)

// SnapshotResponse answers the snapshot query: the current sequence number
// and every committed marker. Staged, unflushed updates are not included.
type SnapshotResponse struct {
	SequenceNumber uint64              `json:"sequence_number"`
	Markers        []marker.Definition `json:"markers"`
}

// HTTPServer serves the snapshot query endpoint for late-joining observers.
type HTTPServer struct {
	server *http.Server
	router *mux.Router
	marker *Server
}

func NewHTTPServer(addr string, markerServer *Server) *HTTPServer {
	router := mux.NewRouter()

	srv := &http.Server{
		Addr:         addr,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	hs := &HTTPServer{
		server: srv,
		router: router,
		marker: markerServer,
	}
	router.HandleFunc("/markers", hs.GetMarkersHandler).Methods("GET")
	router.HandleFunc("/markers/{name}", hs.GetMarkerHandler).Methods("GET")
	router.HandleFunc("/healthz", hs.HealthHandler).Methods("GET")
	return hs
}

func (hs *HTTPServer) Start() {
	go func() {
		log.Printf("Snapshot HTTP server starting on %s", hs.server.Addr)
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Snapshot HTTP server error: %v", err)
		}
	}()
}

func (hs *HTTPServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := hs.server.Shutdown(ctx); err != nil {
		log.Printf("Snapshot HTTP server shutdown error: %v", err)
	}
}

// GetMarkersHandler returns the committed registry and sequence number.
func (hs *HTTPServer) GetMarkersHandler(w http.ResponseWriter, r *http.Request) {
	seq, defs := hs.marker.Snapshot()
	writeJSON(w, SnapshotResponse{SequenceNumber: seq, Markers: defs})
}

// GetMarkerHandler returns one marker's effective definition, honoring
// staged updates the way the query surface does.
func (hs *HTTPServer) GetMarkerHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	def, ok := hs.marker.Get(name)
	if !ok {
		http.Error(w, "marker not found", http.StatusNotFound)
		return
	}
	writeJSON(w, def)
}

func (hs *HTTPServer) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"size":   hs.marker.Size(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
