// Package observergateway bridges the bus and browser observers: diffs from
// the update topic are fanned out to WebSocket clients, and feedback frames
// from clients are validated and published on the feedback topic.
package observergateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"markerhub/internal/marker"
	"markerhub/internal/schema"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Any origin may observe; production deployments restrict this.
		return true
	},
}

// FeedbackPublisher puts one validated observer event on the bus.
type FeedbackPublisher func(ctx context.Context, fb marker.Feedback) error

// WebSocketServer tracks connected observers and relays traffic both ways.
type WebSocketServer struct {
	publishFeedback FeedbackPublisher
	validator       *schema.Validator

	mutex   sync.Mutex
	clients map[*websocket.Conn]string
}

func NewWebSocketServer(publishFeedback FeedbackPublisher) (*WebSocketServer, error) {
	validator, err := schema.NewFeedbackValidator()
	if err != nil {
		return nil, err
	}
	return &WebSocketServer{
		publishFeedback: publishFeedback,
		validator:       validator,
		clients:         make(map[*websocket.Conn]string),
	}, nil
}

// HandleWebSocket upgrades the connection, assigns the observer a client id,
// and pumps its feedback frames onto the bus until it disconnects.
func (w *WebSocketServer) HandleWebSocket(wr http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(wr, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	w.mutex.Lock()
	w.clients[conn] = clientID
	w.mutex.Unlock()
	log.Printf("Observer %s connected", clientID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Observer %s disconnected: %v", clientID, err)
			w.mutex.Lock()
			delete(w.clients, conn)
			w.mutex.Unlock()
			break
		}
		w.handleFeedbackFrame(r.Context(), clientID, message)
	}
}

func (w *WebSocketServer) handleFeedbackFrame(ctx context.Context, clientID string, message []byte) {
	if err := w.validator.ValidateBytes(message); err != nil {
		log.Printf("Rejected feedback from %s: %v", clientID, err)
		return
	}
	var fb marker.Feedback
	if err := json.Unmarshal(message, &fb); err != nil {
		log.Printf("Failed to parse feedback from %s: %v", clientID, err)
		return
	}
	if fb.ClientID == "" {
		fb.ClientID = clientID
	}
	if err := w.publishFeedback(ctx, fb); err != nil {
		log.Printf("Failed to publish feedback from %s: %v", clientID, err)
	}
}

// BroadcastUpdate sends one diff to every connected observer.
func (w *WebSocketServer) BroadcastUpdate(update marker.Update) {
	message, err := json.Marshal(update)
	if err != nil {
		log.Printf("Failed to marshal update seq=%d: %v", update.SeqNum, err)
		return
	}
	w.BroadcastMessage(message)
}

// BroadcastMessage sends raw bytes to every connected observer, dropping
// clients whose connection fails.
func (w *WebSocketServer) BroadcastMessage(message []byte) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	for client, clientID := range w.clients {
		err := client.WriteMessage(websocket.TextMessage, message)
		if err != nil {
			log.Printf("Failed to send to observer %s: %v", clientID, err)
			client.Close()
			delete(w.clients, client)
		}
	}
}

// ClientCount returns the number of connected observers.
func (w *WebSocketServer) ClientCount() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return len(w.clients)
}
