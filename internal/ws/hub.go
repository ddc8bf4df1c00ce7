// Package ws broadcasts lead change events to connected clients.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/johnwards/leadtrack/internal/domain"
)

// Event types pushed over the socket.
const (
	EventLeadCreated = "lead_created"
	EventLeadUpdated = "lead_updated"
	EventLeadDeleted = "lead_deleted"
)

// Event is one pushed message. UserID is the session id of the client whose
// mutation produced the event; receivers use it to recognise their own echo.
type Event struct {
	Type   string    `json:"type"`
	Data   EventData `json:"data"`
	UserID string    `json:"userId"`
}

// EventData carries the affected lead. Deletes carry the full deleted record
// so receivers never need a follow-up fetch for something that no longer
// exists.
type EventData struct {
	Lead      *domain.Lead `json:"lead"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}

type client struct {
	sessionID string
	events    chan Event
	conn      *websocket.Conn
}

// Hub fans lead events out to every connected socket. Construct with NewHub
// and wire into the mux; there is no ambient singleton.
type Hub struct {
	// buffer is the per-client event queue length. A client that falls this
	// far behind is disconnected rather than allowed to stall the others.
	buffer int

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		buffer:  16,
		clients: make(map[*client]struct{}),
	}
}

// Broadcast sends an event to every connected client, the originator
// included. Echo suppression is the receiver's job.
func (h *Hub) Broadcast(eventType string, lead *domain.Lead, message, userID string) {
	evt := Event{
		Type:   eventType,
		UserID: userID,
		Data: EventData{
			Lead:      lead,
			Message:   message,
			Timestamp: time.Now().UTC(),
		},
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.events <- evt:
		default:
			go c.conn.Close(websocket.StatusPolicyViolation, "too slow to keep up with events")
		}
	}
}

// CloseAll disconnects every client with a going-away status. Used on
// shutdown; clients are expected to reconnect with backoff.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		go c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and pumps events to the client until it
// disconnects. Clients identify themselves with a session_id query parameter;
// one is generated for clients that omit it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err, "session_id", sessionID)
		return
	}
	defer conn.CloseNow()

	c := &client{
		sessionID: sessionID,
		events:    make(chan Event, h.buffer),
		conn:      conn,
	}
	h.add(c)
	defer h.remove(c)

	slog.Info("websocket connected", "session_id", sessionID)
	defer slog.Info("websocket disconnected", "session_id", sessionID)

	ctx := r.Context()

	// Drain inbound frames so control messages are handled and client
	// closure surfaces as a read error.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case evt := <-c.events:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, evt)
			cancel()
			if err != nil {
				return
			}
		case <-readErr:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}
