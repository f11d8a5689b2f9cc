// Package websocket streams workspace events to connected clients. It
// implements a hub-and-spoke pattern where each client subscribes to one or
// more session topics and receives every canvas and chat event published for
// those sessions.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/cliniq/emr/internal/domain/session"
)

// ClientMessage is an inbound subscription command from a client.
type ClientMessage struct {
	Action   string   `json:"action"`
	Sessions []string `json:"sessions"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one WebSocket connection and its session subscriptions.
type Client struct {
	ID       string
	Sessions []string
	Send     chan []byte
	hub      *Hub
	conn     Conn
}

// Hub tracks clients and their session subscriptions. It satisfies the
// workspace service's EventPublisher contract, so every reconciliation and
// chat event fans out live. All operations are thread-safe.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // session id -> subscribers
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

// NewHub creates a hub ready to manage clients.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client and subscribes it to its initial sessions.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, id := range client.Sessions {
		if h.clients[id] == nil {
			h.clients[id] = make(map[*Client]struct{})
		}
		h.clients[id][client] = struct{}{}
	}
}

// Unregister removes a client from every subscription and closes its Send
// channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, id := range client.Sessions {
		if subs, ok := h.clients[id]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.clients, id)
			}
		}
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds session subscriptions to a registered client.
func (h *Hub) Subscribe(client *Client, sessions []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range sessions {
		if h.clients[id] == nil {
			h.clients[id] = make(map[*Client]struct{})
		}
		h.clients[id][client] = struct{}{}
	}
	client.Sessions = append(client.Sessions, sessions...)
}

// Unsubscribe removes session subscriptions from a registered client.
func (h *Hub) Unsubscribe(client *Client, sessions []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(sessions))
	for _, id := range sessions {
		removeSet[id] = struct{}{}
		if subs, ok := h.clients[id]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.clients, id)
			}
		}
	}

	remaining := make([]string, 0, len(client.Sessions))
	for _, id := range client.Sessions {
		if _, rm := removeSet[id]; !rm {
			remaining = append(remaining, id)
		}
	}
	client.Sessions = remaining
}

// ProcessMessage dispatches an inbound subscription command.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Sessions)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Sessions)
	}
}

// Publish broadcasts a workspace event to the session's subscribers.
func (h *Hub) Publish(sessionID string, event session.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.clients[sessionID]
	if !ok {
		return
	}
	for client := range subs {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// SubscriberCount returns the number of clients watching one session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// ---------------------------------------------------------------------------
// Handler: Echo HTTP handler for WebSocket connections
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler handles HTTP-to-WebSocket upgrades and message routing.
type Handler struct {
	hub *Hub
}

// NewHandler creates a handler bound to the given hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes registers the WebSocket endpoint.
func (wsh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades the connection, registers the client and starts the
// pumps. A ?session=<id> query parameter subscribes immediately.
func (wsh *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	var initial []string
	if id := c.QueryParam("session"); id != "" {
		initial = append(initial, id)
	}

	client := &Client{
		ID:       uuid.New().String(),
		Sessions: initial,
		Send:     make(chan []byte, 256),
		hub:      wsh.hub,
		conn:     &gorillaConnAdapter{ws},
	}
	wsh.hub.Register(client)

	go wsh.writePump(client)
	go wsh.readPump(client)

	return nil
}

func (wsh *Handler) readPump(client *Client) {
	defer func() {
		wsh.hub.Unregister(client)
		client.conn.Close()
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}
		wsh.hub.ProcessMessage(client, msg)
	}
}

func (wsh *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy Conn.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
