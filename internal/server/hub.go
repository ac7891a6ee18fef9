package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cxd309/vehicle-emulator/internal/input"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is a control message sent by a client.
//
// Supported types:
//   - "input": hold Channel at Value (0 releases it).
//   - "key": press (Down) or release a ramped Key.
//   - "axes": gamepad stick reading in Horizontal and Vertical.
//   - "reset": put the vehicle back at the origin.
type Message struct {
	Type       string  `json:"type"`
	Channel    string  `json:"channel,omitempty"`
	Value      float64 `json:"value,omitempty"`
	Key        string  `json:"key,omitempty"`
	Down       bool    `json:"down,omitempty"`
	Horizontal float64 `json:"horizontal,omitempty"`
	Vertical   float64 `json:"vertical,omitempty"`
}

// ErrorMessage is sent back to a client whose message was rejected.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// client is a middleman between the websocket connection and the hub.
type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
}

// readPump applies client messages to the session until the connection drops.
func (c *client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Websocket client read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		if err := c.hub.apply(raw); err != nil {
			c.hub.logger.Debug("Rejected client message", zap.String("client_id", c.id), zap.Error(err))
			c.reply(ErrorMessage{Type: "error", Error: err.Error()})
		}
	}
}

func (c *client) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.hub.sendTo(c, data)
}

// writePump pumps messages from the hub to the websocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub tracks connected clients and fans frames out to them.
type Hub struct {
	session *Session
	logger  *zap.Logger

	mu      sync.RWMutex
	clients map[*client]bool
	closed  bool
	wg      sync.WaitGroup
}

// NewHub returns a hub feeding client messages into session.
func NewHub(session *Session, logger *zap.Logger) *Hub {
	return &Hub{
		session: session,
		logger:  logger.Named("hub"),
		clients: make(map[*client]bool),
	}
}

// HandleWS upgrades the request and attaches the new client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}
	c := &client{
		id:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	h.clients[c] = true
	h.wg.Add(2)
	h.mu.Unlock()
	h.logger.Info("New WebSocket client connected.", zap.String("client_id", c.id))

	if data, err := json.Marshal(h.session.Snapshot()); err == nil {
		h.sendTo(c, data)
	}
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

func (h *Hub) unregisterClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Info("WebSocket client disconnected.", zap.String("client_id", c.id))
	}
}

// sendTo queues data for c if it is still connected. Messages to a client
// with a full buffer are dropped.
func (h *Hub) sendTo(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends v to every client. Clients whose buffers are full are
// dropped.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			close(c.send)
			delete(h.clients, c)
			h.logger.Warn("Dropping slow WebSocket client.", zap.String("client_id", c.id))
		}
	}
	return nil
}

// apply decodes one client message and hands it to the session.
func (h *Hub) apply(raw []byte) error {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	switch msg.Type {
	case "input":
		c, err := input.ParseChannel(msg.Channel)
		if err != nil {
			return err
		}
		return h.session.SetInput(c, msg.Value)
	case "key":
		k, err := input.ParseChannel(msg.Key)
		if err != nil {
			return err
		}
		return h.session.Key(k, msg.Down)
	case "axes":
		return h.session.SetAxes(msg.Horizontal, msg.Vertical)
	case "reset":
		return h.session.Reset()
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// Close disconnects every client and waits for their goroutines to exit.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
