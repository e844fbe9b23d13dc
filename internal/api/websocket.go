package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/calibright/internal/engine"
	"github.com/nerrad567/calibright/internal/infrastructure/config"
	"github.com/nerrad567/calibright/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// WSChannelAll subscribes a client to every event type.
const WSChannelAll = "*"

// wsQueueLen is how many frames may wait for a slow client before its
// events are dropped.
const wsQueueLen = 256

// WSMessage is the envelope for frames in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists engine event types such as
// "brightness.changed", or WSChannelAll.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an inbound frame with its payload still encoded.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origins are filtered by the CORS middleware.
		return true
	},
}

// Hub relays engine events to WebSocket clients.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run disconnects every client once ctx is done.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		c.conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Observe sends ev to every client subscribed to its type. It never
// blocks. Pass it to engine.Subscribe.
func (h *Hub) Observe(ev engine.Event) {
	clients := h.snapshot()
	if len(clients) == 0 {
		return
	}

	channel := string(ev.Type)
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: timestamp(ev.Time),
		Payload:   ev,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "type", channel, "error", err)
		return
	}

	sent := 0
	for _, c := range clients {
		if c.wants(channel) && c.enqueue(data) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("websocket event sent", "type", channel, "clients", sent)
	}
}

func (h *Hub) snapshot() []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.shutdown()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// handleWebSocket upgrades the request and starts the client loops.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsQueueLen),
		channels: make(map[string]struct{}),
	}
	s.hub.add(c)

	k := keepaliveFrom(s.wsCfg)
	go c.writeLoop(k)
	go c.readLoop(k, int64(s.wsCfg.MaxMessageSize))
}

// keepalive holds the ping settings as durations.
type keepalive struct {
	ping     time.Duration
	pongWait time.Duration
}

func keepaliveFrom(cfg config.WebSocketConfig) keepalive {
	return keepalive{
		ping:     time.Duration(cfg.PingInterval) * time.Second,
		pongWait: time.Duration(cfg.PongTimeout) * time.Second,
	}
}

func (k keepalive) readDeadline() time.Time {
	return time.Now().Add(k.ping + k.pongWait)
}

// wsClient is one connection. send is closed exactly once, by shutdown.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	channels map[string]struct{}
	closed   bool
}

// enqueue queues data without blocking. It reports false when the client
// is gone or its queue is full.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *wsClient) wants(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, all := c.channels[WSChannelAll]
	_, one := c.channels[channel]
	return all || one
}

func (c *wsClient) setChannels(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.channels[ch] = struct{}{}
		} else {
			delete(c.channels, ch)
		}
	}
}

func (c *wsClient) readLoop(k keepalive, limit int64) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(k.readDeadline()) }
	c.conn.SetReadLimit(limit)
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts.
		extend() //nolint:errcheck // as above
		c.handle(data)
	}
}

func (c *wsClient) writeLoop(k keepalive) {
	ticker := time.NewTicker(k.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(k.pongWait)) //nolint:errcheck // write reports it
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.fail("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(req.Payload) > 0 {
			if err := json.Unmarshal(req.Payload, &sub); err != nil {
				c.fail(req.ID, "invalid "+req.Type+" payload")
				return
			}
		}
		on := req.Type == WSTypeSubscribe
		c.setChannels(sub.Channels, on)

		key := "unsubscribed"
		if on {
			key = "subscribed"
			c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels)
		}
		c.reply(req.ID, WSTypeResponse, map[string]any{key: sub.Channels})
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.fail(req.ID, "unknown message type: "+req.Type)
	}
}

func (c *wsClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: timestamp(time.Time{}),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *wsClient) fail(id, message string) {
	c.reply(id, WSTypeError, map[string]string{"message": message})
}

// timestamp formats t, or the current time when t is zero.
func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
