package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/partyfinder/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	sendBuffer = 32
)

// Message is the JSON frame delivered to subscribers.
type Message struct {
	Stream string    `json:"stream"`
	Event  string    `json:"event"`
	Data   any       `json:"data,omitempty"`
	SentAt time.Time `json:"sent_at"`
}

type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// Broadcaster delivers messages to users connected to a stream.
type Broadcaster interface {
	BroadcastToUsers(stream string, userIDs []string, message Message)
}

// Hub keeps websocket subscribers indexed by stream and user.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]map[*client]struct{}

	upgrader websocket.Upgrader
	log      *zap.Logger
	now      func() time.Time
}

func NewHub() *Hub {
	h := &Hub{
		streams: make(map[string]map[string]map[*client]struct{}),
		log:     logger.WithModule("realtime"),
		now:     time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     sameOriginOrLoopback,
	}
	return h
}

// Serve upgrades the request and subscribes the connection to streams.
// Unknown streams are ignored.
func (h *Hub) Serve(userID string, streams []string, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	c := &client{hub: h, socket: socket, userID: userID, send: make(chan Message, sendBuffer), subscribed: map[string]struct{}{}}
	h.subscribe(c, streams)

	go c.writeLoop()
	c.readLoop()
}

// BroadcastToUsers delivers message to every connection of each user on stream.
func (h *Hub) BroadcastToUsers(stream string, userIDs []string, message Message) {
	stream = normalizeStream(stream)
	if stream == "" || len(userIDs) == 0 {
		return
	}
	message.Stream = stream
	if message.SentAt.IsZero() {
		message.SentAt = h.now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	byUser := h.streams[stream]
	for _, userID := range userIDs {
		for c := range byUser[userID] {
			h.enqueue(c, message)
		}
	}
}

// Subscribers reports how many connections of userID listen on stream.
func (h *Hub) Subscribers(stream, userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[normalizeStream(stream)][userID])
}

func (h *Hub) subscribe(c *client, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, stream := range uniqueStreams(streams) {
		if _, ok := KnownStreams[stream]; !ok {
			h.log.Debug("ignoring unknown stream", zap.String("stream", stream), zap.String("user_id", c.userID))
			continue
		}
		if _, ok := c.subscribed[stream]; ok {
			continue
		}
		byUser := h.streams[stream]
		if byUser == nil {
			byUser = make(map[string]map[*client]struct{})
			h.streams[stream] = byUser
		}
		if byUser[c.userID] == nil {
			byUser[c.userID] = make(map[*client]struct{})
		}
		byUser[c.userID][c] = struct{}{}
		c.subscribed[stream] = struct{}{}
	}
}

func (h *Hub) unsubscribe(c *client, streams []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, stream := range uniqueStreams(streams) {
		h.dropLocked(c, stream)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.closed = true
	for stream := range c.subscribed {
		h.dropLocked(c, stream)
	}
}

func (h *Hub) dropLocked(c *client, stream string) {
	delete(c.subscribed, stream)
	byUser := h.streams[stream]
	if byUser == nil {
		return
	}
	delete(byUser[c.userID], c)
	if len(byUser[c.userID]) == 0 {
		delete(byUser, c.userID)
	}
	if len(byUser) == 0 {
		delete(h.streams, stream)
	}
}

// enqueue never blocks; a slow client is disconnected.
func (h *Hub) enqueue(c *client, message Message) {
	select {
	case c.send <- message:
	default:
		h.log.Warn("dropping slow client", zap.String("user_id", c.userID))
		go c.close()
	}
}

func (h *Hub) reply(c *client, message Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !c.closed {
		h.enqueue(c, message)
	}
}

type client struct {
	hub        *Hub
	socket     *websocket.Conn
	userID     string
	send       chan Message
	subscribed map[string]struct{}
	closed     bool
	once       sync.Once
}

func (c *client) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("connection closed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "subscribe":
			c.hub.subscribe(c, ctrl.Streams)
		case "unsubscribe":
			c.hub.unsubscribe(c, ctrl.Streams)
		case "ping":
			c.hub.reply(c, Message{Event: "pong", SentAt: c.hub.now().UTC()})
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
	})
}

func sameOriginOrLoopback(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originHost := parsed.Hostname()
	requestHost := r.Host
	if host, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = host
	}
	if strings.EqualFold(originHost, requestHost) || strings.EqualFold(originHost, "localhost") {
		return true
	}
	ip := net.ParseIP(originHost)
	return ip != nil && ip.IsLoopback()
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}

func uniqueStreams(streams []string) []string {
	seen := make(map[string]struct{}, len(streams))
	out := make([]string, 0, len(streams))
	for _, stream := range streams {
		stream = normalizeStream(stream)
		if stream == "" {
			continue
		}
		if _, ok := seen[stream]; ok {
			continue
		}
		seen[stream] = struct{}{}
		out = append(out, stream)
	}
	return out
}
