package notify

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/coder/websocket"

	"github.com/reqsink/reqsink/internal/id"
)

var errConnClosed = errors.New("connection closed")

// Hub limits.
const (
	// maxInboundFrame bounds the subscribe frame size; clients have no
	// business sending anything larger.
	maxInboundFrame = 1024

	// DefaultWriteTimeout bounds each outbound event write.
	DefaultWriteTimeout = 5 * time.Second
)

// Hub is the topic-based pub/sub layer. Each collector uid names one
// topic; browser sessions subscribe by sending a single JSON frame after
// connecting, and the store publishes mutation events into the topic.
// Connections never receive events for topics they did not join.
//
// Hub implements the store's Notifier interface.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*conn           // connection id -> conn
	byTopic map[string]map[string]bool // uid -> set of connection ids
	byConn  map[string]map[string]bool // connection id -> set of uids

	log          *slog.Logger
	writeTimeout time.Duration
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) HubOption {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithWriteTimeout sets the per-connection write deadline for event
// delivery.
func WithWriteTimeout(d time.Duration) HubOption {
	return func(h *Hub) { h.writeTimeout = d }
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		conns:        make(map[string]*conn),
		byTopic:      make(map[string]map[string]bool),
		byConn:       make(map[string]map[string]bool),
		log:          slog.New(slog.DiscardHandler),
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request to a WebSocket and runs the read loop
// until the client disconnects. The only inbound call is the subscribe
// frame; everything else arriving from the client is ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true, // collector pages are served from arbitrary origins
	})
	if err != nil {
		h.log.Debug("websocket accept failed", "error", err)
		return
	}
	sock.SetReadLimit(maxInboundFrame)

	c := &conn{id: id.Short(), sock: sock}
	h.add(c)
	h.log.Debug("subscriber connected", "conn", c.id, "remoteAddr", r.RemoteAddr)

	defer func() {
		h.Disconnect(c.id)
		c.close(ws.StatusNormalClosure, "")
		h.log.Debug("subscriber disconnected", "conn", c.id)
	}()

	for {
		_, data, err := sock.Read(r.Context())
		if err != nil {
			return
		}
		var msg subscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Subscribe == "" {
			continue
		}
		h.Subscribe(c.id, msg.Subscribe)
	}
}

// add registers a connection with no topic memberships yet.
func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
	h.byConn[c.id] = make(map[string]bool)
}

// Subscribe adds the connection to uid's topic. Idempotent; subscribing
// an unknown connection id is a no-op.
func (h *Hub) Subscribe(connID, uid string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	if h.byTopic[uid] == nil {
		h.byTopic[uid] = make(map[string]bool)
	}
	h.byTopic[uid][connID] = true
	h.byConn[connID][uid] = true
	h.log.Debug("subscribed", "conn", connID, "uid", uid)
}

// Disconnect removes the connection record and every topic membership it
// holds, as one locked operation. Safe to call for connections that never
// subscribed, or repeatedly.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for uid := range h.byConn[connID] {
		if members, ok := h.byTopic[uid]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.byTopic, uid)
			}
		}
	}
	delete(h.byConn, connID)
	delete(h.conns, connID)
}

// Publish delivers an event to every current member of uid's topic.
// Delivery is best effort: a failed or timed-out write drops that one
// subscriber's event without affecting the others, and a connection that
// joined after the publish snapshot receives nothing retroactively.
func (h *Hub) Publish(uid string, ev Event) int {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("event marshal failed", "event", ev.Event, "error", err)
		return 0
	}

	h.mu.RLock()
	members := make([]*conn, 0, len(h.byTopic[uid]))
	for connID := range h.byTopic[uid] {
		if c, ok := h.conns[connID]; ok {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range members {
		if err := c.send(data, h.writeTimeout); err != nil {
			h.log.Debug("event delivery failed", "conn", c.id, "uid", uid, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// CaptureCreated implements the store Notifier.
func (h *Hub) CaptureCreated(uid string, requestID int) {
	h.Publish(uid, Event{Event: EventCaptureCreated, RequestID: requestID})
}

// CaptureDeleted implements the store Notifier.
func (h *Hub) CaptureDeleted(uid string, requestID int) {
	h.Publish(uid, Event{Event: EventCaptureDeleted, RequestID: requestID})
}

// CollectorDeleted implements the store Notifier. After this event the
// topic is retired; remaining members keep their connections but will
// never hear about that uid again.
func (h *Hub) CollectorDeleted(uid string) {
	h.Publish(uid, Event{Event: EventCollectorDeleted})
}

// ConnectionCount returns the number of live subscriber connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// TopicMembers returns the number of connections subscribed to uid.
func (h *Hub) TopicMembers(uid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byTopic[uid])
}

// Close tears down every connection. Used at server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*conn)
	h.byTopic = make(map[string]map[string]bool)
	h.byConn = make(map[string]map[string]bool)
	h.mu.Unlock()

	for _, c := range conns {
		c.close(ws.StatusGoingAway, "server shutting down")
	}
}
