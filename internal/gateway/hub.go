package gateway

import (
	"sync"

	"github.com/atriumverse/atrium/internal/observability"
	"go.uber.org/zap"
)

// Client is one live connection's hub handle. The transport layer owns the
// socket; the hub only ever touches the outbound channel.
type Client struct {
	ID   string
	send chan Event
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:   id,
		send: make(chan Event, bufferSize),
	}
}

// Send exposes the outbound channel to the write pump. The hub closes it
// on unregister; a closed channel is the pump's signal to exit.
func (c *Client) Send() <-chan Event {
	return c.send
}

type audienceKind int

const (
	audSelf audienceKind = iota
	audPeer
	audRoomOthers
	audRoomAll
	audAllOthers
)

// Audience is the closed set of delivery scopes. Handlers construct one
// through the helpers below; there is no way to express an unsupported
// scope.
type Audience struct {
	kind   audienceKind
	connID string
	roomID string
}

// Self targets the sending connection only.
func Self() Audience { return Audience{kind: audSelf} }

// Peer targets one specific connection.
func Peer(connID string) Audience { return Audience{kind: audPeer, connID: connID} }

// RoomOthers targets every subscriber of a room except the sender.
func RoomOthers(roomID string) Audience { return Audience{kind: audRoomOthers, roomID: roomID} }

// RoomAll targets every subscriber of a room, sender included.
func RoomAll(roomID string) Audience { return Audience{kind: audRoomAll, roomID: roomID} }

// AllOthers targets every connection except the sender.
func AllOthers() Audience { return Audience{kind: audAllOthers} }

func (a Audience) label() string {
	switch a.kind {
	case audSelf:
		return "self"
	case audPeer:
		return "peer"
	case audRoomOthers:
		return "room_others"
	case audRoomAll:
		return "room_all"
	default:
		return "all_others"
	}
}

// Hub tracks live connections and their room subscriptions and fans
// events out to audiences. Delivery is fire-and-forget: a full outbound
// buffer drops the event rather than blocking the hub.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	rooms    map[string]map[string]bool
	shutdown bool

	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewHub(logger *zap.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a connection. It fails only during shutdown, so the
// transport can refuse late upgrades cleanly.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shutdown {
		return false
	}

	h.clients[c.ID] = c
	h.metrics.ConnOpened()
	h.logger.Debug("connection registered", zap.String("connection_id", c.ID))
	return true
}

// Unregister removes a connection from every room it subscribed to and
// closes its outbound channel.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)

	for roomID, members := range h.rooms {
		if members[connID] {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	close(c.send)
	h.metrics.ConnClosed()
	h.logger.Debug("connection unregistered", zap.String("connection_id", connID))
}

// Subscribe adds a connection to a room scope. Unknown connections are
// ignored so a racing disconnect cannot resurrect an entry.
func (h *Hub) Subscribe(connID, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return false
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][connID] = true
	return true
}

func (h *Hub) Unsubscribe(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Emit delivers an event to the audience, resolved against the sender's
// connection. Targets whose buffer is full lose the event; the hub never
// blocks on a slow consumer.
func (h *Hub) Emit(senderConnID string, aud Audience, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.resolveLocked(senderConnID, aud) {
		select {
		case c.send <- ev:
			delivered++
		default:
			h.metrics.RecordDrop(ev.Name)
			h.logger.Warn("outbound buffer full, dropping event",
				zap.String("connection_id", c.ID),
				zap.String("event", ev.Name),
			)
		}
	}
	h.metrics.RecordEmit(aud.label(), delivered)
}

// resolveLocked expects h.mu held (read suffices).
func (h *Hub) resolveLocked(senderConnID string, aud Audience) []*Client {
	switch aud.kind {
	case audSelf:
		if c, ok := h.clients[senderConnID]; ok {
			return []*Client{c}
		}
		return nil
	case audPeer:
		if c, ok := h.clients[aud.connID]; ok {
			return []*Client{c}
		}
		return nil
	case audRoomOthers, audRoomAll:
		members := h.rooms[aud.roomID]
		targets := make([]*Client, 0, len(members))
		for connID := range members {
			if aud.kind == audRoomOthers && connID == senderConnID {
				continue
			}
			if c, ok := h.clients[connID]; ok {
				targets = append(targets, c)
			}
		}
		return targets
	default: // audAllOthers
		targets := make([]*Client, 0, len(h.clients))
		for connID, c := range h.clients {
			if connID == senderConnID {
				continue
			}
			targets = append(targets, c)
		}
		return targets
	}
}

func (h *Hub) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize reports current subscriber count for a room scope.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Shutdown rejects further registrations and closes every live
// connection's outbound channel.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.shutdown = true
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.rooms = make(map[string]map[string]bool)
}
