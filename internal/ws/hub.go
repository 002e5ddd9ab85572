package ws

import (
	"encoding/json"
	"log"
	"sync"

	"chat-hub/internal/models"
	"chat-hub/internal/observability"
)

// Hub tracks live connections per user, room subscriptions per connection and
// the single foreground room of each connection. It is process-local state.
type Hub struct {
	mu     sync.RWMutex
	users  map[string]map[*Client]struct{}
	rooms  map[string]map[*Client]struct{}
	subs   map[*Client]map[string]struct{}
	active map[*Client]string
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		users:  make(map[string]map[*Client]struct{}),
		rooms:  make(map[string]map[*Client]struct{}),
		subs:   make(map[*Client]map[string]struct{}),
		active: make(map[*Client]string),
	}
}

// Register adds a connection to its user's channel.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.users[c.UserID()]
	if !ok {
		conns = make(map[*Client]struct{})
		h.users[c.UserID()] = conns
	}
	conns[c] = struct{}{}
	h.subs[c] = make(map[string]struct{})
}

// Unregister removes every trace of a connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[c.UserID()]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.UserID())
		}
	}
	for roomID := range h.subs[c] {
		if conns, ok := h.rooms[roomID]; ok {
			delete(conns, c)
			if len(conns) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	delete(h.subs, c)
	delete(h.active, c)
}

// Subscribe adds a registered connection to a room's broadcast set.
func (h *Hub) Subscribe(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribeLocked(c, roomID)
}

// SubscribeUser subscribes every live connection of userID to roomID.
func (h *Hub) SubscribeUser(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.users[userID] {
		h.subscribeLocked(c, roomID)
	}
}

func (h *Hub) subscribeLocked(c *Client, roomID string) {
	subs, ok := h.subs[c]
	if !ok {
		return
	}
	subs[roomID] = struct{}{}
	conns, ok := h.rooms[roomID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.rooms[roomID] = conns
	}
	conns[c] = struct{}{}
}

// SetActiveRoom sets the foreground room of a connection. An empty roomID
// clears it; a new room replaces the previous one.
func (h *Hub) SetActiveRoom(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[c]; !ok {
		return
	}
	if roomID == "" {
		delete(h.active, c)
		return
	}
	h.active[c] = roomID
}

// ActiveRoom returns the foreground room of a connection, if any.
func (h *Hub) ActiveRoom(c *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active[c]
}

// ResolveLiveConnections returns every open connection of userID.
func (h *Hub) ResolveLiveConnections(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		out = append(out, c)
	}
	return out
}

// ResolveActiveViewers keeps the candidates that have at least one
// connection with roomID in the foreground.
func (h *Hub) ResolveActiveViewers(roomID string, candidates []string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	viewers := make([]string, 0, len(candidates))
	for _, userID := range candidates {
		for c := range h.users[userID] {
			if h.active[c] == roomID {
				viewers = append(viewers, userID)
				break
			}
		}
	}
	return viewers
}

// BroadcastToUser delivers to every connection of userID and returns how many accepted it.
func (h *Hub) BroadcastToUser(userID string, event models.ServerEvent) int {
	return h.deliver(event, h.ResolveLiveConnections(userID))
}

// BroadcastToRoom delivers to every connection subscribed to roomID.
func (h *Hub) BroadcastToRoom(roomID string, event models.ServerEvent) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.deliver(event, targets)
}

// BroadcastToConnection delivers to a single connection.
func (h *Hub) BroadcastToConnection(c *Client, event models.ServerEvent) bool {
	return h.deliver(event, []*Client{c}) == 1
}

func (h *Hub) deliver(event models.ServerEvent, targets []*Client) int {
	if len(targets) == 0 {
		return 0
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws encode failed event=%s err=%v", event.Event, err)
		return 0
	}
	delivered := 0
	for _, c := range targets {
		if c.enqueue(payload) {
			delivered++
			continue
		}
		observability.IncWSDropped(event.Event)
	}
	return delivered
}
