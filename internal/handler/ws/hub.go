package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// client is one connected participant socket.
type client struct {
	sessionID     string
	participantID string
	conn          *websocket.Conn
	send          chan []byte
}

// Hub tracks live connections per session and fans events out to them. It is
// the concrete Broadcaster handed to the game orchestrator.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*client // session -> participant -> client
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]map[string]*client)}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		clients = make(map[string]*client)
		h.sessions[c.sessionID] = clients
	}
	if old, ok := clients[c.participantID]; ok {
		// Reconnect: the newer socket wins.
		close(old.send)
	}
	clients[c.participantID] = c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}
	if current, ok := clients[c.participantID]; ok && current == c {
		close(current.send)
		delete(clients, c.participantID)
	}
	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}
}

// Broadcast sends the payload to every connected participant in the session.
func (h *Hub) Broadcast(sessionID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[ws] failed to encode broadcast: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.sessions[sessionID] {
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop the event rather than block the session.
			log.Printf("[ws] dropping event for %s, send buffer full", c.participantID)
		}
	}
}

// Unicast sends the payload to a single participant, if connected.
func (h *Hub) Unicast(sessionID, participantID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[ws] failed to encode unicast: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.sessions[sessionID][participantID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[ws] dropping event for %s, send buffer full", participantID)
	}
}

// Connected reports whether the participant currently holds a live socket.
func (h *Hub) Connected(sessionID, participantID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[sessionID][participantID]
	return ok
}
