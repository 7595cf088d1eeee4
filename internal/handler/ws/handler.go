package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	gameService "github.com/hakoke/impostor/internal/service/game"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 64
)

// Handler upgrades game sockets and pumps inbound events into the
// orchestrator.
type Handler struct {
	hub          *Hub
	orchestrator *gameService.Orchestrator
	upgrader     websocket.Upgrader
}

// NewHandler creates the websocket handler bound to a hub.
func NewHandler(hub *Hub, orchestrator *gameService.Orchestrator) *Handler {
	return &Handler{
		hub:          hub,
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the game socket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}/{participantID}", h.handleSocket)
}

type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type chatPayload struct {
	Content     string `json:"content"`
	RecipientID string `json:"recipientId,omitempty"`
}

type mindGamePayload struct {
	MindGameID string `json:"mindGameId"`
	Answer     string `json:"answer"`
}

type typingPayload struct {
	IsTyping bool `json:"isTyping"`
}

func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	participantID := chi.URLParam(r, "participantID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}

	c := &client{
		sessionID:     sessionID,
		participantID: participantID,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
	}
	h.hub.register(c)
	h.orchestrator.SetConnected(r.Context(), sessionID, participantID, true)
	log.Printf("[ws] participant %s connected to session %s", participantID, sessionID)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Handler) readPump(c *client) {
	defer func() {
		h.hub.unregister(c)
		c.conn.Close()
		// On reconnect the old socket's teardown races the new registration.
		// Only flip liveness if no replacement socket is registered.
		if !h.hub.Connected(c.sessionID, c.participantID) {
			h.orchestrator.SetConnected(context.Background(), c.sessionID, c.participantID, false)
			log.Printf("[ws] participant %s disconnected from session %s", c.participantID, c.sessionID)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error for %s: %v", c.participantID, err)
			}
			return
		}

		var event inboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			h.sendError(c, "invalid event")
			continue
		}
		h.dispatch(c, event)
	}
}

func (h *Handler) dispatch(c *client, event inboundEvent) {
	ctx := context.Background()

	switch event.Type {
	case "chat_message":
		var payload chatPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.Content == "" {
			h.sendError(c, "invalid chat payload")
			return
		}
		_, err := h.orchestrator.HandleExchange(ctx, gameService.InboundExchange{
			SessionID:   c.sessionID,
			SenderID:    c.participantID,
			RecipientID: payload.RecipientID,
			Content:     payload.Content,
		})
		if err != nil {
			h.sendError(c, wsErrorCode(err))
		}

	case "mind_game_response":
		var payload mindGamePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.MindGameID == "" {
			h.sendError(c, "invalid mind game payload")
			return
		}
		if err := h.orchestrator.SubmitMindGameResponse(ctx, c.sessionID, payload.MindGameID, c.participantID, payload.Answer); err != nil {
			h.sendError(c, wsErrorCode(err))
		}

	case "typing":
		var payload typingPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return
		}
		h.orchestrator.NoteTyping(c.sessionID, c.participantID, payload.IsTyping)

	default:
		h.sendError(c, "unknown event type")
	}
}

// wsErrorCode maps orchestrator errors to the stable codes clients key on.
func wsErrorCode(err error) string {
	switch {
	case errors.Is(err, gameService.ErrDeadlineExpired):
		return "deadline_expired"
	case errors.Is(err, gameService.ErrStageClosed):
		return "stage_closed"
	case errors.Is(err, gameService.ErrSessionOver):
		return "session_finished"
	default:
		return "internal_error"
	}
}

func (h *Handler) sendError(c *client, code string) {
	data, err := json.Marshal(map[string]any{"type": "error", "code": code})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Handler) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
