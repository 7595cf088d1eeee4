package game

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	model "github.com/hakoke/impostor/internal/model/game"
	gameService "github.com/hakoke/impostor/internal/service/game"
	"github.com/hakoke/impostor/internal/storage"
	"github.com/hakoke/impostor/pkg/utils"
)

// Handler exposes the game lifecycle over HTTP. Realtime traffic rides the
// websocket; these routes cover setup, voting and read-back.
type Handler struct {
	orchestrator *gameService.Orchestrator
	store        storage.Store
}

// New creates the game handler.
func New(orchestrator *gameService.Orchestrator, store storage.Store) *Handler {
	return &Handler{orchestrator: orchestrator, store: store}
}

// RegisterRoutes registers the game REST routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/game/session", h.handleCreateSession)
	r.Get("/game/session/{sessionID}", h.handleGetState)
	r.Post("/game/session/{sessionID}/join", h.handleJoin)
	r.Post("/game/session/{sessionID}/start", h.handleStart)
	r.Post("/game/session/{sessionID}/vote", h.handleVote)
	r.Post("/game/session/{sessionID}/finish", h.handleFinish)
	r.Post("/game/participants/{participantID}/handles", h.handleUpdateHandles)
	r.Get("/game/knowledge", h.handleListKnowledge)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.orchestrator.CreateSession(r.Context(), model.Mode(payload.Mode))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := h.store.GetSession(r.Context(), sessionID)
	if err != nil {
		respondGameError(w, err)
		return
	}
	participants, err := h.store.ListParticipants(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session":      sess,
		"participants": participants,
	})
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Username == "" {
		utils.RespondError(w, http.StatusBadRequest, "username is required")
		return
	}

	participant, err := h.orchestrator.Join(r.Context(), sessionID, payload.Username)
	if err != nil {
		respondGameError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, participant)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.orchestrator.Start(r.Context(), sessionID); err != nil {
		respondGameError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		VoterID          string `json:"voterId"`
		RoundNumber      int    `json:"roundNumber"`
		VotedAIID        string `json:"votedAiId"`
		GuessedPartnerID string `json:"guessedPartnerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.VoterID == "" {
		utils.RespondError(w, http.StatusBadRequest, "voterId is required")
		return
	}
	if payload.RoundNumber == 0 {
		payload.RoundNumber = 1
	}

	err := h.orchestrator.SubmitVote(r.Context(), sessionID, payload.VoterID,
		payload.RoundNumber, payload.VotedAIID, payload.GuessedPartnerID)
	if err != nil {
		respondGameError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.orchestrator.ForceFinish(r.Context(), sessionID); err != nil {
		respondGameError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "finished"})
}

func (h *Handler) handleUpdateHandles(w http.ResponseWriter, r *http.Request) {
	participantID := chi.URLParam(r, "participantID")

	var payload struct {
		Handles map[string]string `json:"handles"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.orchestrator.UpdateHandles(r.Context(), participantID, payload.Handles); err != nil {
		respondGameError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListKnowledge(r.Context(), 50)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list knowledge")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// respondGameError maps domain errors onto HTTP statuses.
func respondGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound),
		errors.Is(err, storage.ErrParticipantNotFound),
		errors.Is(err, storage.ErrMindGameNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, gameService.ErrNotInLobby),
		errors.Is(err, gameService.ErrStageClosed),
		errors.Is(err, gameService.ErrSessionOver):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, gameService.ErrDeadlineExpired):
		utils.RespondError(w, http.StatusGone, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
