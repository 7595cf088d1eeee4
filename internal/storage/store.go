package storage

import (
	"context"
	"errors"

	"github.com/hakoke/impostor/internal/model/game"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrMindGameNotFound    = errors.New("mind game not found")
)

// ExchangeFilter narrows transcript queries. Zero values mean "any".
type ExchangeFilter struct {
	Phase       game.Status
	RoundNumber int // -1 means any
	WithID      string
}

// Store is the persistence boundary the game core consumes. Implementations
// must keep writes read-modify-write safe; callers re-fetch after every
// suspension point instead of trusting stale copies.
type Store interface {
	CreateSession(ctx context.Context, s game.Session) error
	GetSession(ctx context.Context, id string) (game.Session, error)
	UpdateSession(ctx context.Context, s game.Session) error

	AddParticipant(ctx context.Context, p game.Participant) error
	GetParticipant(ctx context.Context, id string) (game.Participant, error)
	ListParticipants(ctx context.Context, sessionID string) ([]game.Participant, error)
	UpdateParticipant(ctx context.Context, p game.Participant) error

	SaveProfile(ctx context.Context, p game.PersonalityProfile) error
	GetProfile(ctx context.Context, sessionID, participantID string) (game.PersonalityProfile, error)

	AppendExchange(ctx context.Context, e game.Exchange) (game.Exchange, error)
	ListExchanges(ctx context.Context, sessionID string, f ExchangeFilter) ([]game.Exchange, error)

	UpsertVote(ctx context.Context, v game.Vote) error
	ListVotes(ctx context.Context, sessionID string) ([]game.Vote, error)

	CreatePairing(ctx context.Context, p game.Pairing) error
	ListPairings(ctx context.Context, sessionID string) ([]game.Pairing, error)

	CreateMindGame(ctx context.Context, m game.MindGame) error
	UpdateMindGame(ctx context.Context, m game.MindGame) error
	GetMindGame(ctx context.Context, id string) (game.MindGame, error)
	ListMindGames(ctx context.Context, sessionID string) ([]game.MindGame, error)
	UpsertMindGameResponse(ctx context.Context, r game.MindGameResponse) error
	ListMindGameResponses(ctx context.Context, mindGameID string) ([]game.MindGameResponse, error)

	SaveResult(ctx context.Context, r game.Result) error
	AppendKnowledge(ctx context.Context, k game.KnowledgeEntry) error
	ListKnowledge(ctx context.Context, limit int) ([]game.KnowledgeEntry, error)
}
