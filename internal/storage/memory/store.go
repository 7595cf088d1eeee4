package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hakoke/impostor/internal/model/game"
	"github.com/hakoke/impostor/internal/storage"
)

// Store implements storage.Store with in-process maps. It backs tests and
// single-node development runs.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]game.Session
	participants map[string]game.Participant
	profiles     []game.PersonalityProfile
	exchanges    map[string][]game.Exchange
	votes        []game.Vote
	pairings     map[string][]game.Pairing
	mindGames    map[string]game.MindGame
	mgResponses  map[string][]game.MindGameResponse
	results      []game.Result
	knowledge    []game.KnowledgeEntry
	exchangeSeq  uint
	voteSeq      uint
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		sessions:     make(map[string]game.Session),
		participants: make(map[string]game.Participant),
		exchanges:    make(map[string][]game.Exchange),
		pairings:     make(map[string][]game.Pairing),
		mindGames:    make(map[string]game.MindGame),
		mgResponses:  make(map[string][]game.MindGameResponse),
	}
}

func (s *Store) CreateSession(_ context.Context, sess game.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (game.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return game.Session{}, storage.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) UpdateSession(_ context.Context, sess game.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return storage.ErrSessionNotFound
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *Store) AddParticipant(_ context.Context, p game.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[p.SessionID]; !ok {
		return storage.ErrSessionNotFound
	}
	s.participants[p.ID] = p
	return nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (game.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return game.Participant{}, storage.ErrParticipantNotFound
	}
	return p, nil
}

func (s *Store) ListParticipants(_ context.Context, sessionID string) ([]game.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]game.Participant, 0, 8)
	for _, p := range s.participants {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *Store) UpdateParticipant(_ context.Context, p game.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; !ok {
		return storage.ErrParticipantNotFound
	}
	s.participants[p.ID] = p
	return nil
}

func (s *Store) SaveProfile(_ context.Context, p game.PersonalityProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.profiles {
		if existing.SessionID == p.SessionID && existing.ParticipantID == p.ParticipantID {
			p.ID = existing.ID
			s.profiles[i] = p
			return nil
		}
	}
	p.ID = uint(len(s.profiles) + 1)
	s.profiles = append(s.profiles, p)
	return nil
}

func (s *Store) GetProfile(_ context.Context, sessionID, participantID string) (game.PersonalityProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.SessionID == sessionID && p.ParticipantID == participantID {
			return p, nil
		}
	}
	return game.PersonalityProfile{}, storage.ErrParticipantNotFound
}

func (s *Store) AppendExchange(_ context.Context, e game.Exchange) (game.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchangeSeq++
	e.ID = s.exchangeSeq
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.exchanges[e.SessionID] = append(s.exchanges[e.SessionID], e)
	return e, nil
}

func (s *Store) ListExchanges(_ context.Context, sessionID string, f storage.ExchangeFilter) ([]game.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]game.Exchange, 0, 32)
	for _, e := range s.exchanges[sessionID] {
		if f.Phase != "" && e.Phase != f.Phase {
			continue
		}
		if f.RoundNumber > 0 && e.RoundNumber != f.RoundNumber {
			continue
		}
		if f.WithID != "" && e.SenderID != f.WithID && e.RecipientID != f.WithID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) UpsertVote(_ context.Context, v game.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.votes {
		if existing.SessionID == v.SessionID && existing.VoterID == v.VoterID && existing.RoundNumber == v.RoundNumber {
			v.ID = existing.ID
			s.votes[i] = v
			return nil
		}
	}
	s.voteSeq++
	v.ID = s.voteSeq
	s.votes = append(s.votes, v)
	return nil
}

func (s *Store) ListVotes(_ context.Context, sessionID string) ([]game.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]game.Vote, 0, 8)
	for _, v := range s.votes {
		if v.SessionID == sessionID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) CreatePairing(_ context.Context, p game.Pairing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = uint(len(s.pairings[p.SessionID]) + 1)
	s.pairings[p.SessionID] = append(s.pairings[p.SessionID], p)
	return nil
}

func (s *Store) ListPairings(_ context.Context, sessionID string) ([]game.Pairing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]game.Pairing, len(s.pairings[sessionID]))
	copy(out, s.pairings[sessionID])
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (s *Store) CreateMindGame(_ context.Context, m game.MindGame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mindGames[m.ID] = m
	return nil
}

func (s *Store) UpdateMindGame(_ context.Context, m game.MindGame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mindGames[m.ID]; !ok {
		return storage.ErrMindGameNotFound
	}
	s.mindGames[m.ID] = m
	return nil
}

func (s *Store) GetMindGame(_ context.Context, id string) (game.MindGame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mindGames[id]
	if !ok {
		return game.MindGame{}, storage.ErrMindGameNotFound
	}
	return m, nil
}

func (s *Store) ListMindGames(_ context.Context, sessionID string) ([]game.MindGame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]game.MindGame, 0, 4)
	for _, m := range s.mindGames {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (s *Store) UpsertMindGameResponse(_ context.Context, r game.MindGameResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mindGames[r.MindGameID]; !ok {
		return storage.ErrMindGameNotFound
	}
	responses := s.mgResponses[r.MindGameID]
	for i, existing := range responses {
		if existing.ParticipantID == r.ParticipantID {
			r.ID = existing.ID
			responses[i] = r
			return nil
		}
	}
	r.ID = uint(len(responses) + 1)
	s.mgResponses[r.MindGameID] = append(responses, r)
	return nil
}

func (s *Store) ListMindGameResponses(_ context.Context, mindGameID string) ([]game.MindGameResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]game.MindGameResponse, len(s.mgResponses[mindGameID]))
	copy(out, s.mgResponses[mindGameID])
	return out, nil
}

func (s *Store) SaveResult(_ context.Context, r game.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uint(len(s.results) + 1)
	s.results = append(s.results, r)
	return nil
}

func (s *Store) AppendKnowledge(_ context.Context, k game.KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k.ID = uint(len(s.knowledge) + 1)
	s.knowledge = append(s.knowledge, k)
	return nil
}

func (s *Store) ListKnowledge(_ context.Context, limit int) ([]game.KnowledgeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]game.KnowledgeEntry, len(s.knowledge))
	copy(out, s.knowledge)
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
