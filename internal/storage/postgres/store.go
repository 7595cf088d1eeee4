package postgres

import (
	"context"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hakoke/impostor/internal/model/game"
	"github.com/hakoke/impostor/internal/storage"
)

// Store implements storage.Store on top of Postgres via GORM.
type Store struct {
	db *gorm.DB
}

// Open connects to the database and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&game.Session{},
		&game.Participant{},
		&game.PersonalityProfile{},
		&game.Exchange{},
		&game.Vote{},
		&game.Pairing{},
		&game.MindGame{},
		&game.MindGameResponse{},
		&game.Result{},
		&game.KnowledgeEntry{},
	); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateSession(ctx context.Context, sess game.Session) error {
	return s.db.WithContext(ctx).Create(&sess).Error
}

func (s *Store) GetSession(ctx context.Context, id string) (game.Session, error) {
	var sess game.Session
	err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.Session{}, storage.ErrSessionNotFound
	}
	return sess, err
}

func (s *Store) UpdateSession(ctx context.Context, sess game.Session) error {
	res := s.db.WithContext(ctx).Model(&game.Session{}).Where("id = ?", sess.ID).
		Select("Mode", "Status", "CurrentRound", "TotalRounds", "Settings", "StartedAt", "EndedAt").
		Updates(&sess)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrSessionNotFound
	}
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, p game.Participant) error {
	return s.db.WithContext(ctx).Create(&p).Error
}

func (s *Store) GetParticipant(ctx context.Context, id string) (game.Participant, error) {
	var p game.Participant
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.Participant{}, storage.ErrParticipantNotFound
	}
	return p, err
}

func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]game.Participant, error) {
	var out []game.Participant
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("joined_at asc").
		Find(&out).Error
	return out, err
}

func (s *Store) UpdateParticipant(ctx context.Context, p game.Participant) error {
	res := s.db.WithContext(ctx).Model(&game.Participant{}).Where("id = ?", p.ID).
		Select("Username", "Alias", "AliasBadge", "AliasColor", "SocialHandles", "Connected", "Score").
		Updates(&p)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrParticipantNotFound
	}
	return nil
}

func (s *Store) SaveProfile(ctx context.Context, p game.PersonalityProfile) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "participant_id"}},
		UpdateAll: true,
	}).Create(&p).Error
}

func (s *Store) GetProfile(ctx context.Context, sessionID, participantID string) (game.PersonalityProfile, error) {
	var p game.PersonalityProfile
	err := s.db.WithContext(ctx).
		First(&p, "session_id = ? AND participant_id = ?", sessionID, participantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.PersonalityProfile{}, storage.ErrParticipantNotFound
	}
	return p, err
}

func (s *Store) AppendExchange(ctx context.Context, e game.Exchange) (game.Exchange, error) {
	err := s.db.WithContext(ctx).Create(&e).Error
	return e, err
}

func (s *Store) ListExchanges(ctx context.Context, sessionID string, f storage.ExchangeFilter) ([]game.Exchange, error) {
	q := s.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if f.Phase != "" {
		q = q.Where("phase = ?", f.Phase)
	}
	if f.RoundNumber > 0 {
		q = q.Where("round_number = ?", f.RoundNumber)
	}
	if f.WithID != "" {
		q = q.Where("sender_id = ? OR recipient_id = ?", f.WithID, f.WithID)
	}
	var out []game.Exchange
	err := q.Order("timestamp asc").Find(&out).Error
	return out, err
}

func (s *Store) UpsertVote(ctx context.Context, v game.Vote) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "voter_id"}, {Name: "round_number"}},
		UpdateAll: true,
	}).Create(&v).Error
}

func (s *Store) ListVotes(ctx context.Context, sessionID string) ([]game.Vote, error) {
	var out []game.Vote
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Find(&out).Error
	return out, err
}

func (s *Store) CreatePairing(ctx context.Context, p game.Pairing) error {
	return s.db.WithContext(ctx).Create(&p).Error
}

func (s *Store) ListPairings(ctx context.Context, sessionID string) ([]game.Pairing, error) {
	var out []game.Pairing
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("round_number asc").
		Find(&out).Error
	return out, err
}

func (s *Store) CreateMindGame(ctx context.Context, m game.MindGame) error {
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) UpdateMindGame(ctx context.Context, m game.MindGame) error {
	res := s.db.WithContext(ctx).Model(&game.MindGame{}).Where("id = ?", m.ID).
		Select("StartedAt").
		Updates(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrMindGameNotFound
	}
	return nil
}

func (s *Store) GetMindGame(ctx context.Context, id string) (game.MindGame, error) {
	var m game.MindGame
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.MindGame{}, storage.ErrMindGameNotFound
	}
	return m, err
}

func (s *Store) ListMindGames(ctx context.Context, sessionID string) ([]game.MindGame, error) {
	var out []game.MindGame
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence asc").
		Find(&out).Error
	return out, err
}

func (s *Store) UpsertMindGameResponse(ctx context.Context, r game.MindGameResponse) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "mind_game_id"}, {Name: "participant_id"}},
		UpdateAll: true,
	}).Create(&r).Error
}

func (s *Store) ListMindGameResponses(ctx context.Context, mindGameID string) ([]game.MindGameResponse, error) {
	var out []game.MindGameResponse
	err := s.db.WithContext(ctx).
		Where("mind_game_id = ?", mindGameID).
		Order("submitted_at asc").
		Find(&out).Error
	return out, err
}

func (s *Store) SaveResult(ctx context.Context, r game.Result) error {
	return s.db.WithContext(ctx).Create(&r).Error
}

func (s *Store) AppendKnowledge(ctx context.Context, k game.KnowledgeEntry) error {
	return s.db.WithContext(ctx).Create(&k).Error
}

func (s *Store) ListKnowledge(ctx context.Context, limit int) ([]game.KnowledgeEntry, error) {
	q := s.db.WithContext(ctx).Order("updated_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []game.KnowledgeEntry
	err := q.Find(&out).Error
	return out, err
}
