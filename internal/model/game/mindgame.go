package game

import "time"

// Pairing is one private-mode round: two seats, one of which may be the AI
// impersonating the displaced participant.
type Pairing struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID       string    `json:"sessionId" gorm:"index"`
	RoundNumber     int       `json:"roundNumber"`
	Participant1ID  string    `json:"participant1Id"`
	Participant2ID  string    `json:"participant2Id"`
	ImpersonatingID string    `json:"impersonatingId,omitempty"` // whose seat the AI took
	StartedAt       time.Time `json:"startedAt"`
	DurationSeconds int       `json:"durationSeconds"`
}

// HasAI reports whether one seat of the pairing is AI-driven.
func (p Pairing) HasAI() bool {
	return p.Participant1ID == AISender || p.Participant2ID == AISender
}

// PartnerOf returns the identity sitting across from the given participant,
// or "" if the participant is not part of this pairing.
func (p Pairing) PartnerOf(participantID string) string {
	switch participantID {
	case p.Participant1ID:
		return p.Participant2ID
	case p.Participant2ID:
		return p.Participant1ID
	default:
		return ""
	}
}

// MindGame is one scripted prompt cycle within the group-mode mind_games
// stage.
type MindGame struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	SessionID       string    `json:"sessionId" gorm:"index"`
	Sequence        int       `json:"sequence"`
	Prompt          string    `json:"prompt"`
	Instructions    string    `json:"instructions"`
	RevealTitle     string    `json:"revealTitle"`
	DurationSeconds int       `json:"durationSeconds"`
	StartedAt       time.Time `json:"startedAt"`
}

// MindGameResponse is one identity's answer to a mind game. At most one
// response exists per (mind game, identity); resubmission replaces it.
type MindGameResponse struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	MindGameID    string    `json:"mindGameId" gorm:"index:idx_mg_response,unique"`
	ParticipantID string    `json:"participantId" gorm:"index:idx_mg_response,unique"` // or AISender
	Alias         string    `json:"alias"`
	AliasBadge    string    `json:"aliasBadge"`
	AliasColor    string    `json:"aliasColor"`
	Answer        string    `json:"answer"`
	IsAI          bool      `json:"isAi"`
	LatencyMS     int       `json:"latencyMs"`
	SubmittedAt   time.Time `json:"submittedAt"`
}
