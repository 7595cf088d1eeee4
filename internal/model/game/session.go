package game

import "time"

// Mode selects which deception format a session runs.
type Mode string

const (
	ModeGroup   Mode = "group"
	ModePrivate Mode = "private"
)

// Status is the session's top-level phase. Transitions only move forward
// through the sequence returned by NextStatus, except for an explicit finish.
type Status string

const (
	StatusLobby       Status = "lobby"
	StatusLearning    Status = "learning"
	StatusResearching Status = "researching"
	StatusPlaying     Status = "playing"
	StatusMindGames   Status = "mind_games"
	StatusReact       Status = "react"
	StatusVoting      Status = "voting"
	StatusFinished    Status = "finished"
)

// statusOrder fixes the forward sequence for group mode. Private mode skips
// the mind_games and react stages.
var statusOrder = map[Status]int{
	StatusLobby:       0,
	StatusLearning:    1,
	StatusResearching: 2,
	StatusPlaying:     3,
	StatusMindGames:   4,
	StatusReact:       5,
	StatusVoting:      6,
	StatusFinished:    7,
}

// Ordinal returns the position of a status in the forward sequence.
func (s Status) Ordinal() int { return statusOrder[s] }

// NextStatus returns the stage that follows s for the given mode.
func NextStatus(s Status, mode Mode) Status {
	switch s {
	case StatusLobby:
		return StatusLearning
	case StatusLearning:
		return StatusResearching
	case StatusResearching:
		return StatusPlaying
	case StatusPlaying:
		if mode == ModePrivate {
			return StatusVoting
		}
		return StatusMindGames
	case StatusMindGames:
		return StatusReact
	case StatusReact:
		return StatusVoting
	case StatusVoting:
		return StatusFinished
	default:
		return StatusFinished
	}
}

// PersonaBinding is an alias identity the AI may speak through.
type PersonaBinding struct {
	ParticipantID string `json:"participantId"`
	Alias         string `json:"alias"`
	Badge         string `json:"badge"`
	Color         string `json:"color"`
}

// StageWindow records one scheduled stage of the session timeline.
type StageWindow struct {
	Stage    Status    `json:"stage"`
	Duration int       `json:"duration"` // seconds
	Deadline time.Time `json:"deadline"`
}

// Settings holds the ephemeral orchestration state for a session. It replaces
// the loose JSON blob of earlier iterations with explicit optional fields so
// the ad hoc keys are visible at compile time.
type Settings struct {
	LearningSeconds     int `json:"learningSeconds"`
	PlaySeconds         int `json:"playSeconds"`
	PrivateRoundSeconds int `json:"privateRoundSeconds"`

	// Group mode: the single scored impersonation target plus the ad-lib
	// persona set (one alias-bound identity per participant).
	TargetID string                    `json:"targetId,omitempty"`
	Personas map[string]PersonaBinding `json:"personas,omitempty"`

	Timeline []StageWindow `json:"timeline,omitempty"`
}

// Session is one game instance.
type Session struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	Mode         Mode       `json:"mode"`
	Status       Status     `json:"status" gorm:"index"`
	CurrentRound int        `json:"currentRound"`
	TotalRounds  int        `json:"totalRounds"`
	Settings     Settings   `json:"settings" gorm:"serializer:json"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
}
