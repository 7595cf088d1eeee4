package game

import "time"

// AISender is the sentinel identity used wherever a participant id is
// expected but the author is the impostor itself.
const AISender = "ai"

// Participant is a human player within a session. The alias triple is
// assigned exactly once at join time and never changes.
type Participant struct {
	ID            string            `json:"id" gorm:"primaryKey"`
	SessionID     string            `json:"sessionId" gorm:"index"`
	Username      string            `json:"username"`
	Alias         string            `json:"alias"`
	AliasBadge    string            `json:"aliasBadge"`
	AliasColor    string            `json:"aliasColor"`
	SocialHandles map[string]string `json:"socialHandles,omitempty" gorm:"serializer:json"`
	Connected     bool              `json:"connected"`
	Score         int               `json:"score"`
	JoinedAt      time.Time         `json:"joinedAt"`
}
