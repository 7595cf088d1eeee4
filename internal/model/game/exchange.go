package game

import "time"

// Exchange is one chat message. Alias fields are snapshots captured at send
// time so history stays stable regardless of later alias state.
type Exchange struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID       string    `json:"sessionId" gorm:"index"`
	RoundNumber     int       `json:"roundNumber"`
	Phase           Status    `json:"phase"`
	SenderID        string    `json:"senderId"` // participant id or AISender
	RecipientID     string    `json:"recipientId,omitempty"`
	ImpersonatingID string    `json:"impersonatingId,omitempty"`
	Content         string    `json:"content"`
	IsAI            bool      `json:"isAi"`
	Alias           string    `json:"alias"`
	AliasBadge      string    `json:"aliasBadge"`
	AliasColor      string    `json:"aliasColor"`
	LatencyMS       int       `json:"latencyMs"`
	Timestamp       time.Time `json:"timestamp" gorm:"index"`
}
