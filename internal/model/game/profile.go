package game

import "time"

// TypingMetrics summarizes how one participant writes, derived from their
// learning-phase messages by the typing analyzer.
type TypingMetrics struct {
	MessageCount    int            `json:"messageCount"`
	AvgLength       float64        `json:"avgLength"`
	CapsRatio       float64        `json:"capsRatio"`
	PeriodsPerMsg   float64        `json:"periodsPerMsg"`
	ExclaimsPerMsg  float64        `json:"exclaimsPerMsg"`
	QuestionsPerMsg float64        `json:"questionsPerMsg"`
	EllipsisCount   int            `json:"ellipsisCount"`
	AllLowercase    bool           `json:"allLowercase"`
	EmojiPerMsg     float64        `json:"emojiPerMsg"`
	TopEmojis       []string       `json:"topEmojis,omitempty"`
	CommonWords     []string       `json:"commonWords,omitempty"`
	HasTypos        bool           `json:"hasTypos"`
	ResponseStyle   string         `json:"responseStyle"` // "short" or "long"
	EmojiHistogram  map[string]int `json:"emojiHistogram,omitempty"`
}

// WebFindings is the opaque enrichment blob produced by the research
// collaborator. The core never interprets it beyond forwarding.
type WebFindings map[string]any

// PersonalityProfile is the learned model of one participant, built once
// during the research phase and read-only afterwards.
type PersonalityProfile struct {
	ID                 uint          `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID          string        `json:"sessionId" gorm:"index:idx_profile_session_participant,unique"`
	ParticipantID      string        `json:"participantId" gorm:"index:idx_profile_session_participant,unique"`
	TypingPatterns     TypingMetrics `json:"typingPatterns" gorm:"serializer:json"`
	WebData            WebFindings   `json:"webData,omitempty" gorm:"serializer:json"`
	ImpersonationNotes string        `json:"impersonationNotes"`
	// Confidence is the collaborator's self-assessed ability to pass as this
	// person, in [0,1]. The orchestrator forwards it, never invents it.
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt"`
}
