package game

import "time"

// Vote is one participant's end-of-round guess. At most one live vote exists
// per (session, voter, round); resubmission overwrites. The round number is
// part of the key on purpose so a private-mode player's later rounds never
// clobber earlier ones.
type Vote struct {
	ID          uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID   string `json:"sessionId" gorm:"index:idx_vote_key,unique"`
	VoterID     string `json:"voterId" gorm:"index:idx_vote_key,unique"`
	RoundNumber int    `json:"roundNumber" gorm:"index:idx_vote_key,unique"`

	// Group mode: who the voter believes the AI is driving.
	VotedAIID string `json:"votedAiId,omitempty"`

	// Private mode: who the voter believes they talked to, plus the actual
	// partner identity, resolved at submission time.
	GuessedPartnerID string `json:"guessedPartnerId,omitempty"`
	ActualPartnerID  string `json:"actualPartnerId,omitempty"`
	Correct          *bool  `json:"correct,omitempty"`

	SubmittedAt time.Time `json:"submittedAt"`
}

// Result is the archived outcome of a finished session.
type Result struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID    string         `json:"sessionId" gorm:"index"`
	FooledRate   float64        `json:"fooledRate"`
	VotesCast    int            `json:"votesCast"`
	PlayerScores map[string]int `json:"playerScores" gorm:"serializer:json"`
	Analysis     string         `json:"analysis"`
	CreatedAt    time.Time      `json:"createdAt"`
}
