package game

import "time"

// KnowledgeEntry is a cross-session pattern the impostor claims to have
// learned about passing as human. Enrichment feed only; gameplay never
// depends on it.
type KnowledgeEntry struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Category    string    `json:"category" gorm:"index"`
	Pattern     string    `json:"pattern"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	TimesUsed   int       `json:"timesUsed"`
	TimesWorked int       `json:"timesWorked"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
