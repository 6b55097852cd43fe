// Package achievement holds the domain model for the reward tracking engine:
// the definition catalog, the user progress snapshot, merge patches, and the
// field-level diff between two snapshots.
package achievement

import (
	"encoding/json"
	"time"
)

// Definition describes one reward the backend can grant. Definitions are
// immutable once loaded; the catalog is fully replaced on every reload.
type Definition struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Reward      json.RawMessage `json:"reward,omitempty"`
}

// CompletionRecord marks one completed achievement. Records are append-only
// and referenced but never structurally validated by the engine; correctness
// is owned by the backend.
type CompletionRecord struct {
	AchievementID string    `json:"achievementId"`
	AwardedAt     time.Time `json:"awardedAt"`
}
