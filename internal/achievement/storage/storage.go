// Package storage defines the persistence boundary for the tracking engine:
// the last-known progress snapshot that backs the stale-but-safe fallback,
// and the append-only journal of observed award signals.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/wcarena/tracker/internal/achievement"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ProgressStore persists the last-known progress snapshot per user. The
// definition catalog is intentionally not persisted: a failed catalog load
// must leave a detectably empty catalog, never silently stale data.
type ProgressStore interface {
	PutProgress(ctx context.Context, userID string, progress achievement.Progress, updatedAt time.Time) error
	GetProgress(ctx context.Context, userID string) (achievement.Progress, error)
}

// AwardRecord stores one observed award signal.
type AwardRecord struct {
	ID          int64
	UserID      string
	Count       int
	UpdatesJSON string
	ObservedAt  time.Time
}

// AwardJournal appends and lists observed award signals, newest first.
type AwardJournal interface {
	AppendAward(ctx context.Context, record AwardRecord) error
	ListAwards(ctx context.Context, userID string, limit int) ([]AwardRecord, error)
}
