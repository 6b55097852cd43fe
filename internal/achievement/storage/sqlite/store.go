// Package sqlite provides SQLite-backed persistence for tracker state.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wcarena/tracker/internal/achievement"
	"github.com/wcarena/tracker/internal/achievement/storage"
	"github.com/wcarena/tracker/internal/achievement/storage/sqlite/migrations"
	"github.com/wcarena/tracker/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

const defaultListLimit = 50

// Store implements storage.ProgressStore and storage.AwardJournal on a local
// SQLite database.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a tracker SQLite store at the provided path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutProgress upserts the last-known progress snapshot for one user.
func (s *Store) PutProgress(ctx context.Context, userID string, progress achievement.Progress, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	snapshotJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode progress snapshot: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO progress_snapshots (user_id, snapshot_json, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    snapshot_json = excluded.snapshot_json,
    updated_at = excluded.updated_at
`, userID, string(snapshotJSON), updatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("put progress snapshot: %w", err)
	}
	return nil
}

// GetProgress loads the last-known progress snapshot for one user.
func (s *Store) GetProgress(ctx context.Context, userID string) (achievement.Progress, error) {
	if err := ctx.Err(); err != nil {
		return achievement.Progress{}, err
	}
	if s == nil || s.sqlDB == nil {
		return achievement.Progress{}, fmt.Errorf("storage is not configured")
	}

	var snapshotJSON string
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT snapshot_json FROM progress_snapshots WHERE user_id = ?
`, strings.TrimSpace(userID)).Scan(&snapshotJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return achievement.Progress{}, storage.ErrNotFound
	}
	if err != nil {
		return achievement.Progress{}, fmt.Errorf("get progress snapshot: %w", err)
	}

	var progress achievement.Progress
	if err := json.Unmarshal([]byte(snapshotJSON), &progress); err != nil {
		return achievement.Progress{}, fmt.Errorf("decode progress snapshot: %w", err)
	}
	return progress.Normalize(), nil
}

// AppendAward records one observed award signal.
func (s *Store) AppendAward(ctx context.Context, record storage.AwardRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	userID := strings.TrimSpace(record.UserID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if record.Count <= 0 {
		return fmt.Errorf("award count must be positive")
	}

	observedAt := record.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO award_journal (user_id, award_count, updates_json, observed_at)
VALUES (?, ?, ?, ?)
`, userID, record.Count, record.UpdatesJSON, observedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("append award record: %w", err)
	}
	return nil
}

// ListAwards returns up to limit award records for one user, newest first.
func (s *Store) ListAwards(ctx context.Context, userID string, limit int) ([]storage.AwardRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, award_count, updates_json, observed_at
FROM award_journal
WHERE user_id = ?
ORDER BY observed_at DESC, id DESC
LIMIT ?
`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("list award records: %w", err)
	}
	defer rows.Close()

	var records []storage.AwardRecord
	for rows.Next() {
		var record storage.AwardRecord
		var observedAt int64
		if err := rows.Scan(&record.ID, &record.UserID, &record.Count, &record.UpdatesJSON, &observedAt); err != nil {
			return nil, fmt.Errorf("scan award record: %w", err)
		}
		record.ObservedAt = time.UnixMilli(observedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate award records: %w", err)
	}
	return records, nil
}
