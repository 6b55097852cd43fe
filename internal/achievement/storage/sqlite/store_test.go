package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/wcarena/tracker/internal/achievement"
	"github.com/wcarena/tracker/internal/achievement/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestProgressRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snapshot := achievement.Progress{
		Experience: 250,
		Currencies: map[string]int{"arenaGold": 50, "honor": 10},
		Completed: []achievement.CompletionRecord{
			{AchievementID: "first-blood", AwardedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)},
		},
		PendingAwardCount: 1,
	}.Normalize()

	if err := store.PutProgress(ctx, "u1", snapshot, time.Now()); err != nil {
		t.Fatalf("put progress: %v", err)
	}

	got, err := store.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if got.Experience != 250 || got.Level != 3 {
		t.Fatalf("progress = %d exp level %d, want 250/3", got.Experience, got.Level)
	}
	if got.Currencies["arenaGold"] != 50 || got.Currencies["honor"] != 10 {
		t.Fatalf("currencies = %v", got.Currencies)
	}
	if len(got.Completed) != 1 || got.Completed[0].AchievementID != "first-blood" {
		t.Fatalf("completed = %v", got.Completed)
	}
	if got.PendingAwardCount != 1 {
		t.Fatalf("pending award count = %d, want 1", got.PendingAwardCount)
	}
}

func TestPutProgressOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := achievement.Progress{Experience: 95}.Normalize()
	second := achievement.Progress{Experience: 105}.Normalize()

	if err := store.PutProgress(ctx, "u1", first, time.Now()); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := store.PutProgress(ctx, "u1", second, time.Now()); err != nil {
		t.Fatalf("second put: %v", err)
	}

	got, err := store.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("get progress: %v", err)
	}
	if got.Experience != 105 || got.Level != 2 {
		t.Fatalf("progress = %d/%d, want the overwritten 105/2", got.Experience, got.Level)
	}
}

func TestGetProgressNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetProgress(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutProgressRequiresUserID(t *testing.T) {
	store := openTestStore(t)

	err := store.PutProgress(context.Background(), "  ", achievement.Progress{}, time.Now())
	if err == nil {
		t.Fatal("expected error for blank user id")
	}
}

func TestAwardJournalAppendAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC)

	for i, count := range []int{1, 2, 3} {
		err := store.AppendAward(ctx, storage.AwardRecord{
			UserID:      "u1",
			Count:       count,
			UpdatesJSON: `{"arenaGold":50}`,
			ObservedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append award %d: %v", i, err)
		}
	}

	records, err := store.ListAwards(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list awards: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Count != 3 || records[2].Count != 1 {
		t.Fatalf("records not newest first: %+v", records)
	}
	if records[0].UpdatesJSON != `{"arenaGold":50}` {
		t.Fatalf("updates json = %q", records[0].UpdatesJSON)
	}
	if !records[0].ObservedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("observed at = %v, want %v", records[0].ObservedAt, base.Add(2*time.Minute))
	}
}

func TestListAwardsHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := store.AppendAward(ctx, storage.AwardRecord{
			UserID:     "u1",
			Count:      i + 1,
			ObservedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append award %d: %v", i, err)
		}
	}

	records, err := store.ListAwards(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("list awards: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Count != 5 || records[1].Count != 4 {
		t.Fatalf("records = %+v, want the two newest", records)
	}
}

func TestListAwardsScopedToUser(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.AppendAward(ctx, storage.AwardRecord{UserID: "u1", Count: 1}); err != nil {
		t.Fatalf("append u1: %v", err)
	}
	if err := store.AppendAward(ctx, storage.AwardRecord{UserID: "u2", Count: 2}); err != nil {
		t.Fatalf("append u2: %v", err)
	}

	records, err := store.ListAwards(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list awards: %v", err)
	}
	if len(records) != 1 || records[0].UserID != "u1" {
		t.Fatalf("records = %+v, want only u1", records)
	}
}

func TestAppendAwardValidation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.AppendAward(ctx, storage.AwardRecord{UserID: "", Count: 1}); err == nil {
		t.Fatal("expected error for blank user id")
	}
	if err := store.AppendAward(ctx, storage.AwardRecord{UserID: "u1", Count: 0}); err == nil {
		t.Fatal("expected error for non-positive count")
	}
}
