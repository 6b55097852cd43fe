package achievement

import (
	"testing"
	"time"
)

func TestLevelForExperience(t *testing.T) {
	tests := []struct {
		experience int
		want       int
	}{
		{experience: 0, want: 1},
		{experience: 99, want: 1},
		{experience: 100, want: 2},
		{experience: 105, want: 2},
		{experience: 950, want: 10},
		{experience: -10, want: 1},
	}
	for _, tc := range tests {
		if got := LevelForExperience(tc.experience); got != tc.want {
			t.Fatalf("LevelForExperience(%d) = %d, want %d", tc.experience, got, tc.want)
		}
	}
}

func TestApplyRederivesLevel(t *testing.T) {
	snapshot := Progress{Experience: 95, Level: 1}
	experience := 105

	next := snapshot.Apply(Patch{Experience: &experience})

	if next.Experience != 105 {
		t.Fatalf("experience = %d, want 105", next.Experience)
	}
	if next.Level != 2 {
		t.Fatalf("level = %d, want 2", next.Level)
	}
}

func TestApplyLeavesAbsentFieldsUntouched(t *testing.T) {
	awarded := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	snapshot := Progress{
		Experience:        200,
		Level:             3,
		Currencies:        map[string]int{"arenaGold": 50, "honor": 10},
		Completed:         []CompletionRecord{{AchievementID: "first-blood", AwardedAt: awarded}},
		PendingAwardCount: 1,
	}

	next := snapshot.Apply(Patch{Currencies: map[string]int{"arenaGold": 75}})

	if next.Experience != 200 || next.Level != 3 {
		t.Fatalf("experience/level changed: %d/%d", next.Experience, next.Level)
	}
	if next.Currencies["arenaGold"] != 75 {
		t.Fatalf("arenaGold = %d, want 75", next.Currencies["arenaGold"])
	}
	if next.Currencies["honor"] != 10 {
		t.Fatalf("honor = %d, want untouched 10", next.Currencies["honor"])
	}
	if len(next.Completed) != 1 {
		t.Fatalf("completed records changed: %v", next.Completed)
	}
	if next.PendingAwardCount != 1 {
		t.Fatalf("pending award count = %d, want untouched 1", next.PendingAwardCount)
	}
}

func TestApplyAppendsCompletions(t *testing.T) {
	snapshot := Progress{
		Completed: []CompletionRecord{{AchievementID: "first-blood"}},
	}

	next := snapshot.Apply(Patch{
		Completed: []CompletionRecord{{AchievementID: "gladiator"}},
	})

	if len(next.Completed) != 2 {
		t.Fatalf("completed = %d records, want 2", len(next.Completed))
	}
	if next.Completed[1].AchievementID != "gladiator" {
		t.Fatalf("appended record = %q, want gladiator", next.Completed[1].AchievementID)
	}
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	snapshot := Progress{
		Experience: 95,
		Level:      1,
		Currencies: map[string]int{"arenaGold": 50},
	}
	experience := 105

	_ = snapshot.Apply(Patch{Experience: &experience, Currencies: map[string]int{"arenaGold": 99}})

	if snapshot.Experience != 95 {
		t.Fatalf("receiver experience mutated: %d", snapshot.Experience)
	}
	if snapshot.Currencies["arenaGold"] != 50 {
		t.Fatalf("receiver currency mutated: %d", snapshot.Currencies["arenaGold"])
	}
}

func TestCloneIsDeep(t *testing.T) {
	snapshot := Progress{
		Currencies: map[string]int{"arenaGold": 50},
		Completed:  []CompletionRecord{{AchievementID: "first-blood"}},
	}

	clone := snapshot.Clone()
	clone.Currencies["arenaGold"] = 999
	clone.Completed[0].AchievementID = "changed"

	if snapshot.Currencies["arenaGold"] != 50 {
		t.Fatal("clone shares currency map with original")
	}
	if snapshot.Completed[0].AchievementID != "first-blood" {
		t.Fatal("clone shares completion slice with original")
	}
}

func TestPatchIsZero(t *testing.T) {
	if !(Patch{}).IsZero() {
		t.Fatal("empty patch should be zero")
	}
	experience := 10
	if (Patch{Experience: &experience}).IsZero() {
		t.Fatal("patch with experience should not be zero")
	}
	if (Patch{Currencies: map[string]int{"honor": 1}}).IsZero() {
		t.Fatal("patch with currency should not be zero")
	}
}
