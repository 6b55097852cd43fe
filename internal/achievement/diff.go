package achievement

import "sort"

// Delta field names for the non-currency tracked fields. Currency deltas use
// the currency name itself as the field.
const (
	FieldExperience = "experience"
	FieldLevel      = "level"
)

// Delta records one field-level change between two progress snapshots.
type Delta struct {
	Field     string `json:"field"`
	Old       int    `json:"old"`
	New       int    `json:"new"`
	Delta     int    `json:"delta"`
	LeveledUp bool   `json:"leveledUp,omitempty"`
}

// Diff compares two snapshots field by field and returns one Delta per field
// whose value changed. Tracked fields are experience, level, and every
// currency present in either snapshot; currency fields are visited in sorted
// order so output is deterministic. A level change always sets LeveledUp,
// even when the level decreased; downstream consumers rely on the flag
// meaning "level changed", not "level increased".
func Diff(old, updated Progress) []Delta {
	var deltas []Delta

	if old.Experience != updated.Experience {
		deltas = append(deltas, Delta{
			Field: FieldExperience,
			Old:   old.Experience,
			New:   updated.Experience,
			Delta: updated.Experience - old.Experience,
		})
	}
	if old.Level != updated.Level {
		deltas = append(deltas, Delta{
			Field:     FieldLevel,
			Old:       old.Level,
			New:       updated.Level,
			Delta:     updated.Level - old.Level,
			LeveledUp: true,
		})
	}

	for _, name := range currencyNames(old, updated) {
		before := old.Currencies[name]
		after := updated.Currencies[name]
		if before == after {
			continue
		}
		deltas = append(deltas, Delta{
			Field: name,
			Old:   before,
			New:   after,
			Delta: after - before,
		})
	}

	return deltas
}

func currencyNames(old, updated Progress) []string {
	seen := make(map[string]struct{}, len(old.Currencies)+len(updated.Currencies))
	for name := range old.Currencies {
		seen[name] = struct{}{}
	}
	for name := range updated.Currencies {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
