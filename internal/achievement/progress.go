package achievement

// ExperiencePerLevel is the amount of experience that advances one level.
const ExperiencePerLevel = 100

// Progress is the queryable state of one user's reward-relevant metrics.
// Level is always derived from Experience and never written independently.
type Progress struct {
	Experience        int                `json:"experience"`
	Level             int                `json:"level"`
	Currencies        map[string]int     `json:"currencies,omitempty"`
	Completed         []CompletionRecord `json:"completed,omitempty"`
	PendingAwardCount int                `json:"pendingAwardCount"`
}

// ProgressRecord is the authoritative progress read returned by the backend.
// NewlyAwarded counts achievements granted since the last check; a nonzero
// value signals the caller should re-fetch once.
type ProgressRecord struct {
	Progress
	NewlyAwarded int
}

// LevelForExperience derives the level for an experience total. Negative
// experience is treated as zero.
func LevelForExperience(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return experience/ExperiencePerLevel + 1
}

// Normalize re-derives Level from Experience and returns the result.
func (p Progress) Normalize() Progress {
	p.Level = LevelForExperience(p.Experience)
	return p
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing internal maps or slices to mutation.
func (p Progress) Clone() Progress {
	out := p
	if p.Currencies != nil {
		out.Currencies = make(map[string]int, len(p.Currencies))
		for name, amount := range p.Currencies {
			out.Currencies[name] = amount
		}
	}
	if p.Completed != nil {
		out.Completed = make([]CompletionRecord, len(p.Completed))
		copy(out.Completed, p.Completed)
	}
	return out
}

// Patch is a shallow-merge mutation of a Progress snapshot. Nil fields are
// left untouched, currency entries merge per key, and Completed appends.
// Level is never part of a patch; it is re-derived after every merge.
type Patch struct {
	Experience        *int               `json:"experience,omitempty"`
	Currencies        map[string]int     `json:"currencies,omitempty"`
	Completed         []CompletionRecord `json:"completed,omitempty"`
	PendingAwardCount *int               `json:"pendingAwardCount,omitempty"`
}

// IsZero reports whether the patch carries no fields at all.
func (patch Patch) IsZero() bool {
	return patch.Experience == nil &&
		len(patch.Currencies) == 0 &&
		len(patch.Completed) == 0 &&
		patch.PendingAwardCount == nil
}

// Apply merges the patch into a copy of the snapshot and re-derives Level.
// Fields absent from the patch keep their current values.
func (p Progress) Apply(patch Patch) Progress {
	next := p.Clone()
	if patch.Experience != nil {
		next.Experience = *patch.Experience
	}
	if len(patch.Currencies) > 0 {
		if next.Currencies == nil {
			next.Currencies = make(map[string]int, len(patch.Currencies))
		}
		for name, amount := range patch.Currencies {
			next.Currencies[name] = amount
		}
	}
	if len(patch.Completed) > 0 {
		next.Completed = append(next.Completed, patch.Completed...)
	}
	if patch.PendingAwardCount != nil {
		next.PendingAwardCount = *patch.PendingAwardCount
	}
	return next.Normalize()
}
