package engine

import "github.com/wcarena/tracker/internal/achievement"

// Event names published by the engine. UI layers subscribe to these through
// the bus; the engine never calls observers directly.
const (
	// EventInitialized fires once per successful Init.
	EventInitialized = "engine:initialized"
	// EventRefreshed fires after every Refresh, regardless of per-load outcome.
	EventRefreshed = "engine:refreshed"
	// EventProgressUpdated fires after every mutation with a ProgressUpdated payload.
	EventProgressUpdated = "progress:updated"
	// EventAchievementsAwarded fires when an award signal is detected, with an Awarded payload.
	EventAchievementsAwarded = "achievements:awarded"
)

// ProgressUpdated is the EventProgressUpdated payload.
type ProgressUpdated struct {
	Old    achievement.Progress `json:"old"`
	New    achievement.Progress `json:"new"`
	Deltas []achievement.Delta  `json:"deltas"`
}

// Awarded is the EventAchievementsAwarded payload. Updates carries the
// user-updates fragment that accompanied the signal, when one was present.
type Awarded struct {
	Count   int                `json:"count"`
	Updates *achievement.Patch `json:"updates,omitempty"`
}
