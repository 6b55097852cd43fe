// Package engine owns the reward definition catalog and the current user
// progress snapshot. It is the single writer for both: mutations arrive
// either through explicit loads or through award signals detected by the
// interception middleware, and every mutation is diffed and broadcast on the
// bus so observers never poll or couple to the fetch paths.
package engine

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/wcarena/tracker/internal/achievement"
	"github.com/wcarena/tracker/internal/achievement/bus"
	"github.com/wcarena/tracker/internal/achievement/intercept"
	"github.com/wcarena/tracker/internal/achievement/storage"
)

// Source fetches authoritative catalog and progress state from the backend.
type Source interface {
	ListDefinitions(ctx context.Context) ([]achievement.Definition, error)
	GetProgress(ctx context.Context, userID string) (achievement.ProgressRecord, error)
}

// Config wires an engine's collaborators.
type Config struct {
	Source Source
	Bus    *bus.Bus
	// Client is the application's one shared HTTP client. Init decorates
	// its transport with the interception middleware; Destroy restores
	// the original verbatim. Optional: without it no interception happens.
	Client *http.Client
	// Store persists the last-known progress snapshot. Optional: without
	// it the stale-but-safe fallback only covers the process lifetime.
	Store  storage.ProgressStore
	UserID string
	Clock  func() time.Time
}

// Engine is the process-wide achievement state store. Construct it once at
// the composition root; it is not usable as a zero value.
type Engine struct {
	source Source
	bus    *bus.Bus
	client *http.Client
	store  storage.ProgressStore
	userID string
	clock  func() time.Time

	mu          sync.RWMutex
	initialized bool
	original    http.RoundTripper
	interceptor *intercept.Transport
	catalog     map[string]achievement.Definition
	order       []string
	progress    achievement.Progress
	hasProgress bool

	// mutateMu serializes mutations end to end so each progress:updated
	// carries a consistent old/new pair and publishes in mutation order.
	// Handlers must not call Mutate reentrantly.
	mutateMu sync.Mutex
}

// New creates an engine from its wiring. The bus is required; everything
// else degrades gracefully when absent.
func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	b := cfg.Bus
	if b == nil {
		b = bus.New()
	}
	return &Engine{
		source: cfg.Source,
		bus:    b,
		client: cfg.Client,
		store:  cfg.Store,
		userID: cfg.UserID,
		clock:  clock,
	}
}

// Bus exposes the engine's event bus so observers can subscribe.
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

// Init installs the interception middleware exactly once and populates
// catalog and snapshot from one concurrent pair of loads. A second Init is a
// no-op. Each load recovers transport failures on its own (empty catalog,
// last-known progress); Init fails only when both loads fail outside that
// fallback, because the engine cannot claim readiness with no usable state.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	if e.initialized {
		e.mu.Unlock()
		return nil
	}
	if e.client != nil {
		e.original = e.client.Transport
		e.interceptor = intercept.NewTransport(e.client.Transport, e)
		e.client.Transport = e.interceptor
	}
	e.initialized = true
	e.mu.Unlock()

	defsErr, progErr := e.loadBoth(ctx)
	if defsErr != nil && progErr != nil {
		e.Destroy()
		return errors.Join(defsErr, progErr)
	}

	e.bus.Publish(EventInitialized, nil)
	return nil
}

// Refresh re-runs both loads concurrently and always emits engine:refreshed,
// regardless of per-load outcome.
func (e *Engine) Refresh(ctx context.Context) error {
	defsErr, progErr := e.loadBoth(ctx)
	e.bus.Publish(EventRefreshed, nil)
	return errors.Join(defsErr, progErr)
}

// Destroy detaches the middleware, restoring the original transport
// verbatim, clears catalog and snapshot, and drops every subscription. It is
// safe to call repeatedly or before Init.
func (e *Engine) Destroy() {
	e.mu.Lock()
	interceptor := e.interceptor
	if interceptor != nil && e.client != nil {
		e.client.Transport = e.original
	}
	e.interceptor = nil
	e.original = nil
	e.initialized = false
	e.catalog = nil
	e.order = nil
	e.progress = achievement.Progress{}
	e.hasProgress = false
	e.mu.Unlock()

	if interceptor != nil {
		interceptor.Flush()
	}
	e.bus.Clear()
}

// loadBoth runs the definition and progress loads concurrently and returns
// their escaping errors, if any.
func (e *Engine) loadBoth(ctx context.Context) (defsErr, progErr error) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defsErr = e.LoadDefinitions(ctx)
	}()
	go func() {
		defer wg.Done()
		progErr = e.LoadProgress(ctx)
	}()
	wg.Wait()
	return defsErr, progErr
}

// LoadDefinitions replaces the catalog atomically, last load wins. A
// transport or decode failure clears the catalog to empty: an empty catalog
// is a detectable, safe state, silently stale data is not.
func (e *Engine) LoadDefinitions(ctx context.Context) error {
	if e.source == nil {
		return errors.New("source is not configured")
	}
	defs, err := e.source.ListDefinitions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("load definitions: %v (catalog cleared)", err)
		e.mu.Lock()
		e.catalog = map[string]achievement.Definition{}
		e.order = nil
		e.mu.Unlock()
		return nil
	}

	catalog := make(map[string]achievement.Definition, len(defs))
	order := make([]string, 0, len(defs))
	for _, def := range defs {
		if _, dup := catalog[def.ID]; !dup {
			order = append(order, def.ID)
		}
		catalog[def.ID] = def
	}

	e.mu.Lock()
	e.catalog = catalog
	e.order = order
	e.mu.Unlock()
	return nil
}

// LoadProgress replaces the snapshot's queryable fields from the progress
// endpoint. A nonzero newly-awarded counter triggers exactly one follow-up
// fetch; the backend could in principle report nonzero forever, so the
// re-fetch is deliberately not recursive. On transport failure the snapshot
// keeps its last-known value, falling back to the persisted one when the
// process has none yet.
func (e *Engine) LoadProgress(ctx context.Context) error {
	if e.source == nil {
		return errors.New("source is not configured")
	}
	record, err := e.source.GetProgress(ctx, e.userID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("load progress: %v (keeping last-known snapshot)", err)
		e.restoreLastKnown(ctx)
		return nil
	}

	if record.NewlyAwarded > 0 {
		if again, err := e.source.GetProgress(ctx, e.userID); err == nil {
			record = again
		} else {
			log.Printf("re-fetch progress after award: %v", err)
		}
	}

	snapshot := record.Progress.Normalize().Clone()
	e.mu.Lock()
	e.progress = snapshot
	e.hasProgress = true
	e.mu.Unlock()

	e.persistLastKnown(ctx, snapshot)
	return nil
}

// Mutate shallow-merges the patch into the current snapshot, re-derives the
// level, and publishes progress:updated with the field-level deltas. Fields
// absent from the patch are untouched: award signals often carry partial
// updates, and replacing the snapshot would null out everything else.
func (e *Engine) Mutate(patch achievement.Patch) {
	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()

	e.mu.Lock()
	old := e.progress.Clone()
	next := e.progress.Apply(patch)
	e.progress = next
	e.hasProgress = true
	e.mu.Unlock()

	e.persistLastKnown(context.Background(), next)
	e.bus.Publish(EventProgressUpdated, ProgressUpdated{
		Old:    old,
		New:    next.Clone(),
		Deltas: achievement.Diff(old, next),
	})
}

// AwardDetected implements intercept.Observer: the middleware found an award
// signal in a response body. The embedded user updates, when present, are
// merged before the award event goes out so subscribers observe consistent
// state.
func (e *Engine) AwardDetected(count int, updates *achievement.Patch) {
	if count <= 0 {
		return
	}
	if updates != nil {
		e.Mutate(*updates)
	}
	e.bus.Publish(EventAchievementsAwarded, Awarded{Count: count, Updates: updates})
}

// Definition returns one catalog entry by id.
func (e *Engine) Definition(id string) (achievement.Definition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.catalog[id]
	return def, ok
}

// Definitions returns the full catalog in backend order.
func (e *Engine) Definitions() []achievement.Definition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	defs := make([]achievement.Definition, 0, len(e.order))
	for _, id := range e.order {
		defs = append(defs, e.catalog[id])
	}
	return defs
}

// Progress returns a defensive copy of the current snapshot.
func (e *Engine) Progress() achievement.Progress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.progress.Clone()
}

// IsCompleted reports whether the snapshot records the achievement as
// completed.
func (e *Engine) IsCompleted(achievementID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, record := range e.progress.Completed {
		if record.AchievementID == achievementID {
			return true
		}
	}
	return false
}

// restoreLastKnown loads the persisted snapshot when the process has no
// in-memory value yet, so a fresh start behind a dead backend still serves
// the last state it saw.
func (e *Engine) restoreLastKnown(ctx context.Context) {
	e.mu.RLock()
	has := e.hasProgress
	e.mu.RUnlock()
	if has || e.store == nil {
		return
	}

	snapshot, err := e.store.GetProgress(ctx, e.userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("restore last-known progress: %v", err)
		}
		return
	}
	e.mu.Lock()
	if !e.hasProgress {
		e.progress = snapshot
		e.hasProgress = true
	}
	e.mu.Unlock()
}

// persistLastKnown writes the snapshot best-effort; persistence failures
// never surface to callers.
func (e *Engine) persistLastKnown(ctx context.Context, snapshot achievement.Progress) {
	if e.store == nil {
		return
	}
	if err := e.store.PutProgress(ctx, e.userID, snapshot, e.clock()); err != nil {
		log.Printf("persist progress snapshot: %v", err)
	}
}
