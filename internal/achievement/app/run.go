package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/wcarena/tracker/internal/achievement/backend"
	"github.com/wcarena/tracker/internal/achievement/bus"
	"github.com/wcarena/tracker/internal/achievement/engine"
	"github.com/wcarena/tracker/internal/achievement/storage"
	"github.com/wcarena/tracker/internal/achievement/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Config holds tracker service configuration.
type Config struct {
	Port       int
	BackendURL string
	UserID     string
	// DBPath locates the local SQLite store. Empty disables persistence;
	// the engine still runs with process-lifetime fallback only.
	DBPath string
}

// Run composes the engine and serves the HTTP surface until ctx is
// cancelled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	// The one shared HTTP client: the backend client and any other
	// outbound caller go through it, which is what lets the interception
	// middleware see every response in the process.
	sharedClient := &http.Client{Timeout: 15 * time.Second}
	eventBus := bus.New()
	source := backend.NewClient(cfg.BackendURL, sharedClient)

	var progressStore storage.ProgressStore
	var journal storage.AwardJournal
	if cfg.DBPath != "" {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open tracker store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close tracker store: %v", err)
			}
		}()
		progressStore = store
		journal = store
	}

	eng := engine.New(engine.Config{
		Source: source,
		Bus:    eventBus,
		Client: sharedClient,
		Store:  progressStore,
		UserID: cfg.UserID,
	})

	if journal != nil {
		eventBus.Subscribe(engine.EventAchievementsAwarded, awardRecorder(journal, cfg.UserID))
	}

	if err := eng.Init(ctx); err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	defer eng.Destroy()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: NewServer(eng, journal, cfg.UserID).Handler(),
	}

	errs := make(chan error, 1)
	go func() {
		log.Printf("tracker listening on %s", server.Addr)
		errs <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// awardRecorder appends every observed award signal to the journal.
func awardRecorder(journal storage.AwardJournal, userID string) bus.Handler {
	return func(evt bus.Event) {
		award, ok := evt.Payload.(engine.Awarded)
		if !ok {
			return
		}
		updatesJSON := ""
		if award.Updates != nil {
			if data, err := json.Marshal(award.Updates); err == nil {
				updatesJSON = string(data)
			}
		}
		record := storage.AwardRecord{
			UserID:      userID,
			Count:       award.Count,
			UpdatesJSON: updatesJSON,
			ObservedAt:  time.Now().UTC(),
		}
		if err := journal.AppendAward(context.Background(), record); err != nil {
			log.Printf("journal award: %v", err)
		}
	}
}
