// Package tracker parses tracker service flags and launches the service.
package tracker

import (
	"context"
	"flag"

	"github.com/wcarena/tracker/internal/achievement/app"
	entrypoint "github.com/wcarena/tracker/internal/platform/cmd"
)

// Config holds tracker command configuration.
type Config struct {
	Port       int    `env:"WCARENA_TRACKER_PORT" envDefault:"8090"`
	BackendURL string `env:"WCARENA_BACKEND_URL" envDefault:"http://localhost:8080"`
	UserID     string `env:"WCARENA_USER_ID"`
	DBPath     string `env:"WCARENA_TRACKER_DB"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The tracker HTTP server port")
	fs.StringVar(&cfg.BackendURL, "backend-url", cfg.BackendURL, "Base URL of the game backend")
	fs.StringVar(&cfg.UserID, "user-id", cfg.UserID, "User whose progress the tracker follows")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the local SQLite store (empty disables persistence)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the tracker HTTP service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceTracker, func(context.Context) error {
		return app.Run(ctx, app.Config{
			Port:       cfg.Port,
			BackendURL: cfg.BackendURL,
			UserID:     cfg.UserID,
			DBPath:     cfg.DBPath,
		})
	})
}
