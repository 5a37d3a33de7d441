// Command mcp serves the validation tools to MCP clients over stdio.
// Logs go to stderr; stdout carries the protocol.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/JonMunkholm/csvgate/internal/cli"
	"github.com/JonMunkholm/csvgate/internal/database"
	"github.com/JonMunkholm/csvgate/internal/mcpserver"
	"github.com/JonMunkholm/csvgate/internal/runstore"
	"github.com/JonMunkholm/csvgate/internal/validate"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := cli.Bootstrap(os.Stderr)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	opts := validate.OptionsFromConfig(cfg)
	deps := mcpserver.Deps{StagedPath: cfg.Paths.StagedPath}

	pool, err := database.Connect(ctx, cfg.Database)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		slog.Info("run history disabled, DATABASE_URL not set")
	case err != nil:
		slog.Warn("run history unavailable", "error", err)
	default:
		defer pool.Close()
		store := runstore.New(pool)
		if err := store.Migrate(ctx); err != nil {
			slog.Warn("run history unavailable", "error", err)
		} else {
			opts.Recorder = store
			deps.Runs = store
		}
	}

	deps.Service = validate.NewService(opts)
	if err := mcpserver.New(version, deps).ServeStdio(); err != nil {
		slog.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
