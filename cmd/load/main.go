// Command load validates a CSV and bulk loads it into the PostgreSQL
// warehouse table. Nothing is loaded unless validation passes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/csvgate/internal/cli"
	"github.com/JonMunkholm/csvgate/internal/config"
	"github.com/JonMunkholm/csvgate/internal/database"
	"github.com/JonMunkholm/csvgate/internal/dataset"
	"github.com/JonMunkholm/csvgate/internal/validate"
	"github.com/JonMunkholm/csvgate/internal/warehouse"
)

const (
	exitLoadFailed = 1
	// exitRejected covers a missing CSV and a CSV that fails validation.
	exitRejected = 2
)

// opener connects to the warehouse. The returned func releases it.
type opener func(ctx context.Context, cfg config.DatabaseConfig) (warehouse.DB, func(), error)

func connect(ctx context.Context, cfg config.DatabaseConfig) (warehouse.DB, func(), error) {
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := cli.Bootstrap(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(exitLoadFailed)
	}
	os.Exit(run(ctx, os.Args[1:], cfg, connect, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, cfg *config.Config, open opener, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(stderr)
	csvPath := fs.String("csv", cfg.Paths.StagedPath, "CSV to load")
	skipValidate := fs.Bool("skip-validate", false, "load without the validation gate")
	table := fs.String("table", cfg.Database.WarehouseTable, "target table")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return exitLoadFailed
	}

	if info, err := os.Stat(*csvPath); err != nil || info.IsDir() {
		fmt.Fprintln(stderr, "CSV not found:", *csvPath)
		return exitRejected
	}

	if !*skipValidate {
		opts := validate.OptionsFromConfig(cfg)
		opts.MaxConcurrent = 1
		out, err := validate.NewService(opts).Run(ctx, *csvPath, validate.RunOptions{Save: true})
		if err != nil {
			fmt.Fprintf(stderr, "Validation error: %s\n", validate.FormatUserError(err))
			return exitRejected
		}
		if !out.Passed() {
			fmt.Fprintf(stderr, "Validation failed: %d of %d expectations failed, nothing loaded\n",
				out.Report.Statistics.UnsuccessfulExpectations, out.Report.Statistics.EvaluatedExpectations)
			return exitRejected
		}
	}

	d, err := dataset.Load(*csvPath, dataset.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "Error reading CSV: %v\n", err)
		return exitRejected
	}

	db, release, err := open(ctx, cfg.Database)
	if err != nil {
		if errors.Is(err, database.ErrNotConfigured) {
			fmt.Fprintln(stderr, "DATABASE_URL is not set")
		} else {
			fmt.Fprintf(stderr, "Error connecting to database: %v\n", err)
		}
		return exitLoadFailed
	}
	defer release()

	loader := warehouse.NewLoader(db)
	created, err := loader.EnsureTable(ctx, cfg.Paths.DDLPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error preparing table: %v\n", err)
		return exitLoadFailed
	}
	if !created {
		slog.Info("no ddl script, assuming table exists", "ddl", cfg.Paths.DDLPath, "table", *table)
	}

	n, err := loader.Load(ctx, d, *table)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading data: %v\n", err)
		return exitLoadFailed
	}
	fmt.Fprintf(stdout, "Load complete. %d rows -> %s\n", n, *table)
	return 0
}

