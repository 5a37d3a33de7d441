// Command transform loads a CSV into the local SQLite database as the
// "transactions" table, then runs the SQL transform scripts over it in
// name order.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/csvgate/internal/cli"
	"github.com/JonMunkholm/csvgate/internal/config"
	"github.com/JonMunkholm/csvgate/internal/dataset"
	"github.com/JonMunkholm/csvgate/internal/transform"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := cli.Bootstrap(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(ctx, os.Args[1:], cfg, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("transform", flag.ContinueOnError)
	fs.SetOutput(stderr)
	csvPath := fs.String("csv", cfg.Paths.StagedPath, "CSV to load")
	dbPath := fs.String("db", cfg.Paths.SQLitePath, "SQLite database file")
	scripts := fs.String("transforms", cfg.Paths.TransformsDir, "directory of *.sql transform scripts")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	d, err := dataset.Load(*csvPath, dataset.Options{})
	if err != nil {
		if errors.Is(err, dataset.ErrInputNotFound) {
			fmt.Fprintf(stderr, "CSV not found: %s. Run ingest first to stage it.\n", *csvPath)
		} else {
			fmt.Fprintf(stderr, "Error reading CSV: %v\n", err)
		}
		return 1
	}

	db, err := transform.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening database: %v\n", err)
		return 1
	}
	defer db.Close()

	n, err := db.LoadDataset(ctx, d, transform.DefaultTable)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading CSV: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %d rows -> %s\n", n, transform.DefaultTable)

	ran, err := db.RunScripts(ctx, *scripts)
	for _, name := range ran {
		fmt.Fprintf(stdout, "Ran transform: %s\n", name)
	}
	if err != nil {
		var se *transform.ScriptError
		if errors.As(err, &se) {
			fmt.Fprintf(stderr, "Error running %s: %v\n", se.Script, se.Err)
		} else {
			fmt.Fprintf(stderr, "Error running transforms: %v\n", err)
		}
		return 1
	}

	fmt.Fprintln(stdout, "Transforms completed. You can inspect the SQLite DB at:", db.Path())
	return 0
}
