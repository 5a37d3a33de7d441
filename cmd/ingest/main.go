// Command ingest copies a CSV into the staging location and optionally
// validates the staged copy. It exits 1 when the copy fails and 2 when
// validation does not pass.
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
	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/stage"
	"github.com/JonMunkholm/csvgate/internal/validate"
)

const (
	exitCopyFailed       = 1
	exitValidationFailed = 2
)

const usage = "ingest SRC [--dest PATH] [--validate]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := cli.Bootstrap(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(exitCopyFailed)
	}
	os.Exit(run(ctx, os.Args[1:], cfg, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dest := fs.String("dest", cfg.Paths.StagedPath, "destination of the staged CSV")
	doValidate := fs.Bool("validate", false, "validate the staged copy")

	positional, err := cli.Parse(fs, args)
	if err == nil {
		err = cli.ExactArgs(positional, 1, usage)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return exitCopyFailed
	}
	src := positional[0]

	out, err := stage.Copy(src, *dest)
	if err != nil {
		fmt.Fprintf(stderr, "Error copying file: %v\n", err)
		return exitCopyFailed
	}
	fmt.Fprintf(stdout, "Copied %s -> %s\n", src, out)

	if *doValidate {
		fmt.Fprintln(stdout, "Running validation...")
		opts := validate.OptionsFromConfig(cfg)
		opts.MaxConcurrent = 1
		res, err := validate.NewService(opts).Run(ctx, out, validate.RunOptions{Save: true})
		if err != nil {
			fmt.Fprintf(stderr, "Validation failed: %s\n", validate.FormatUserError(err))
			fmt.Fprintln(stdout, "Ingest completed with validation errors.")
			return exitValidationFailed
		}
		_ = report.WriteSummary(stdout, res.Report, false)
		if !res.Passed() {
			fmt.Fprintln(stdout, "Ingest completed with validation errors.")
			return exitValidationFailed
		}
	}

	fmt.Fprintln(stdout, "Ingest finished successfully.")
	return 0
}
