// Command validate checks a CSV file against the ingestion schema, prints a
// summary and exits with a code describing the outcome:
//
//	0  every expectation passed
//	2  one or more expectations failed
//	3  the schema or input file does not exist
//	4  expectations failed and --raise-on-fail was given
//	5  anything else, malformed schema or CSV included
//	64 bad flags or arguments; nothing was validated
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
	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/validate"
)

const usage = "validate CSV [--no-save] [--raise-on-fail] [--config PATH] [--plain]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := cli.Bootstrap(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(validate.ExitInternal)
	}

	os.Exit(run(ctx, os.Args[1:], validate.OptionsFromConfig(cfg), os.Stdout, os.Stderr))
}

// run is main without the process globals.
func run(ctx context.Context, args []string, opts validate.Options, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	noSave := fs.Bool("no-save", false, "do not save the JSON report")
	raise := fs.Bool("raise-on-fail", false, "exit 4 instead of 2 when expectations fail")
	schemaPath := fs.String("config", opts.SchemaPath, "path to the ingestion schema")
	plain := fs.Bool("plain", false, "print the summary without styling")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s\n", usage)
		fs.PrintDefaults()
	}

	positional, err := cli.Parse(fs, args)
	if err == nil {
		err = cli.ExactArgs(positional, 1, usage)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return validate.ExitOK
		}
		fmt.Fprintln(stderr, err)
		return validate.ExitUsage
	}
	input := positional[0]

	opts.SchemaPath = *schemaPath
	opts.MaxConcurrent = 1
	svc := validate.NewService(opts)

	out, err := svc.Run(ctx, input, validate.RunOptions{Save: !*noSave, RaiseOnFail: *raise})
	if out != nil {
		if werr := report.WriteSummary(stdout, out.Report, !*plain); werr != nil {
			slog.Warn("summary not written", "error", werr)
		}
		switch {
		case out.PersistErr != nil:
			fmt.Fprintf(stderr, "WARNING: report not saved: %v\n", out.PersistErr)
		case out.ReportPath != "":
			fmt.Fprintf(stdout, "\nSaved report to %s\n", out.ReportPath)
		}
	}

	code := validate.ExitCode(err, out.Passed(), *raise)
	switch code {
	case validate.ExitNotFound:
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
	case validate.ExitRaised:
		fmt.Fprintf(stderr, "VALIDATION ERROR: %v\n", err)
	case validate.ExitInternal:
		fmt.Fprintf(stderr, "UNEXPECTED ERROR: %v\n", err)
	}
	return code
}
