// Package validate is the entry point to the validation engine. It wires the
// schema loader, dataset loader, rule engine and report builder together,
// classifies failures, and runs validations on behalf of the CLI, the HTTP
// facade, the MCP server and the scheduler.
package validate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/JonMunkholm/csvgate/internal/dataset"
	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/rules"
	"github.com/JonMunkholm/csvgate/internal/schema"
)

// Evaluate validates the CSV at inputPath against the schema at configPath
// and returns the report. Nothing is written to disk.
//
// Missing or unparseable inputs return the sentinel errors of this package;
// any other failure is an *InternalError.
func Evaluate(ctx context.Context, configPath, inputPath string) (*report.Report, error) {
	r, _, err := evaluate(ctx, rules.Engine{}, configPath, inputPath, dataset.Options{})
	return r, err
}

// evaluate runs one validation. rows is -1 when no dataset was loaded.
func evaluate(ctx context.Context, engine rules.Engine, configPath, inputPath string, opts dataset.Options) (r *report.Report, rows int, err error) {
	rows = -1
	defer func() {
		if p := recover(); p != nil {
			r = nil
			err = &InternalError{Op: "evaluate", Err: fmt.Errorf("panic: %v\n%s", p, debug.Stack())}
		}
	}()

	s, err := schema.Load(configPath)
	if err != nil {
		return nil, rows, classifyLoad("load schema", err)
	}

	d, err := dataset.Load(inputPath, opts)
	if err != nil {
		return nil, rows, classifyLoad("load input", err)
	}
	rows = d.RowCount()

	findings, err := engine.Evaluate(ctx, s, d)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, rows, err
		}
		return nil, rows, &InternalError{Op: "evaluate rules", Err: err}
	}

	meta := report.Meta{CSV: inputPath, ConfigPath: configPath}
	return report.Build(meta, s, d, findings), rows, nil
}

// classifyLoad passes the known fatal input errors through and wraps
// anything else (permissions, I/O) as internal.
func classifyLoad(op string, err error) error {
	if Classify(err) == ClassInput {
		return err
	}
	return &InternalError{Op: op, Err: err}
}
