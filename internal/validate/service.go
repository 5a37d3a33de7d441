package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/csvgate/internal/config"
	"github.com/JonMunkholm/csvgate/internal/dataset"
	"github.com/JonMunkholm/csvgate/internal/logging"
	"github.com/JonMunkholm/csvgate/internal/metrics"
	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/rules"
	"github.com/google/uuid"
)

// DefaultRunTimeout bounds one run when Options.RunTimeout is unset.
const DefaultRunTimeout = 10 * time.Minute

// RunRecorder stores completed runs. Implemented by the run store.
type RunRecorder interface {
	Record(ctx context.Context, runID uuid.UUID, r *report.Report) error
}

// Options configures a Service.
type Options struct {
	SchemaPath    string
	ReportDir     string
	Parallel      bool
	MaxConcurrent int
	MaxWait       time.Duration
	NullTokens    []string

	// RunTimeout bounds one run; zero selects DefaultRunTimeout.
	RunTimeout time.Duration

	// Recorder is optional; nil disables run history.
	Recorder RunRecorder
}

// OptionsFromConfig builds Options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SchemaPath:    cfg.Paths.SchemaPath,
		ReportDir:     cfg.Paths.ReportDir,
		Parallel:      cfg.Engine.Parallel,
		MaxConcurrent: cfg.Engine.MaxConcurrentRuns,
		MaxWait:       cfg.Engine.MaxWaitTime,
		RunTimeout:    cfg.Engine.RunTimeout,
	}
}

// Service runs validations. It is safe for concurrent use.
type Service struct {
	schemaPath string
	reportDir  string
	engine     rules.Engine
	nullTokens []string
	limiter    *RunLimiter
	recorder   RunRecorder
	runTimeout time.Duration
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &Service{
		schemaPath: opts.SchemaPath,
		reportDir:  opts.ReportDir,
		engine:     rules.Engine{Parallel: opts.Parallel},
		nullTokens: opts.NullTokens,
		limiter:    NewRunLimiter(opts.MaxConcurrent, opts.MaxWait),
		recorder:   opts.Recorder,
		runTimeout: runTimeout,
	}
}

// SchemaPath returns the schema every run validates against.
func (s *Service) SchemaPath() string { return s.schemaPath }

// ReportDir returns where reports are persisted.
func (s *Service) ReportDir() string { return s.reportDir }

// Limiter exposes the run limiter for status and shutdown draining.
func (s *Service) Limiter() *RunLimiter { return s.limiter }

// RunOptions controls a single run.
type RunOptions struct {
	// Save persists the report under the report directory.
	Save bool

	// RaiseOnFail turns a failing report into ErrValidationFailed. The
	// outcome is still returned alongside the error.
	RaiseOnFail bool
}

// Outcome is the result of a run that produced a report.
type Outcome struct {
	RunID  uuid.UUID
	Report *report.Report

	// ReportPath is where the report was written; empty when not saved.
	ReportPath string

	// PersistErr is set when saving was requested and failed. The report
	// itself is still valid.
	PersistErr error

	Duration time.Duration
}

// Passed reports whether the validation found no violations.
func (o *Outcome) Passed() bool {
	return o != nil && o.Report != nil && o.Report.Success
}

// Run validates the CSV at inputPath. A non-nil error without an outcome
// means no report could be produced: see Classify for the categories.
func (s *Service) Run(ctx context.Context, inputPath string, opts RunOptions) (*Outcome, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyRuns) {
			metrics.RecordRejected()
		}
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	runID := uuid.New()
	log := logging.WithFields(ctx, slog.String("run_id", runID.String()), slog.String("csv", inputPath))

	start := time.Now()
	r, rows, err := evaluate(ctx, s.engine, s.schemaPath, inputPath, dataset.Options{NullTokens: s.nullTokens})
	elapsed := time.Since(start)

	if err != nil {
		switch Classify(err) {
		case ClassInput:
			metrics.RecordRun(metrics.OutcomeInput, nil, rows, elapsed)
			log.Warn("validation could not start", slog.String("error", err.Error()))
		default:
			metrics.RecordRun(metrics.OutcomeInternal, nil, rows, elapsed)
			log.Error("validation failed unexpectedly",
				slog.String("schema", s.schemaPath),
				slog.String("error", err.Error()))
		}
		return nil, err
	}

	out := &Outcome{RunID: runID, Report: r, Duration: elapsed}

	outcome := metrics.OutcomePassed
	if !r.Success {
		outcome = metrics.OutcomeFailed
	}
	names := make([]string, len(r.Results))
	for i, res := range r.Results {
		names[i] = res.Expectation
	}
	metrics.RecordRun(outcome, names, rows, elapsed)

	if opts.Save {
		path := report.Path(s.reportDir, inputPath)
		if err := report.Persist(r, path); err != nil {
			out.PersistErr = err
			metrics.RecordPersistFailure()
			log.Error("report not saved", slog.String("path", path), slog.String("error", err.Error()))
		} else {
			out.ReportPath = path
		}
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, runID, r); err != nil {
			log.Warn("run history not recorded", slog.String("error", err.Error()))
		}
	}

	log.Info("validation finished",
		slog.Bool("success", r.Success),
		slog.Int("rows", r.Statistics.Rows),
		slog.Int("unsuccessful", r.Statistics.UnsuccessfulExpectations),
		slog.Duration("duration", elapsed))

	if opts.RaiseOnFail && !r.Success {
		return out, fmt.Errorf("%w: %d of %d expectations failed; see %s for details",
			ErrValidationFailed, r.Statistics.UnsuccessfulExpectations,
			r.Statistics.EvaluatedExpectations, s.reportDir)
	}
	return out, nil
}
