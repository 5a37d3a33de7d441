// Package schedule validates the staged file unattended: on a cron schedule
// and whenever the file is rewritten.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/csvgate/internal/validate"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// DefaultDebounce collapses bursts of file events into one run.
const DefaultDebounce = 500 * time.Millisecond

// Runner runs one validation. *validate.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, inputPath string, opts validate.RunOptions) (*validate.Outcome, error)
}

// Options configures a Scheduler.
type Options struct {
	// Path is the staged file to validate.
	Path string

	// Cron is a 5-field cron expression or descriptor; empty disables it.
	Cron string

	// Watch re-validates on writes to Path.
	Watch bool

	// Debounce is the quiet period after the last file event.
	Debounce time.Duration

	// Save persists each report.
	Save bool
}

// Scheduler triggers validations. Only one run is in flight at a time;
// triggers that arrive meanwhile are skipped.
type Scheduler struct {
	runner Runner
	opts   Options

	cron    *cron.Cron
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// New creates a Scheduler. Nothing runs until Start.
func New(r Runner, opts Options) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	return &Scheduler{runner: r, opts: opts}
}

// Start installs the cron entry and the file watcher. Runs receive ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.opts.Cron == "" && !s.opts.Watch {
		return nil
	}

	if s.opts.Cron != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.opts.Cron, func() { s.Trigger(ctx, "cron") }); err != nil {
			return fmt.Errorf("schedule: invalid cron expression %q: %w", s.opts.Cron, err)
		}
		c.Start()
		s.cron = c
		slog.Info("scheduled validation", "cron", s.opts.Cron, "path", s.opts.Path)
	}

	if s.opts.Watch {
		if err := s.watch(ctx); err != nil {
			if s.cron != nil {
				s.cron.Stop()
			}
			return err
		}
	}
	return nil
}

// watch follows the staged file's directory; the file itself may not exist
// yet and is usually replaced by rename.
func (s *Scheduler) watch(ctx context.Context) error {
	target, err := filepath.Abs(s.opts.Path)
	if err != nil {
		return fmt.Errorf("schedule: bad path %q: %w", s.opts.Path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("schedule: create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return fmt.Errorf("schedule: watch %s: %w", filepath.Dir(target), err)
	}
	s.watcher = w

	watchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if abs, _ := filepath.Abs(event.Name); abs != target {
					continue
				}
				s.debounce(ctx)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("staged file watcher error", "error", err)
			}
		}
	}()

	slog.Info("watching staged file", "path", target, "debounce", s.opts.Debounce)
	return nil
}

func (s *Scheduler) debounce(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.Trigger(ctx, "file change") })
}

// Trigger runs one validation now unless one is already running. It
// reports whether a run happened. Failures are logged, never returned.
func (s *Scheduler) Trigger(ctx context.Context, reason string) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		slog.Info("validation already running, trigger skipped", "reason", reason)
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer func() {
		s.running.Store(false)
		s.wg.Done()
	}()

	if ctx.Err() != nil {
		return false
	}

	log := slog.With("reason", reason, "path", s.opts.Path)
	out, err := s.runner.Run(ctx, s.opts.Path, validate.RunOptions{Save: s.opts.Save})
	switch {
	case errors.Is(err, validate.ErrInputNotFound):
		log.Info("no staged file to validate")
	case err != nil:
		log.Error("scheduled validation failed", "error", err, "class", validate.Classify(err).String())
	case out.Passed():
		log.Info("scheduled validation passed", "run_id", out.RunID)
	default:
		log.Warn("scheduled validation found violations",
			"run_id", out.RunID,
			"unsuccessful", out.Report.Statistics.UnsuccessfulExpectations,
			"report", out.ReportPath)
	}
	return true
}

func (s *Scheduler) stopTriggers() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	s.mu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
}

// Stop removes the triggers and waits for an in-flight run to finish or
// for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	var cronDone context.Context
	if s.cron != nil {
		cronDone = s.cron.Stop()
	}
	s.stopTriggers()

	done := make(chan struct{})
	go func() {
		if cronDone != nil {
			<-cronDone.Done()
		}
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
