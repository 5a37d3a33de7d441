package validate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/csvgate/internal/config"
	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/rules"
	"github.com/google/uuid"
)

const testSchema = `columns:
  - transaction_id
  - {name: amount, type: float}
  - {name: created_at, type: timestamp}
  - {name: Email, type: string}
required: [transaction_id, customer_id]
unique_keys: [transaction_id]
validations:
  Email: email
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*report.Report
	err  error
}

func (f *fakeRecorder) Record(_ context.Context, runID uuid.UUID, r *report.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == nil {
		f.runs = make(map[uuid.UUID]*report.Report)
	}
	f.runs[runID] = r
	return f.err
}

func TestEvaluate(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "schema.yml", testSchema)

	tests := []struct {
		name        string
		csv         string
		wantSuccess bool
		wantFailing []string
	}{
		{
			name:        "clean",
			csv:         "transaction_id,customer_id,amount,created_at,Email\nt1,c1,1.5,2024-01-01,a@b.com\nt2,c2,2,2024-01-02T10:00:00Z,x@y.org\n",
			wantSuccess: true,
		},
		{
			name:        "duplicate key and bad email",
			csv:         "transaction_id,customer_id,amount,created_at,Email\nt1,c1,1.5,2024-01-01,a@b.com\nt1,c2,2,2024-01-02,not-an-email\n",
			wantFailing: []string{rules.ExpectUnique, "expect_column_values_to_match_strict_email"},
		},
		{
			name:        "missing required",
			csv:         "transaction_id,amount,created_at,Email\nt1,1.5,2024-01-01,a@b.com\n",
			wantFailing: []string{rules.ExpectColumnToExist},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := writeFile(t, dir, "in.csv", tt.csv)
			r, err := Evaluate(context.Background(), cfg, in)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if r.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", r.Success, tt.wantSuccess)
			}
			if len(r.Results) != len(tt.wantFailing) {
				t.Fatalf("len(Results) = %d, want %d: %+v", len(r.Results), len(tt.wantFailing), r.Results)
			}
			for i, name := range tt.wantFailing {
				if r.Results[i].Expectation != name {
					t.Errorf("Results[%d].Expectation = %q, want %q", i, r.Results[i].Expectation, name)
				}
			}
			if r.Meta.CSV != in || r.Meta.ConfigPath != cfg {
				t.Errorf("Meta = %+v, want csv %q config %q", r.Meta, in, cfg)
			}
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "schema.yml", testSchema)
	badCfg := writeFile(t, dir, "bad.yml", "columns: [a\nrequired: {")
	patternCfg := writeFile(t, dir, "pattern.yml", "columns: [Date]\nvalidations:\n  Date: \"%Q\"\n")
	in := writeFile(t, dir, "in.csv", "transaction_id,customer_id\nt1,c1\n")
	wide := writeFile(t, dir, "wide.csv", "a,b\n1,2,3\n")
	empty := writeFile(t, dir, "empty.csv", "")

	tests := []struct {
		name      string
		config    string
		input     string
		wantClass Class
		wantExit  int
		wantIs    error
	}{
		{"schema missing", filepath.Join(dir, "nope.yml"), in, ClassInput, ExitNotFound, ErrSchemaNotFound},
		{"input missing", cfg, filepath.Join(dir, "nope.csv"), ClassInput, ExitNotFound, ErrInputNotFound},
		{"schema malformed", badCfg, in, ClassInput, ExitInternal, ErrSchemaMalformed},
		{"wide row", cfg, wide, ClassInput, ExitInternal, ErrInputMalformed},
		{"empty input", cfg, empty, ClassInput, ExitInternal, ErrInputMalformed},
		{"bad pattern", patternCfg, writeFile(t, dir, "dates.csv", "Date\n2024-01-01\n"), ClassInternal, ExitInternal, rules.ErrBadPattern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Evaluate(context.Background(), tt.config, tt.input)
			if err == nil {
				t.Fatalf("Evaluate() = %+v, want error", r)
			}
			if r != nil {
				t.Errorf("Evaluate() report = %+v, want nil", r)
			}
			if got := Classify(err); got != tt.wantClass {
				t.Errorf("Classify() = %v, want %v (err %v)", got, tt.wantClass, err)
			}
			if got := ExitCode(err, false, false); got != tt.wantExit {
				t.Errorf("ExitCode() = %d, want %d", got, tt.wantExit)
			}
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantIs)
			}
		})
	}
}

func newTestService(t *testing.T, rec RunRecorder) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewService(Options{
		SchemaPath:    writeFile(t, dir, "schema.yml", testSchema),
		ReportDir:     filepath.Join(dir, "validation_results"),
		MaxConcurrent: 1,
		MaxWait:       50 * time.Millisecond,
		Recorder:      rec,
	})
	return svc, dir
}

func TestService_RunSaves(t *testing.T) {
	rec := &fakeRecorder{}
	svc, dir := newTestService(t, rec)
	in := writeFile(t, dir, "staged.csv", "transaction_id,customer_id\nt1,c1\nt1,c2\n")

	out, err := svc.Run(context.Background(), in, RunOptions{Save: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Passed() {
		t.Error("Passed() = true, want false")
	}
	wantPath := filepath.Join(svc.ReportDir(), "staged_result.json")
	if out.ReportPath != wantPath {
		t.Errorf("ReportPath = %q, want %q", out.ReportPath, wantPath)
	}
	if out.PersistErr != nil {
		t.Errorf("PersistErr = %v", out.PersistErr)
	}

	saved, err := report.Read(wantPath)
	if err != nil {
		t.Fatalf("report.Read() error = %v", err)
	}
	if saved.Statistics != out.Report.Statistics {
		t.Errorf("saved Statistics = %+v, want %+v", saved.Statistics, out.Report.Statistics)
	}
	if got := rec.runs[out.RunID]; got != out.Report {
		t.Errorf("recorder got %v for run %s", got, out.RunID)
	}
	if svc.Limiter().ActiveCount() != 0 {
		t.Error("run slot not released")
	}
}

func TestService_RunWithoutSave(t *testing.T) {
	svc, dir := newTestService(t, nil)
	in := writeFile(t, dir, "staged.csv", "transaction_id,customer_id\nt1,c1\n")

	out, err := svc.Run(context.Background(), in, RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !out.Passed() {
		t.Errorf("Passed() = false, results %+v", out.Report.Results)
	}
	if out.ReportPath != "" {
		t.Errorf("ReportPath = %q, want empty", out.ReportPath)
	}
	if _, err := os.Stat(svc.ReportDir()); !os.IsNotExist(err) {
		t.Errorf("report dir created without Save: %v", err)
	}
}

func TestService_RaiseOnFail(t *testing.T) {
	svc, dir := newTestService(t, nil)
	in := writeFile(t, dir, "staged.csv", "transaction_id\nt1\n")

	out, err := svc.Run(context.Background(), in, RunOptions{RaiseOnFail: true})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Run() error = %v, want ErrValidationFailed", err)
	}
	if out == nil || out.Report == nil {
		t.Fatal("Run() outcome = nil, want report alongside the error")
	}
	if got := ExitCode(err, out.Passed(), true); got != ExitRaised {
		t.Errorf("ExitCode() = %d, want %d", got, ExitRaised)
	}
}

func TestService_PersistFailureKeepsReport(t *testing.T) {
	svc, dir := newTestService(t, nil)
	// A regular file where the report directory should be.
	svc.reportDir = writeFile(t, dir, "blocked", "")
	in := writeFile(t, dir, "staged.csv", "transaction_id,customer_id\nt1,c1\n")

	out, err := svc.Run(context.Background(), in, RunOptions{Save: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	var pe *report.PersistError
	if !errors.As(out.PersistErr, &pe) {
		t.Fatalf("PersistErr = %v, want *report.PersistError", out.PersistErr)
	}
	if out.ReportPath != "" {
		t.Errorf("ReportPath = %q, want empty", out.ReportPath)
	}
	if got := ExitCode(err, out.Passed(), false); got != ExitOK {
		t.Errorf("ExitCode() = %d, want %d", got, ExitOK)
	}
}

func TestService_RecorderErrorIgnored(t *testing.T) {
	svc, dir := newTestService(t, &fakeRecorder{err: errors.New("db down")})
	in := writeFile(t, dir, "staged.csv", "transaction_id,customer_id\nt1,c1\n")

	if _, err := svc.Run(context.Background(), in, RunOptions{}); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestService_Rejected(t *testing.T) {
	svc, dir := newTestService(t, nil)
	in := writeFile(t, dir, "staged.csv", "transaction_id,customer_id\nt1,c1\n")

	if !svc.Limiter().TryAcquire() {
		t.Fatal("TryAcquire() = false")
	}
	defer svc.Limiter().Release()

	out, err := svc.Run(context.Background(), in, RunOptions{})
	if !errors.Is(err, ErrTooManyRuns) {
		t.Errorf("Run() error = %v, want ErrTooManyRuns", err)
	}
	if out != nil {
		t.Errorf("Run() outcome = %+v, want nil", out)
	}
}

func TestService_InputMissing(t *testing.T) {
	svc, dir := newTestService(t, nil)

	out, err := svc.Run(context.Background(), filepath.Join(dir, "missing.csv"), RunOptions{Save: true})
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("Run() error = %v, want ErrInputNotFound", err)
	}
	if out != nil {
		t.Errorf("Run() outcome = %+v, want nil", out)
	}
	if svc.Limiter().ActiveCount() != 0 {
		t.Error("run slot not released after error")
	}
}

func TestOutcome_PassedNil(t *testing.T) {
	var o *Outcome
	if o.Passed() {
		t.Error("nil Outcome Passed() = true")
	}
}

func TestNewService_RunTimeout(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"unset uses default", 0, DefaultRunTimeout},
		{"negative uses default", -time.Second, DefaultRunTimeout},
		{"configured", 3 * time.Minute, 3 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Options{RunTimeout: tt.in})
			if svc.runTimeout != tt.want {
				t.Errorf("runTimeout = %v, want %v", svc.runTimeout, tt.want)
			}
		})
	}
}

func TestOptionsFromConfig_RunTimeout(t *testing.T) {
	cfg := &config.Config{Engine: config.EngineConfig{RunTimeout: 90 * time.Second}}
	if got := OptionsFromConfig(cfg).RunTimeout; got != 90*time.Second {
		t.Errorf("OptionsFromConfig().RunTimeout = %v, want %v", got, 90*time.Second)
	}
}
