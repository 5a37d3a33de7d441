package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// ErrNotFound is returned by Read when no report exists at the path.
var ErrNotFound = errors.New("report not found")

// PersistError reports that a report could not be written. The in-memory
// report it was built from is unaffected.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist report %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Path returns where the report for input is stored under dir:
// <dir>/<input base name without extension>_result.json.
func Path(dir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"_result.json")
}

// Persist writes r to path atomically, so readers see either the previous
// report or the complete new one.
func Persist(r *Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return &PersistError{Path: path, Err: fmt.Errorf("encode: %w", err)}
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &PersistError{Path: path, Err: err}
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return &PersistError{Path: path, Err: err}
	}
	return nil
}

// Read loads a persisted report. Result payloads decode as generic JSON
// objects.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: decode %s: %w", path, err)
	}
	return &r, nil
}
