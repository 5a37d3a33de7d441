// Package dataset loads a staged CSV into memory for validation.
//
// Loading never types a value: every cell keeps the raw text it had in the
// file, and the only interpretation applied is whether the cell is null.
// Coercion is the rule engine's concern.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

var (
	// ErrInputNotFound is returned when the input file does not exist.
	ErrInputNotFound = errors.New("input not found")

	// ErrMalformed is returned when the input cannot be decoded as a table.
	ErrMalformed = errors.New("malformed csv")
)

// DefaultNullTokens are the raw values read as null, matching the markers
// common CSV exporters write for missing data. The empty string is included.
var DefaultNullTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// Options controls how raw text is read.
type Options struct {
	// NullTokens are exact raw values treated as null. Nil means DefaultNullTokens.
	NullTokens []string

	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// Cell is one raw value. Null cells keep the raw text they were read from
// (empty for cells missing from a short row).
type Cell struct {
	Raw  string
	Null bool
}

// Dataset is a fully materialized table. It is never mutated after loading.
type Dataset struct {
	Columns []string
	Rows    [][]Cell

	// Source identifies where the rows came from (usually the input path).
	Source string

	index map[string]int
}

// RowCount returns the number of data rows.
func (d *Dataset) RowCount() int {
	return len(d.Rows)
}

// Has reports whether the dataset has a column with exactly this name.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the cells of one column in row order.
func (d *Dataset) Column(name string) ([]Cell, bool) {
	pos, ok := d.index[name]
	if !ok {
		return nil, false
	}
	cells := make([]Cell, len(d.Rows))
	for i, row := range d.Rows {
		cells[i] = row[pos]
	}
	return cells, true
}

// New builds a dataset from already-split records. The first record is the
// header. It is the in-memory counterpart of Read.
func New(source string, records [][]string, opts Options) (*Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: no header row", ErrMalformed, source)
	}
	b := newBuilder(source, records[0], opts)
	for i, rec := range records[1:] {
		if err := b.add(rec, i+2); err != nil {
			return nil, err
		}
	}
	return b.ds, nil
}

// Load reads the CSV file at path.
func Load(path string, opts Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("dataset: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInputNotFound, path)
	}

	return Read(f, filepath.Clean(path), opts)
}

// Read decodes CSV from r. Blank lines are skipped; a row with fewer fields
// than the header is padded with null cells, a row with more is an error.
func Read(r io.Reader, source string, opts Options) (*Dataset, error) {
	cr := csv.NewReader(wrapInput(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s: no header row", ErrMalformed, source)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, source, err)
	}

	b := newBuilder(source, header, opts)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, source, err)
		}
		line, _ := cr.FieldPos(0)
		if err := b.add(rec, line); err != nil {
			return nil, err
		}
	}

	return b.ds, nil
}

type builder struct {
	ds    *Dataset
	nulls map[string]bool
}

func newBuilder(source string, header []string, opts Options) *builder {
	tokens := opts.NullTokens
	if tokens == nil {
		tokens = DefaultNullTokens
	}
	nulls := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		nulls[t] = true
	}

	cols := headerNames(header)
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}

	return &builder{
		ds:    &Dataset{Columns: cols, Rows: [][]Cell{}, Source: source, index: index},
		nulls: nulls,
	}
}

func (b *builder) add(rec []string, line int) error {
	width := len(b.ds.Columns)
	if len(rec) > width {
		return fmt.Errorf("%w: %s: line %d: expected %d fields, got %d",
			ErrMalformed, b.ds.Source, line, width, len(rec))
	}

	row := make([]Cell, width)
	for i := range row {
		if i >= len(rec) {
			row[i] = Cell{Null: true}
			continue
		}
		row[i] = Cell{Raw: rec[i], Null: b.nulls[rec[i]]}
	}
	b.ds.Rows = append(b.ds.Rows, row)
	return nil
}

// headerNames names blank headers "Unnamed: <pos>" and disambiguates repeats
// as name.1, name.2, ... in order of appearance.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := h
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for n := 1; seen[name]; n++ {
			name = base + "." + strconv.Itoa(n)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}
