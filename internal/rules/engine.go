package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvgate/internal/dataset"
	"github.com/JonMunkholm/csvgate/internal/schema"
	"golang.org/x/sync/errgroup"
)

// Engine evaluates schemas against datasets. The zero value runs the check
// classes sequentially.
type Engine struct {
	// Parallel runs the five check classes concurrently. Output is identical
	// to the sequential path.
	Parallel bool
}

// Evaluate runs every check sequentially.
func Evaluate(s *schema.Schema, d *dataset.Dataset) ([]Finding, error) {
	return Engine{}.Evaluate(context.Background(), s, d)
}

// Evaluate returns every finding in check-class order. It fails only when a
// strict-format pattern cannot be compiled (ErrBadPattern) or ctx is done
// before the column scans finish.
func (e Engine) Evaluate(ctx context.Context, s *schema.Schema, d *dataset.Dataset) ([]Finding, error) {
	ev, err := newEvaluation(s, d)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	checks := []func(context.Context) ([]Finding, error){
		ev.existence,
		ev.nonNull,
		ev.uniqueness,
		ev.coercion,
		ev.strictFormats,
	}
	results := make([][]Finding, len(checks))

	if e.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, check := range checks {
			g.Go(func() (err error) {
				results[i], err = check(gctx)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, check := range checks {
			var err error
			if results[i], err = check(ctx); err != nil {
				return nil, err
			}
		}
	}

	findings := []Finding{}
	for _, r := range results {
		findings = append(findings, r...)
	}
	return findings, nil
}

// checkEvery is how many cells a scan reads between context checks.
const checkEvery = 1024

// checkpoint returns ctx's error on every checkEvery-th cell.
func checkpoint(ctx context.Context, i int) error {
	if i%checkEvery != 0 {
		return nil
	}
	return ctx.Err()
}

// strictCheck is one compiled strict-format check.
type strictCheck struct {
	column   string
	format   string
	validate Validator
}

// evaluation holds the inputs of one run. It is read-only once built.
type evaluation struct {
	s      *schema.Schema
	d      *dataset.Dataset
	strict []strictCheck
}

func newEvaluation(s *schema.Schema, d *dataset.Dataset) (*evaluation, error) {
	email, err := EmailFormat(s.Formats.EmailFormat())
	if err != nil {
		return nil, err
	}
	date, err := DateFormat(s.Formats.DateFormat())
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	tod, err := TimeFormat(s.Formats.TimeFormat())
	if err != nil {
		return nil, fmt.Errorf("time: %w", err)
	}

	return &evaluation{
		s: s,
		d: d,
		strict: []strictCheck{
			{column: schema.EmailColumn, format: s.Formats.EmailFormat(), validate: email},
			{column: schema.DateColumn, format: s.Formats.DateFormat(), validate: date},
			{column: schema.TimeColumn, format: s.Formats.TimeFormat(), validate: tod},
		},
	}, nil
}

// blank reports whether a cell is null or only whitespace.
func blank(c dataset.Cell) bool {
	return c.Null || strings.TrimSpace(c.Raw) == ""
}

// existence flags required columns absent from the dataset.
func (ev *evaluation) existence(ctx context.Context) ([]Finding, error) {
	var out []Finding
	for _, col := range ev.s.Required {
		if !ev.d.Has(col) {
			out = append(out, Finding{Kind: ColumnMissing, Column: col, Reason: ReasonColumnMissing})
		}
	}
	return out, ctx.Err()
}

// nonNull flags null or blank cells in required columns that exist.
func (ev *evaluation) nonNull(ctx context.Context) ([]Finding, error) {
	var out []Finding
	for _, col := range ev.s.Required {
		cells, ok := ev.d.Column(col)
		if !ok {
			continue
		}
		count, sample := 0, []string{}
		for i, c := range cells {
			if err := checkpoint(ctx, i); err != nil {
				return nil, err
			}
			if !blank(c) {
				continue
			}
			count++
			if len(sample) < MaxSampleValues {
				sample = append(sample, c.Raw)
			}
		}
		if count > 0 {
			out = append(out, Finding{
				Kind:   NullValuesPresent,
				Column: col,
				Result: NullResult{UnexpectedCount: count, SampleUnexpectedValues: sample},
			})
		}
	}
	return out, nil
}

// uniqueness flags every row whose key value occurs more than once. Values
// compare by exact raw text; null cells all compare equal to each other.
func (ev *evaluation) uniqueness(ctx context.Context) ([]Finding, error) {
	var out []Finding
	for _, col := range ev.s.UniqueKeys {
		cells, ok := ev.d.Column(col)
		if !ok {
			out = append(out, Finding{Kind: ColumnMissing, Column: col, Reason: ReasonColumnMissingForUnique})
			continue
		}

		type group struct {
			first string
			count int
		}
		groups := make(map[string]*group, len(cells))
		var order []string
		for i, c := range cells {
			if err := checkpoint(ctx, i); err != nil {
				return nil, err
			}
			key := "v:" + c.Raw
			if c.Null {
				key = "null"
			}
			g, ok := groups[key]
			if !ok {
				g = &group{first: c.Raw}
				groups[key] = g
				order = append(order, key)
			}
			g.count++
		}

		count, sample := 0, []string{}
		for _, key := range order {
			g := groups[key]
			if g.count < 2 {
				continue
			}
			count += g.count
			if len(sample) < MaxDuplicateValues {
				sample = append(sample, g.first)
			}
		}
		if count > 0 {
			out = append(out, Finding{
				Kind:   DuplicateValues,
				Column: col,
				Result: DuplicateResult{DuplicateCount: count, SampleDuplicateValues: sample},
			})
		}
	}
	return out, nil
}

// coercion flags present, non-blank cells that do not convert to the
// column's declared type. Columns with no constraining type are skipped.
func (ev *evaluation) coercion(ctx context.Context) ([]Finding, error) {
	var out []Finding
	for _, col := range ev.s.Columns {
		validate := typeValidator(col.Type)
		if validate == nil {
			continue
		}
		cells, ok := ev.d.Column(col.Name)
		if !ok {
			continue
		}
		count, sample := 0, []string{}
		for i, c := range cells {
			if err := checkpoint(ctx, i); err != nil {
				return nil, err
			}
			if blank(c) || validate(c.Raw).OK {
				continue
			}
			count++
			if len(sample) < MaxSampleValues {
				sample = append(sample, c.Raw)
			}
		}
		if count > 0 {
			out = append(out, Finding{
				Kind:   TypeCoercionFailed,
				Column: col.Name,
				Result: CoercionResult{DesiredType: col.Tag, FailedCount: count, SampleBadValues: sample},
			})
		}
	}
	return out, nil
}

// strictFormats checks the Email, Date and Time columns when present. Blank
// cells count as invalid here.
func (ev *evaluation) strictFormats(ctx context.Context) ([]Finding, error) {
	var out []Finding
	for _, sc := range ev.strict {
		cells, ok := ev.d.Column(sc.column)
		if !ok {
			continue
		}
		count, sample := 0, []string{}
		for i, c := range cells {
			if err := checkpoint(ctx, i); err != nil {
				return nil, err
			}
			if !blank(c) && sc.validate(c.Raw).OK {
				continue
			}
			count++
			if len(sample) < MaxSampleValues {
				sample = append(sample, c.Raw)
			}
		}
		if count > 0 {
			out = append(out, Finding{
				Kind:   StrictFormatInvalid,
				Column: sc.column,
				Result: FormatResult{InvalidCount: count, SampleInvalidValues: sample, ExpectedFormat: sc.format},
			})
		}
	}
	return out, nil
}
