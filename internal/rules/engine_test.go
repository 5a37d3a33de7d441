package rules

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"sync"
	"testing"

	"github.com/JonMunkholm/csvgate/internal/dataset"
	"github.com/JonMunkholm/csvgate/internal/schema"
)

func mustDataset(t *testing.T, records ...[]string) *dataset.Dataset {
	t.Helper()
	d, err := dataset.New("test.csv", records, dataset.Options{})
	if err != nil {
		t.Fatalf("dataset.New() error = %v", err)
	}
	return d
}

func mustEvaluate(t *testing.T, s *schema.Schema, d *dataset.Dataset) []Finding {
	t.Helper()
	findings, err := Evaluate(s, d)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return findings
}

func column(name string, typ schema.ColumnType) schema.Column {
	return schema.Column{Name: name, Tag: typ.String(), Type: typ}
}

func TestEvaluate_Clean(t *testing.T) {
	s := &schema.Schema{
		Columns:    []schema.Column{column("id", schema.TypeInteger), column("Email", schema.TypeString)},
		Required:   []string{"id"},
		UniqueKeys: []string{"id"},
	}
	d := mustDataset(t,
		[]string{"id", "Email", "Date", "Time"},
		[]string{"1", "a@b.com", "2024-02-29", "23:59:59"},
		[]string{"2", "x.y@example.org", "2023-12-31", "00:00:00"},
	)

	if got := mustEvaluate(t, s, d); len(got) != 0 {
		t.Errorf("Evaluate() = %+v, want no findings", got)
	}
}

func TestEvaluate_MissingRequiredColumn(t *testing.T) {
	s := &schema.Schema{Required: []string{"customer_id"}}
	d := mustDataset(t, []string{"id"}, []string{"1"})

	got := mustEvaluate(t, s, d)
	if len(got) != 1 {
		t.Fatalf("len(findings) = %d, want 1: %+v", len(got), got)
	}
	f := got[0]
	if f.Kind != ColumnMissing || f.Column != "customer_id" || f.Reason != ReasonColumnMissing {
		t.Errorf("finding = %+v, want ColumnMissing for customer_id", f)
	}
	if f.Expectation() != ExpectColumnToExist {
		t.Errorf("Expectation() = %q, want %q", f.Expectation(), ExpectColumnToExist)
	}
}

func TestEvaluate_NullValues(t *testing.T) {
	s := &schema.Schema{Required: []string{"name"}}
	d := mustDataset(t,
		[]string{"name"},
		[]string{"alice"},
		[]string{""},
		[]string{"   "},
		[]string{"NA"},
		[]string{"bob"},
	)

	got := mustEvaluate(t, s, d)
	if len(got) != 1 {
		t.Fatalf("len(findings) = %d, want 1", len(got))
	}
	res, ok := got[0].Result.(NullResult)
	if !ok {
		t.Fatalf("Result type = %T, want NullResult", got[0].Result)
	}
	if res.UnexpectedCount != 3 {
		t.Errorf("UnexpectedCount = %d, want 3", res.UnexpectedCount)
	}
	want := []string{"", "   ", "NA"}
	if !reflect.DeepEqual(res.SampleUnexpectedValues, want) {
		t.Errorf("SampleUnexpectedValues = %q, want %q", res.SampleUnexpectedValues, want)
	}
}

func TestEvaluate_Uniqueness(t *testing.T) {
	s := &schema.Schema{UniqueKeys: []string{"k"}}
	d := mustDataset(t,
		[]string{"k"},
		[]string{"A"}, []string{"B"}, []string{"A"}, []string{"C"}, []string{"A"},
	)

	got := mustEvaluate(t, s, d)
	if len(got) != 1 {
		t.Fatalf("len(findings) = %d, want 1", len(got))
	}
	res := got[0].Result.(DuplicateResult)
	if res.DuplicateCount != 3 {
		t.Errorf("DuplicateCount = %d, want 3", res.DuplicateCount)
	}
	if !reflect.DeepEqual(res.SampleDuplicateValues, []string{"A"}) {
		t.Errorf("SampleDuplicateValues = %q, want [A]", res.SampleDuplicateValues)
	}
}

func TestEvaluate_UniquenessExactMatch(t *testing.T) {
	s := &schema.Schema{UniqueKeys: []string{"k"}}
	d := mustDataset(t,
		[]string{"k"},
		[]string{"x"}, []string{" x"}, []string{"X"}, []string{"y"}, []string{"x"}, []string{"y"},
	)

	res := mustEvaluate(t, s, d)[0].Result.(DuplicateResult)
	if res.DuplicateCount != 4 {
		t.Errorf("DuplicateCount = %d, want 4", res.DuplicateCount)
	}
	if !reflect.DeepEqual(res.SampleDuplicateValues, []string{"x", "y"}) {
		t.Errorf("SampleDuplicateValues = %q, want [x y] in first-seen order", res.SampleDuplicateValues)
	}
}

func TestEvaluate_UniquenessSampleLimit(t *testing.T) {
	s := &schema.Schema{UniqueKeys: []string{"k"}}
	records := [][]string{{"k"}}
	for i := 0; i < 25; i++ {
		v := strconv.Itoa(i)
		records = append(records, []string{v}, []string{v})
	}
	d := mustDataset(t, records...)

	res := mustEvaluate(t, s, d)[0].Result.(DuplicateResult)
	if res.DuplicateCount != 50 {
		t.Errorf("DuplicateCount = %d, want 50", res.DuplicateCount)
	}
	if len(res.SampleDuplicateValues) != MaxDuplicateValues {
		t.Errorf("len(SampleDuplicateValues) = %d, want %d", len(res.SampleDuplicateValues), MaxDuplicateValues)
	}
}

func TestEvaluate_UniqueKeyMissing(t *testing.T) {
	s := &schema.Schema{UniqueKeys: []string{"id"}}
	d := mustDataset(t, []string{"other"}, []string{"1"})

	got := mustEvaluate(t, s, d)
	if len(got) != 1 || got[0].Kind != ColumnMissing || got[0].Reason != ReasonColumnMissingForUnique {
		t.Errorf("findings = %+v, want one ColumnMissing for uniqueness", got)
	}
}

func TestEvaluate_TypeCoercion(t *testing.T) {
	s := &schema.Schema{Columns: []schema.Column{
		column("qty", schema.TypeInteger),
		column("price", schema.TypeFloat),
		column("at", schema.TypeTimestamp),
		column("note", schema.TypeString),
		{Name: "blob", Tag: "blob", Type: schema.TypeUnknown},
		column("absent", schema.TypeInteger),
	}}
	d := mustDataset(t,
		[]string{"qty", "price", "at", "note", "blob"},
		[]string{"1", "1.5", "2024-01-01", "x", "?"},
		[]string{"two", "abc", "not a date", "y", "?"},
		[]string{"", "NA", "  ", "z", "?"},
		[]string{"3", "1e3", "2024-01-01T10:00:00Z", "z", "?"},
	)

	got := mustEvaluate(t, s, d)
	if len(got) != 3 {
		t.Fatalf("len(findings) = %d, want 3: %+v", len(got), got)
	}

	wantCols := []string{"qty", "price", "at"}
	wantTypes := []string{"integer", "float", "timestamp"}
	wantBad := [][]string{{"two"}, {"abc"}, {"not a date"}}
	for i, f := range got {
		if f.Kind != TypeCoercionFailed || f.Column != wantCols[i] {
			t.Errorf("findings[%d] = %+v, want TypeCoercionFailed for %s", i, f, wantCols[i])
			continue
		}
		res := f.Result.(CoercionResult)
		if res.FailedCount != 1 || !reflect.DeepEqual(res.SampleBadValues, wantBad[i]) {
			t.Errorf("findings[%d] result = %+v, want one bad value %q", i, res, wantBad[i])
		}
		if res.DesiredType != wantTypes[i] {
			t.Errorf("findings[%d].DesiredType = %q, want %q", i, res.DesiredType, wantTypes[i])
		}
	}
}

func TestEvaluate_SampleTruncation(t *testing.T) {
	s := &schema.Schema{Columns: []schema.Column{column("n", schema.TypeInteger)}}
	records := [][]string{{"n"}}
	for i := 0; i < 15; i++ {
		records = append(records, []string{"bad" + strconv.Itoa(i)})
	}
	d := mustDataset(t, records...)

	res := mustEvaluate(t, s, d)[0].Result.(CoercionResult)
	if res.FailedCount != 15 {
		t.Errorf("FailedCount = %d, want 15", res.FailedCount)
	}
	if len(res.SampleBadValues) != MaxSampleValues {
		t.Fatalf("len(SampleBadValues) = %d, want %d", len(res.SampleBadValues), MaxSampleValues)
	}
	for i, v := range res.SampleBadValues {
		if want := "bad" + strconv.Itoa(i); v != want {
			t.Errorf("SampleBadValues[%d] = %q, want %q", i, v, want)
		}
	}
}

func TestEvaluate_StrictFormats(t *testing.T) {
	s := &schema.Schema{}
	d := mustDataset(t,
		[]string{"Email", "Date", "Time"},
		[]string{"a@b.com", "2024-02-29", "12:30:00"},
		[]string{"a@b", "2024-02-30", "24:00:00"},
		[]string{"a b@c.com", "24-02-29", "7:5"},
		[]string{"", "", ""},
	)

	got := mustEvaluate(t, s, d)
	if len(got) != 3 {
		t.Fatalf("len(findings) = %d, want 3: %+v", len(got), got)
	}

	tests := []struct {
		expectation string
		column      string
		format      string
		sample      []string
	}{
		{"expect_column_values_to_match_strict_email", "Email", "email", []string{"a@b", "a b@c.com", ""}},
		{"expect_column_values_to_match_strict_date", "Date", "%Y-%m-%d", []string{"2024-02-30", "24-02-29", ""}},
		{"expect_column_values_to_match_strict_time", "Time", "%H:%M:%S", []string{"24:00:00", "7:5", ""}},
	}
	for i, tt := range tests {
		f := got[i]
		if f.Expectation() != tt.expectation || f.Column != tt.column {
			t.Errorf("findings[%d] = %s/%s, want %s/%s", i, f.Expectation(), f.Column, tt.expectation, tt.column)
			continue
		}
		res := f.Result.(FormatResult)
		if res.InvalidCount != 3 {
			t.Errorf("%s InvalidCount = %d, want 3", tt.column, res.InvalidCount)
		}
		if res.ExpectedFormat != tt.format {
			t.Errorf("%s ExpectedFormat = %q, want %q", tt.column, res.ExpectedFormat, tt.format)
		}
		if !reflect.DeepEqual(res.SampleInvalidValues, tt.sample) {
			t.Errorf("%s SampleInvalidValues = %q, want %q", tt.column, res.SampleInvalidValues, tt.sample)
		}
	}
}

func TestEvaluate_StrictFormatOverride(t *testing.T) {
	s := &schema.Schema{Formats: schema.StrictFormats{Date: "%d/%m/%Y", Time: "%H:%M"}}
	d := mustDataset(t,
		[]string{"Date", "Time"},
		[]string{"29/02/2024", "09:15"},
		[]string{"2024-02-29", "09:15:00"},
	)

	got := mustEvaluate(t, s, d)
	if len(got) != 2 {
		t.Fatalf("len(findings) = %d, want 2", len(got))
	}
	if res := got[0].Result.(FormatResult); res.ExpectedFormat != "%d/%m/%Y" || res.InvalidCount != 1 {
		t.Errorf("Date result = %+v", res)
	}
	if res := got[1].Result.(FormatResult); res.ExpectedFormat != "%H:%M" || res.InvalidCount != 1 {
		t.Errorf("Time result = %+v", res)
	}
}

func TestEvaluate_BadPattern(t *testing.T) {
	tests := []struct {
		name    string
		formats schema.StrictFormats
	}{
		{"unknown directive", schema.StrictFormats{Date: "%Y-%Q"}},
		{"repeated directive", schema.StrictFormats{Time: "%H:%H"}},
		{"bad email regex", schema.StrictFormats{Email: "[a-"}},
	}
	d := mustDataset(t, []string{"x"}, []string{"1"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(&schema.Schema{Formats: tt.formats}, d)
			if !errors.Is(err, ErrBadPattern) {
				t.Errorf("Evaluate() error = %v, want ErrBadPattern", err)
			}
		})
	}
}

func TestEvaluate_ZeroRows(t *testing.T) {
	s := &schema.Schema{
		Columns:    []schema.Column{column("id", schema.TypeInteger), column("Date", schema.TypeTimestamp)},
		Required:   []string{"id", "missing"},
		UniqueKeys: []string{"id"},
	}
	d := mustDataset(t, []string{"id", "Email", "Date", "Time"})

	got := mustEvaluate(t, s, d)
	if len(got) != 1 || got[0].Kind != ColumnMissing || got[0].Column != "missing" {
		t.Errorf("findings = %+v, want only ColumnMissing for missing", got)
	}
}

func TestEvaluate_Order(t *testing.T) {
	s := &schema.Schema{
		Columns:    []schema.Column{column("n", schema.TypeInteger)},
		Required:   []string{"gone", "n"},
		UniqueKeys: []string{"n", "also_gone"},
	}
	d := mustDataset(t,
		[]string{"n", "Email"},
		[]string{"x", "bad"},
		[]string{"x", "a@b.com"},
		[]string{"", "a@b.com"},
	)

	got := mustEvaluate(t, s, d)
	want := []Kind{ColumnMissing, NullValuesPresent, DuplicateValues, ColumnMissing, TypeCoercionFailed, StrictFormatInvalid}
	if len(got) != len(want) {
		t.Fatalf("len(findings) = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i].Kind != k {
			t.Errorf("findings[%d].Kind = %v, want %v", i, got[i].Kind, k)
		}
	}
}

func TestEngine_ParallelMatchesSequential(t *testing.T) {
	s := &schema.Schema{
		Columns:    []schema.Column{column("n", schema.TypeFloat), column("at", schema.TypeTimestamp)},
		Required:   []string{"n", "gone"},
		UniqueKeys: []string{"n"},
	}
	records := [][]string{{"n", "at", "Email", "Date", "Time"}}
	for i := 0; i < 200; i++ {
		records = append(records, []string{
			strconv.Itoa(i % 7),
			"2024-01-" + strconv.Itoa(i%40),
			"user" + strconv.Itoa(i) + "@example.com",
			"2024-02-" + strconv.Itoa(i%35),
			"12:" + strconv.Itoa(i%70) + ":00",
		})
	}
	d := mustDataset(t, records...)

	seq, err := Engine{}.Evaluate(context.Background(), s, d)
	if err != nil {
		t.Fatalf("sequential Evaluate() error = %v", err)
	}
	par, err := Engine{Parallel: true}.Evaluate(context.Background(), s, d)
	if err != nil {
		t.Fatalf("parallel Evaluate() error = %v", err)
	}
	if !reflect.DeepEqual(seq, par) {
		t.Errorf("parallel findings differ from sequential\nseq: %+v\npar: %+v", seq, par)
	}

	again, _ := Engine{}.Evaluate(context.Background(), s, d)
	if !reflect.DeepEqual(seq, again) {
		t.Error("Evaluate() is not idempotent")
	}
}

func TestEngine_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := mustDataset(t, []string{"x"})
	if _, err := (Engine{}).Evaluate(ctx, &schema.Schema{}, d); !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want context.Canceled", err)
	}
}

// cancelAfter is a context whose Err starts reporting context.Canceled once
// it has been consulted n times.
type cancelAfter struct {
	context.Context
	mu sync.Mutex
	n  int
}

func (c *cancelAfter) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n <= 0 {
		return context.Canceled
	}
	c.n--
	return nil
}

func TestEngine_CanceledDuringScan(t *testing.T) {
	s := &schema.Schema{
		Columns:  []schema.Column{column("n", schema.TypeInteger)},
		Required: []string{"n"},
	}
	records := [][]string{{"n"}}
	for i := 0; i < 3*checkEvery; i++ {
		records = append(records, []string{strconv.Itoa(i)})
	}
	d := mustDataset(t, records...)

	// The first check passes; the scans see the cancellation.
	ctx := &cancelAfter{Context: context.Background(), n: 1}
	got, err := Engine{}.Evaluate(ctx, s, d)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want context.Canceled", err)
	}
	if got != nil {
		t.Errorf("Evaluate() findings = %+v, want nil", got)
	}
}

func TestEngine_ParallelCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := mustDataset(t, []string{"x"}, []string{"1"})
	s := &schema.Schema{Required: []string{"x"}}
	if _, err := (Engine{Parallel: true}).Evaluate(ctx, s, d); !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want context.Canceled", err)
	}
}
