package coerce

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// Numeric Tests
// ----------------------------------------------------------------------------

func TestNumeric(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
	}{
		{name: "positive integer", input: "123", wantValid: true},
		{name: "zero", input: "0", wantValid: true},
		{name: "negative integer", input: "-456", wantValid: true},
		{name: "explicit plus", input: "+7", wantValid: true},
		{name: "leading zeros", input: "007", wantValid: true},
		{name: "decimal", input: "123.45", wantValid: true},
		{name: "leading decimal point", input: ".99", wantValid: true},
		{name: "trailing decimal point", input: "99.", wantValid: true},
		{name: "scientific notation", input: "1.5e3", wantValid: true},
		{name: "negative exponent", input: "2E-4", wantValid: true},
		{name: "surrounding whitespace", input: "  42  ", wantValid: true},

		{name: "empty", input: "", wantValid: false},
		{name: "whitespace only", input: "   ", wantValid: false},
		{name: "letters", input: "abc", wantValid: false},
		{name: "currency symbol", input: "$12", wantValid: false},
		{name: "thousands separator", input: "1,234", wantValid: false},
		{name: "comma decimal", input: "1,5", wantValid: false},
		{name: "two decimal points", input: "1.2.3", wantValid: false},
		{name: "lone sign", input: "-", wantValid: false},
		{name: "lone dot", input: ".", wantValid: false},
		{name: "trailing junk", input: "12abc", wantValid: false},
		{name: "hex", input: "0x1F", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Numeric(tt.input)
			if got.Valid != tt.wantValid {
				t.Errorf("Numeric(%q).Valid = %v, want %v", tt.input, got.Valid, tt.wantValid)
			}
		})
	}
}

func TestNumeric_Value(t *testing.T) {
	got := Numeric("123.45")
	f, err := got.Float64Value()
	if err != nil {
		t.Fatalf("Float64Value() error = %v", err)
	}
	if f.Float64 != 123.45 {
		t.Errorf("Numeric(123.45) = %v, want 123.45", f.Float64)
	}
}

// ----------------------------------------------------------------------------
// Timestamp Tests
// ----------------------------------------------------------------------------

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		valid bool
	}{
		{"ISO date", "2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), true},
		{"ISO datetime T", "2024-03-15T10:30:00", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), true},
		{"RFC3339 with zone", "2024-03-15T10:30:00+02:00", time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC), true},
		{"RFC3339 Z fractional", "2024-03-15T10:30:00.250Z", time.Date(2024, 3, 15, 10, 30, 0, 250000000, time.UTC), true},
		{"space datetime", "2024-03-15 10:30:00", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), true},
		{"space datetime no seconds", "2024-03-15 10:30", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), true},
		{"US slash", "3/15/2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"US slash with time", "3/15/2024 14:05", time.Date(2024, 3, 15, 14, 5, 0, 0, time.UTC), true},
		{"US slash with PM", "3/15/2024 2:05 PM", time.Date(2024, 3, 15, 14, 5, 0, 0, time.UTC), true},
		{"month name", "Mar 15, 2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"full month name", "March 15, 2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"day month name", "15 Mar 2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"compact", "20240315", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"day-first dotted", "15.03.2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"day-first slash", "15/01/2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"day-first slash padded", "31/12/2024", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), true},
		{"day-first dash", "15-01-2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"ambiguous stays month-first", "01/02/2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"day-first two-digit year", "15/01/24", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"day-first with time", "15/01/2024 10:30", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"dotted with time", "15.01.2024 10:30:15", time.Date(2024, 1, 15, 10, 30, 15, 0, time.UTC), true},
		{"offset without colon", "2024-01-15T10:30:00+0100", time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC), true},
		{"space offset without colon", "2024-01-15 10:30:00-0500", time.Date(2024, 1, 15, 15, 30, 0, 0, time.UTC), true},
		{"zone name", "2024-01-15 10:30:00 UTC", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"zone name no seconds", "2024-01-15 10:30 UTC", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"month name with time", "Jan 15 2024 10:30", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"month name with seconds", "Jan 15 2024 10:30:45", time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC), true},
		{"month name comma with time", "Jan 15, 2024 10:30", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), true},
		{"whitespace", "  2024-01-01  ", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},

		{"empty", "", time.Time{}, false},
		{"word", "yesterday", time.Time{}, false},
		{"impossible date", "2024-02-30", time.Time{}, false},
		{"bad month", "2024-13-01", time.Time{}, false},
		{"no valid day or month", "13/13/2024", time.Time{}, false},
		{"bad clock", "25:61", time.Time{}, false},
		{"number", "12.5", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Timestamp(tt.input)
			if got.Valid != tt.valid {
				t.Fatalf("Timestamp(%q).Valid = %v, want %v", tt.input, got.Valid, tt.valid)
			}
			if tt.valid && !got.Time.Equal(tt.want) {
				t.Errorf("Timestamp(%q) = %v, want %v", tt.input, got.Time, tt.want)
			}
		})
	}
}

func TestTimestamp_TimeOnly(t *testing.T) {
	tests := []struct {
		input        string
		hour, minute int
		second       int
	}{
		{"12:30", 12, 30, 0},
		{"09:05:59", 9, 5, 59},
		{"2:15 PM", 14, 15, 0},
	}
	for _, tt := range tests {
		got := Timestamp(tt.input)
		if !got.Valid {
			t.Errorf("Timestamp(%q).Valid = false, want true", tt.input)
			continue
		}
		if got.Time.Hour() != tt.hour || got.Time.Minute() != tt.minute || got.Time.Second() != tt.second {
			t.Errorf("Timestamp(%q) = %v, want %02d:%02d:%02d", tt.input, got.Time, tt.hour, tt.minute, tt.second)
		}
		if got.Time.Year() < 2000 {
			t.Errorf("Timestamp(%q).Year = %d, want the current date", tt.input, got.Time.Year())
		}
	}
}

// ----------------------------------------------------------------------------
// Date Tests
// ----------------------------------------------------------------------------

func TestDate_TwoDigitYearPivot(t *testing.T) {
	got := Date("1/2/99")
	if !got.Valid {
		t.Fatal("Date(1/2/99) should be valid")
	}
	if got.Time.Year() != 1999 {
		t.Errorf("Date(1/2/99).Year = %d, want 1999", got.Time.Year())
	}

	got = Date("1/2/24")
	if !got.Valid || got.Time.Year() != 2024 {
		t.Errorf("Date(1/2/24) = %+v, want year 2024", got)
	}
}

func TestDate_DayFirstFallback(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"15/01/2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"5/1/2024", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"25.12.2023", time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)},
		{"28-02-2023", time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := Date(tt.input)
		if !got.Valid {
			t.Errorf("Date(%q).Valid = false, want true", tt.input)
			continue
		}
		if !got.Time.Equal(tt.want) {
			t.Errorf("Date(%q) = %v, want %v", tt.input, got.Time, tt.want)
		}
	}
}

func TestNumeric_Exponent(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"1.5e3", 1500},
		{"2E-4", 0.0002},
		{"-3e+2", -300},
	}
	for _, tt := range tests {
		got := Numeric(tt.input)
		if !got.Valid {
			t.Errorf("Numeric(%q).Valid = false, want true", tt.input)
			continue
		}
		f, err := got.Float64Value()
		if err != nil {
			t.Fatalf("Float64Value() error = %v", err)
		}
		if f.Float64 != tt.want {
			t.Errorf("Numeric(%q) = %v, want %v", tt.input, f.Float64, tt.want)
		}
	}
}
