// Package rules evaluates a schema against a dataset and reports every
// violated expectation as a Finding.
//
// Five check classes run in a fixed order, and every class always runs:
//
//  1. existence of required columns
//  2. non-null values in required columns
//  3. uniqueness of key columns
//  4. convertibility of declared column types
//  5. strict Email, Date and Time formats
//
// The checks are pure functions of the schema and dataset. Findings are data,
// not errors; the only errors Evaluate returns concern the rule set itself.
package rules

import "strings"

// Kind classifies a Finding.
type Kind uint8

const (
	ColumnMissing Kind = iota + 1
	NullValuesPresent
	DuplicateValues
	TypeCoercionFailed
	StrictFormatInvalid
)

func (k Kind) String() string {
	switch k {
	case ColumnMissing:
		return "ColumnMissing"
	case NullValuesPresent:
		return "NullValuesPresent"
	case DuplicateValues:
		return "DuplicateValues"
	case TypeCoercionFailed:
		return "TypeCoercionFailed"
	case StrictFormatInvalid:
		return "StrictFormatInvalid"
	}
	return "Unknown"
}

// Expectation names as they appear in reports.
const (
	ExpectColumnToExist      = "expect_column_to_exist"
	ExpectNotNull            = "expect_column_values_to_not_be_null"
	ExpectUnique             = "expect_column_values_to_be_unique"
	ExpectTypeConvertible    = "expect_column_type_convertible"
	expectStrictFormatPrefix = "expect_column_values_to_match_strict_"
)

// Reasons attached to ColumnMissing findings.
const (
	ReasonColumnMissing          = "column missing"
	ReasonColumnMissingForUnique = "column missing (for uniqueness check)"
)

// Sample limits.
const (
	MaxSampleValues    = 10
	MaxDuplicateValues = 20
)

// TableLevel is the Column of a finding not tied to a single column.
const TableLevel = "table-level"

// Finding records one violated expectation. Exactly one of Reason and Result
// is set: ColumnMissing findings carry a Reason, all others a Result.
type Finding struct {
	Kind   Kind
	Column string
	Reason string
	Result any
}

// Expectation returns the report name of the violated expectation.
func (f Finding) Expectation() string {
	switch f.Kind {
	case ColumnMissing:
		return ExpectColumnToExist
	case NullValuesPresent:
		return ExpectNotNull
	case DuplicateValues:
		return ExpectUnique
	case TypeCoercionFailed:
		return ExpectTypeConvertible
	case StrictFormatInvalid:
		return expectStrictFormatPrefix + strings.ToLower(f.Column)
	}
	return "unknown"
}

// NullResult is the Result of a NullValuesPresent finding.
type NullResult struct {
	UnexpectedCount        int      `json:"unexpected_count"`
	SampleUnexpectedValues []string `json:"sample_unexpected_values"`
}

// DuplicateResult is the Result of a DuplicateValues finding. DuplicateCount
// counts every row holding a repeated value, the first occurrence included.
type DuplicateResult struct {
	DuplicateCount        int      `json:"duplicate_count"`
	SampleDuplicateValues []string `json:"sample_duplicate_values"`
}

// CoercionResult is the Result of a TypeCoercionFailed finding.
type CoercionResult struct {
	DesiredType     string   `json:"desired_type"`
	FailedCount     int      `json:"failed_count"`
	SampleBadValues []string `json:"sample_bad_values"`
}

// FormatResult is the Result of a StrictFormatInvalid finding.
type FormatResult struct {
	InvalidCount        int      `json:"invalid_count"`
	SampleInvalidValues []string `json:"sample_invalid_values"`
	ExpectedFormat      string   `json:"expected_format"`
}
