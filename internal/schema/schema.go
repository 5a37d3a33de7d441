// Package schema models the declarative rule set a dataset is validated
// against, and loads it from its YAML definition file.
//
// A schema carries four independent constraint axes: declared column types,
// required columns, uniqueness keys, and strict-format overrides for the
// special Email, Date and Time columns. A column may appear on any number of
// axes at once.
package schema

import "strings"

// ColumnType is the declared type of a column.
type ColumnType uint8

const (
	// TypeUnknown is any unrecognized tag. It places no constraint on values.
	TypeUnknown ColumnType = iota
	TypeString
	TypeInteger
	TypeFloat
	TypeTimestamp
)

func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeTimestamp:
		return "timestamp"
	}
	return "unknown"
}

// ParseType maps a type tag to its ColumnType. Matching is case-insensitive and
// accepts the common aliases for each of the four types; anything else is
// TypeUnknown.
func ParseType(tag string) ColumnType {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "string", "str", "object":
		return TypeString
	case "integer", "int":
		return TypeInteger
	case "float", "numeric", "number":
		return TypeFloat
	case "timestamp", "datetime", "date":
		return TypeTimestamp
	}
	return TypeUnknown
}

// Column is one declared column and its type.
type Column struct {
	Name string
	Tag  string // lowercased tag as written in the schema file
	Type ColumnType
}

// Strict-format column names. These are matched exactly against dataset headers.
const (
	EmailColumn = "Email"
	DateColumn  = "Date"
	TimeColumn  = "Time"
)

// Default strict formats, in strptime notation.
const (
	DefaultDateFormat  = "%Y-%m-%d"
	DefaultTimeFormat  = "%H:%M:%S"
	DefaultEmailFormat = "email"
)

// StrictFormats holds the overrides from the validations section. An empty
// field means the default for that column.
type StrictFormats struct {
	Email string
	Date  string
	Time  string
}

// EmailFormat returns the configured email format, or DefaultEmailFormat.
func (f StrictFormats) EmailFormat() string {
	if f.Email == "" {
		return DefaultEmailFormat
	}
	return f.Email
}

// DateFormat returns the configured date pattern, or DefaultDateFormat.
func (f StrictFormats) DateFormat() string {
	if f.Date == "" {
		return DefaultDateFormat
	}
	return f.Date
}

// TimeFormat returns the configured time pattern, or DefaultTimeFormat.
func (f StrictFormats) TimeFormat() string {
	if f.Time == "" {
		return DefaultTimeFormat
	}
	return f.Time
}

// Schema is a parsed rule set. It is never mutated after loading.
type Schema struct {
	Columns    []Column
	Required   []string
	UniqueKeys []string
	Formats    StrictFormats

	// Path is the file the schema was read from, empty when parsed from memory.
	Path string
}

// ColumnTypes returns the declared name to type mapping.
func (s *Schema) ColumnTypes() map[string]ColumnType {
	m := make(map[string]ColumnType, len(s.Columns))
	for _, c := range s.Columns {
		m[c.Name] = c.Type
	}
	return m
}

// ExpectationCount is the number of expectations one evaluation runs:
// one per required column, one per unique key, one per declared column, plus
// the three strict-format checks, which always count whether or not their
// column is present.
func (s *Schema) ExpectationCount() int {
	return len(s.Required) + len(s.UniqueKeys) + len(s.Columns) + 3
}
