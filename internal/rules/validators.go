package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JonMunkholm/csvgate/internal/coerce"
	"github.com/JonMunkholm/csvgate/internal/schema"
)

// Outcome is the verdict of a validator on one raw value. Normalized is the
// canonical form of an accepted value and empty otherwise.
type Outcome struct {
	OK         bool
	Normalized string
}

// Validator checks a single raw cell value.
type Validator func(raw string) Outcome

// emailRegex is conservative: local@domain.tld with a TLD of two or more
// letters and no whitespace anywhere.
var emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// Numeric accepts base-10 integers and decimals, with optional exponent.
func Numeric(raw string) Outcome {
	n := coerce.Numeric(raw)
	if !n.Valid {
		return Outcome{}
	}
	return Outcome{OK: true, Normalized: strings.TrimSpace(raw)}
}

// Timestamp accepts any recognizable date or date-time.
func Timestamp(raw string) Outcome {
	ts := coerce.Timestamp(raw)
	if !ts.Valid {
		return Outcome{}
	}
	return Outcome{OK: true, Normalized: ts.Time.Format(time.RFC3339Nano)}
}

// Email accepts addresses matching the built-in conservative pattern.
// Consecutive dots are rejected on either side of the @.
func Email(raw string) Outcome {
	v := strings.TrimSpace(raw)
	if v == "" || strings.Contains(v, "..") || !emailRegex.MatchString(v) {
		return Outcome{}
	}
	return Outcome{OK: true, Normalized: v}
}

// EmailFormat returns the email validator for a configured format: the
// built-in check for "email" or "", otherwise the format compiled as a
// regular expression that must match the whole value.
func EmailFormat(format string) (Validator, error) {
	if format == "" || strings.EqualFold(format, schema.DefaultEmailFormat) {
		return Email, nil
	}
	re, err := regexp.Compile(`^(?:` + format + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: email %q: %v", ErrBadPattern, format, err)
	}
	return func(raw string) Outcome {
		v := strings.TrimSpace(raw)
		if v == "" || !re.MatchString(v) {
			return Outcome{}
		}
		return Outcome{OK: true, Normalized: v}
	}, nil
}

// DateFormat returns a validator requiring an exact match of pattern that is
// also a real calendar date. Accepted values normalize to YYYY-MM-DD.
func DateFormat(pattern string) (Validator, error) {
	return strictLayout(pattern, "2006-01-02")
}

// TimeFormat returns a validator requiring an exact match of pattern.
// Accepted values normalize to HH:MM:SS.
func TimeFormat(pattern string) (Validator, error) {
	return strictLayout(pattern, "15:04:05")
}

func strictLayout(pattern, normal string) (Validator, error) {
	l, err := compileLayout(pattern)
	if err != nil {
		return nil, err
	}
	return func(raw string) Outcome {
		v := strings.TrimSpace(raw)
		if v == "" {
			return Outcome{}
		}
		t, ok := l.parse(v)
		if !ok {
			return Outcome{}
		}
		return Outcome{OK: true, Normalized: t.Format(normal)}
	}, nil
}

// typeValidator returns the coercion check for a declared type, or nil when
// the type places no constraint on values.
func typeValidator(t schema.ColumnType) Validator {
	switch t {
	case schema.TypeInteger, schema.TypeFloat:
		return Numeric
	case schema.TypeTimestamp:
		return Timestamp
	}
	return nil
}
