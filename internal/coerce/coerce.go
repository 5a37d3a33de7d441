package coerce

// coerce.go converts raw CSV text into PostgreSQL-typed values.
//
// The rule engine uses the Valid flag of each result to decide whether a cell
// is convertible to its declared type. Parsing is forgiving about layout but
// strict about content:
//   - Numbers are base-10 with a dot decimal separator, optional sign and
//     exponent. No currency or grouping characters are accepted.
//   - Timestamps accept ISO-8601/RFC 3339 (with or without a colon in the
//     offset), space-separated datetimes with an optional zone name, US/EU
//     slash, dash and dot dates, month-name dates, compact 20060102 and a
//     bare time of day.
//
// All functions return Valid=false for empty or unparseable input.

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex matches integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
const TwoDigitYearPivot = 20

// Layouts are tried in order. Month-first slash, dash and dot forms come
// before their day-first counterparts, so 01/02/2024 is January 2nd and
// 15/01/2024 is January 15th.
var (
	dateTimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999Z0700",
		"2006-01-02 15:04:05.999999999 Z07:00",
		"2006-01-02 15:04:05.999999999 Z0700",
		"2006-01-02 15:04:05.999999999 MST",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04 MST",
		"2006-01-02 15:04",
		"2006/01/02 15:04:05",
		"2006/01/02 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006 3:04:05 PM",
		"1/2/2006 3:04 PM",
		"1.2.2006 15:04:05",
		"1.2.2006 15:04",
		"2/1/2006 15:04:05",
		"2/1/2006 15:04",
		"2.1.2006 15:04:05",
		"2.1.2006 15:04",
		"Jan 2 2006 15:04:05",
		"Jan 2 2006 15:04",
		"Jan 2, 2006 15:04:05",
		"Jan 2, 2006 15:04",
		"Jan 2, 2006 3:04 PM",
		"2 Jan 2006 15:04:05",
		"2 Jan 2006 15:04",
		time.RFC1123Z,
		time.RFC1123,
		time.UnixDate,
		time.ANSIC,
	}
	timeOnlyLayouts = []string{
		"15:04:05.999999999", "15:04", "3:04:05 PM", "3:04 PM", "3:04PM",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02", "2006-1-2",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"Jan 2, 2006", "Jan 2 2006", "January 2, 2006", "January 2 2006",
		"2 Jan 2006", "2 January 2006", "2-Jan-2006", "02-Jan-2006",
		"20060102",
	}
)

// Numeric converts a string to pgtype.Numeric. Surrounding whitespace is
// ignored.
func Numeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" || !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	// pgtype.Numeric.Scan rejects exponents; apply them to the scanned mantissa.
	mantissa, exp := s, int64(0)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.ParseInt(s[i+1:], 10, 16)
		if err != nil {
			return pgtype.Numeric{Valid: false}
		}
		mantissa, exp = s[:i], e
	}

	var n pgtype.Numeric
	if err := n.Scan(mantissa); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	n.Exp += int32(exp)
	return n
}

// Timestamp converts a string to pgtype.Timestamp. Values carrying a zone
// offset are normalized to UTC. Date-only values land at midnight.
func Timestamp(s string) pgtype.Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Timestamp{Valid: false}
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Timestamp{Time: t.UTC(), Valid: true}
		}
	}

	if d := Date(s); d.Valid {
		return pgtype.Timestamp{Time: d.Time, Valid: true}
	}

	// A bare time of day belongs to the current UTC date.
	for _, layout := range timeOnlyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := time.Now().UTC().Date()
			at := time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
			return pgtype.Timestamp{Time: at, Valid: true}
		}
	}
	return pgtype.Timestamp{Valid: false}
}

// Date converts a string to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
func Date(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	// 4-digit year layouts first, they are unambiguous
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}
