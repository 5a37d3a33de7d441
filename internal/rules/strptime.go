package rules

// strptime.go compiles strptime-style patterns (%Y-%m-%d, %H:%M:%S, ...) into
// anchored, case-insensitive regular expressions with one named group per
// directive. A match is only accepted if the captured fields also form a real
// date and time, so 2024-02-30 fails %Y-%m-%d.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrBadPattern is returned for strict-format patterns that cannot be compiled.
var ErrBadPattern = errors.New("bad strict-format pattern")

// patternAliases are the placeholder spellings accepted besides strptime.
var patternAliases = map[string]string{
	"YYYY-MM-DD": "%Y-%m-%d",
	"YYYY/MM/DD": "%Y/%m/%d",
	"DD/MM/YYYY": "%d/%m/%Y",
	"MM/DD/YYYY": "%m/%d/%Y",
	"HH:MM:SS":   "%H:%M:%S",
	"HH:MM":      "%H:%M",
}

var (
	monthAbbrevs = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
	monthNames   = []string{"january", "february", "march", "april", "may", "june", "july", "august", "september", "october", "november", "december"}
	dayAbbrevs   = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}
	dayNames     = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}
)

// directives maps each supported directive to its group name and expression.
// Alternatives are ordered longest first.
var directives = map[byte]struct {
	group string
	expr  string
}{
	'Y': {"Y", `\d\d\d\d`},
	'y': {"y", `\d\d`},
	'm': {"m", `1[0-2]|0[1-9]|[1-9]`},
	'd': {"d", `3[01]|[12]\d|0[1-9]|[1-9]| [1-9]`},
	'H': {"H", `2[0-3]|[0-1]\d|\d`},
	'I': {"I", `1[0-2]|0[1-9]|[1-9]`},
	'M': {"M", `[0-5]\d|\d`},
	'S': {"S", `[0-5]\d|\d`},
	'f': {"f", `\d{1,6}`},
	'j': {"j", `36[0-6]|3[0-5]\d|[12]\d\d|0[1-9]\d|00[1-9]|[1-9]\d|0[1-9]|[1-9]`},
	'p': {"p", `am|pm`},
	'b': {"b", strings.Join(monthAbbrevs, "|")},
	'B': {"B", strings.Join(monthNames, "|")},
	'a': {"a", strings.Join(dayAbbrevs, "|")},
	'A': {"A", strings.Join(dayNames, "|")},
	'w': {"w", `[0-6]`},
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// layout is a compiled strptime pattern.
type layout struct {
	pattern string
	re      *regexp.Regexp
}

// compileLayout translates pattern into a matcher. Unknown directives and
// directives used twice are rejected.
func compileLayout(pattern string) (*layout, error) {
	src := pattern
	if alias, ok := patternAliases[strings.ToUpper(strings.TrimSpace(pattern))]; ok {
		src = alias
	}

	var b strings.Builder
	b.WriteString(`(?i)^`)
	seen := make(map[byte]bool)
	literal := func(s string) {
		// Runs of whitespace in the pattern match any run of whitespace.
		parts := whitespaceRun.Split(s, -1)
		for i, p := range parts {
			if i > 0 {
				b.WriteString(`\s+`)
			}
			b.WriteString(regexp.QuoteMeta(p))
		}
	}

	start := 0
	for i := 0; i < len(src); i++ {
		if src[i] != '%' {
			continue
		}
		literal(src[start:i])
		if i+1 >= len(src) {
			return nil, fmt.Errorf("%w: %q: stray '%%' at end", ErrBadPattern, pattern)
		}
		c := src[i+1]
		i++
		start = i + 1

		if c == '%' {
			b.WriteString(`%`)
			continue
		}
		d, ok := directives[c]
		if !ok {
			return nil, fmt.Errorf("%w: %q: unknown directive %%%c", ErrBadPattern, pattern, c)
		}
		if seen[c] {
			return nil, fmt.Errorf("%w: %q: directive %%%c used twice", ErrBadPattern, pattern, c)
		}
		seen[c] = true
		fmt.Fprintf(&b, `(?P<%s>%s)`, d.group, d.expr)
	}
	literal(src[start:])
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadPattern, pattern, err)
	}
	return &layout{pattern: pattern, re: re}, nil
}

// parse matches s against the layout and builds the time it denotes. Fields
// the pattern does not mention default to 1900-01-01 00:00:00.
func (l *layout) parse(s string) (time.Time, bool) {
	m := l.re.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	fields := make(map[string]string, len(m))
	for i, name := range l.re.SubexpNames() {
		if name != "" {
			fields[name] = strings.ToLower(strings.TrimSpace(m[i]))
		}
	}
	num := func(key string) (int, bool) {
		v, ok := fields[key]
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(v)
		return n, err == nil
	}

	year, month, day := 1900, 1, 1
	if y, ok := num("Y"); ok {
		year = y
	} else if y, ok := num("y"); ok {
		// Same pivot as C strptime: 69-99 is 1900s, 00-68 is 2000s.
		if y >= 69 {
			year = 1900 + y
		} else {
			year = 2000 + y
		}
	}

	if mo, ok := num("m"); ok {
		month = mo
	} else if name, ok := fields["b"]; ok {
		month = indexOf(monthAbbrevs, name) + 1
	} else if name, ok := fields["B"]; ok {
		month = indexOf(monthNames, name) + 1
	}
	if d, ok := num("d"); ok {
		day = d
	}

	if !validDate(year, month, day) {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)

	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := fields[k]; ok {
				return true
			}
		}
		return false
	}
	if j, ok := num("j"); ok && !has("m", "b", "B", "d") {
		t = time.Date(year, time.January, j, 0, 0, 0, 0, time.UTC)
		if t.Year() != year {
			return time.Time{}, false
		}
	}

	hour, _ := num("H")
	if h, ok := num("I"); ok {
		hour = h % 12
		if fields["p"] == "pm" {
			hour += 12
		}
	}
	minute, _ := num("M")
	second, _ := num("S")
	nsec := 0
	if f, ok := fields["f"]; ok {
		n, _ := strconv.Atoi(f + strings.Repeat("0", 9-len(f)))
		nsec = n
	}

	return t.Add(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second +
		time.Duration(nsec)), true
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 || year < 1 {
		return false
	}
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return day <= last
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}
