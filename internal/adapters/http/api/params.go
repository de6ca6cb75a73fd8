package api

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/okian/facequiz/internal/domain/people"
)

// leadingInt parses an optional sign and the leading digits of s, ignoring
// any trailing text ("12abc" is 12). ok is false when no digit leads.
func leadingInt(s string) (n int, ok bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(v), true
}

// intOr returns the leading integer of s, or def when there is none.
func intOr(s string, def int) int {
	if n, ok := leadingInt(s); ok {
		return n
	}
	return def
}

// positiveOr returns the leading integer of s when it is >= 1, or def.
func positiveOr(s string, def int) int {
	if n, ok := leadingInt(s); ok && n >= 1 {
		return n
	}
	return def
}

// optionalInt returns nil when s carries no integer.
func optionalInt(s string) *int {
	n, ok := leadingInt(s)
	if !ok {
		return nil
	}
	return &n
}

// floatOrNaN parses the leading number of s the way leadingInt does
// ("10abc" is 10, "2.5e1x" is 25), yielding NaN when no digit leads.
func floatOrNaN(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := 0
	for end < len(s) && isDigit(s[end]) {
		end++
		digits++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && isDigit(s[end]) {
			end++
			digits++
		}
	}
	if digits == 0 {
		return math.NaN()
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '-' || s[exp] == '+') {
			exp++
		}
		if exp < len(s) && isDigit(s[exp]) {
			for exp < len(s) && isDigit(s[exp]) {
				exp++
			}
			end = exp
		}
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// peopleFilter reads the /people query string.
func peopleFilter(q url.Values) people.Filter {
	f := people.Filter{
		Name:      q.Get("name"),
		Ethnicity: q.Get("ethnicity"),
		Gender:    q.Get("gender"),
		MinAge:    optionalInt(q.Get("minAge")),
		MaxAge:    optionalInt(q.Get("maxAge")),
	}
	for _, v := range q["occupation"] {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				f.Occupations = append(f.Occupations, o)
			}
		}
	}
	return f
}
