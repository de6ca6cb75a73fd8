// Package people describes record filters and their age-to-birth-date translation.
package people

import (
	"regexp"
	"strings"
	"time"
)

// BirthDateLayout is the only birth date format an age filter can match.
const BirthDateLayout = "2006-01-02T15:04:05Z"

// BirthDatePattern matches BirthDateLayout strings.
const BirthDatePattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`

var birthDateRe = regexp.MustCompile(BirthDatePattern)

// Filter selects person records. Empty fields do not filter.
type Filter struct {
	Name      string
	Ethnicity string
	Gender    string
	// Occupations are compared case-insensitively against the whole occupation.
	Occupations []string
	// MinAge and MaxAge are inclusive ages in years; nil means unbounded.
	MinAge *int
	MaxAge *int
}

// HasAge reports whether an age bound is set.
func (f Filter) HasAge() bool { return f.MinAge != nil || f.MaxAge != nil }

// DateRange is a lexicographic range over BirthDateLayout strings.
// Empty bounds are open. From is inclusive, To is inclusive.
type DateRange struct {
	From string
	To   string
}

// BirthDateRange converts the age bounds into a birth date range relative to now.
// Someone is at least MinAge if born on or before now-MinAge years, and at most
// MaxAge if born after now-(MaxAge+1) years.
func (f Filter) BirthDateRange(now time.Time) DateRange {
	now = now.UTC()
	var r DateRange
	if f.MinAge != nil {
		r.To = now.AddDate(-*f.MinAge, 0, 0).Format(BirthDateLayout)
	}
	if f.MaxAge != nil {
		r.From = now.AddDate(-(*f.MaxAge + 1), 0, 0).Add(time.Second).Format(BirthDateLayout)
	}
	return r
}

// Contains reports whether a birth date string lies inside r.
func (r DateRange) Contains(birthDate string) bool {
	if !birthDateRe.MatchString(birthDate) {
		return false
	}
	if r.From != "" && birthDate < r.From {
		return false
	}
	if r.To != "" && birthDate > r.To {
		return false
	}
	return true
}

// RestrictOccupations drops requested occupations not present in allowed
// (case-insensitive) and returns the rest. An empty allow-list allows all.
func RestrictOccupations(requested, allowed []string) []string {
	out := make([]string, 0, len(requested))
	for _, o := range requested {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if len(allowed) == 0 || containsFold(allowed, o) {
			out = append(out, o)
		}
	}
	return out
}

// MatchOccupation reports whether occupation equals one of the set, ignoring case.
func MatchOccupation(occupation string, set []string) bool {
	return containsFold(set, occupation)
}

func containsFold(set []string, s string) bool {
	for _, v := range set {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
