// Package model contains domain models passed between layers.
package model

import "time"

// Person is an immutable profile record. Records are imported out-of-band
// and never mutated by the service.
type Person struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Occupation  string `json:"occupation,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Ethnicity   string `json:"ethnicity,omitempty"`
	NativeName  string `json:"nativeName,omitempty"`
	BirthDate   string `json:"birthDate,omitempty"` // YYYY-MM-DDTHH:MM:SSZ
	BirthPlace  string `json:"birthPlace,omitempty"`
	DeathDate   string `json:"deathDate,omitempty"`
	NotableWork string `json:"notableWork,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

// Visitor is the first sighting of a caller address.
type Visitor struct {
	Address     string    `json:"address"`
	FirstSeen   time.Time `json:"firstSeen"`
	CountryCode string    `json:"countryCode,omitempty"`
}

// VisitEvent is queued by the HTTP layer for asynchronous recording.
type VisitEvent struct {
	Address   string
	At        time.Time
	RequestID string
}

// DayCount is the number of first-seen visitors on one UTC calendar day.
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// CountryCount is the number of visitors resolved to one country.
type CountryCount struct {
	CountryCode string `json:"countryCode"`
	Count       int64  `json:"count"`
}

// LeaderboardEntry is a submitted quiz score. (Name, Total) is unique.
type LeaderboardEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Scored      int       `json:"scored"`
	Total       int       `json:"total"`
	CompletedAt time.Time `json:"completedAt"`
}

// RankedEntry is a leaderboard entry with its derived ratio and 1-based rank.
type RankedEntry struct {
	LeaderboardEntry
	Ratio float64 `json:"ratio"`
	Rank  int     `json:"rank"`
}

// QuizRound is one generated "guess the ethnicity" question.
type QuizRound struct {
	Options          []Person `json:"options"`
	CorrectEthnicity string   `json:"correctEthnicity"`
}
