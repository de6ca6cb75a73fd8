// Package repository defines the storage interfaces and their MongoDB and
// in-memory implementations.
package repository

import (
	"context"

	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/internal/domain/people"
)

// PersonStore serves the read-only profile records.
type PersonStore interface {
	// RandomPeople samples up to n records uniformly without replacement.
	// A short collection yields fewer records, never an error.
	RandomPeople(ctx context.Context, n int) ([]model.Person, error)
	// FilterPeople returns records matching f. limit > 0 samples at most limit
	// matches at random; limit <= 0 returns every match.
	FilterPeople(ctx context.Context, f people.Filter, limit int) ([]model.Person, error)
	// SampleByEthnicity samples up to n records whose ethnicity equals
	// ethnicity, or differs from it when exclude is set.
	SampleByEthnicity(ctx context.Context, ethnicity string, exclude bool, n int) ([]model.Person, error)
	// InsertPeople imports records and returns how many were stored.
	InsertPeople(ctx context.Context, ps []model.Person) (int, error)
}

// VisitorStore keeps one record per caller address.
type VisitorStore interface {
	VisitorExists(ctx context.Context, address string) (bool, error)
	// InsertVisitor returns ErrConflict when the address is already stored.
	InsertVisitor(ctx context.Context, v model.Visitor) error
	VisitorCount(ctx context.Context) (int64, error)
	// VisitorsByDay groups visitors by UTC first-seen day, ascending.
	VisitorsByDay(ctx context.Context) ([]model.DayCount, error)
	// TopCountries returns the n most frequent country codes, descending.
	TopCountries(ctx context.Context, n int) ([]model.CountryCount, error)
}

// GameStore holds the played-games counter.
type GameStore interface {
	// IncrementGames atomically adds one and returns the new value.
	IncrementGames(ctx context.Context) (int64, error)
	// GameCount returns 0 when the counter was never incremented.
	GameCount(ctx context.Context) (int64, error)
}

// LeaderboardStore holds submitted scores. (Name, Total) is unique.
type LeaderboardStore interface {
	// InsertEntry stores e and returns it with its id set.
	// Returns ErrConflict when (Name, Total) already exists.
	InsertEntry(ctx context.Context, e model.LeaderboardEntry) (model.LeaderboardEntry, error)
	// TopEntries returns the k best entries with the given total, best first.
	// k <= 0 returns the whole partition.
	TopEntries(ctx context.Context, total, k int) ([]model.RankedEntry, error)
	// Totals returns the distinct positive totals, ascending.
	Totals(ctx context.Context) ([]int, error)
	// DeleteEntries removes the entries with the given ids. Unknown ids are ignored.
	DeleteEntries(ctx context.Context, ids []string) (int64, error)
	// DeleteUnrankable removes entries with total <= 0.
	DeleteUnrankable(ctx context.Context) (int64, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	PersonStore
	VisitorStore
	GameStore
	LeaderboardStore

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
