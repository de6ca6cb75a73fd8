package repository

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/internal/domain/people"
	"github.com/okian/facequiz/internal/domain/ranking"
)

// MemoryStore is an in-process Store. It is safe for concurrent use and backs
// `store: memory` deployments and the service tests.
type MemoryStore struct {
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
	rnd    *rand.Rand // guarded by mu (write lock)

	people   []model.Person
	visitors map[string]model.Visitor
	games    int64

	entries []model.LeaderboardEntry // insertion order
	keys    map[entryKey]struct{}
}

type entryKey struct {
	name  string
	total int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	seed := uint64(time.Now().UnixNano())
	s := &MemoryStore{
		now:      time.Now,
		rnd:      rand.New(rand.NewPCG(seed, seed>>1)),
		visitors: make(map[string]model.Visitor),
		keys:     make(map[entryKey]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sample picks up to n items uniformly without replacement. Caller holds mu.
func sample[T any](rnd *rand.Rand, items []T, n int) []T {
	if n <= 0 {
		return []T{}
	}
	if n > len(items) {
		n = len(items)
	}
	out := make([]T, 0, n)
	for _, i := range rnd.Perm(len(items))[:n] {
		out = append(out, items[i])
	}
	return out
}

func (s *MemoryStore) RandomPeople(_ context.Context, n int) ([]model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return sample(s.rnd, s.people, n), nil
}

func (s *MemoryStore) FilterPeople(_ context.Context, f people.Filter, limit int) ([]model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var dates people.DateRange
	if f.HasAge() {
		dates = f.BirthDateRange(s.now())
	}
	matches := make([]model.Person, 0)
	for _, p := range s.people {
		if f.Name != "" && p.Name != f.Name {
			continue
		}
		if f.Ethnicity != "" && p.Ethnicity != f.Ethnicity {
			continue
		}
		if f.Gender != "" && p.Gender != f.Gender {
			continue
		}
		if len(f.Occupations) > 0 && !people.MatchOccupation(p.Occupation, f.Occupations) {
			continue
		}
		if f.HasAge() && !dates.Contains(p.BirthDate) {
			continue
		}
		matches = append(matches, p)
	}
	if limit <= 0 {
		return matches, nil
	}
	return sample(s.rnd, matches, limit), nil
}

func (s *MemoryStore) SampleByEthnicity(_ context.Context, ethnicity string, exclude bool, n int) ([]model.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	pool := make([]model.Person, 0, len(s.people))
	for _, p := range s.people {
		if (p.Ethnicity == ethnicity) != exclude {
			pool = append(pool, p)
		}
	}
	return sample(s.rnd, pool, n), nil
}

func (s *MemoryStore) InsertPeople(_ context.Context, ps []model.Person) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	for _, p := range ps {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		s.people = append(s.people, p)
	}
	return len(ps), nil
}

func (s *MemoryStore) VisitorExists(_ context.Context, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.visitors[address]
	return ok, nil
}

func (s *MemoryStore) InsertVisitor(_ context.Context, v model.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.visitors[v.Address]; ok {
		return ErrConflict
	}
	if v.FirstSeen.IsZero() {
		v.FirstSeen = s.now()
	}
	s.visitors[v.Address] = v
	return nil
}

func (s *MemoryStore) VisitorCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return int64(len(s.visitors)), nil
}

func (s *MemoryStore) VisitorsByDay(_ context.Context) ([]model.DayCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	byDay := make(map[string]int64)
	for _, v := range s.visitors {
		byDay[v.FirstSeen.UTC().Format(time.DateOnly)]++
	}
	out := make([]model.DayCount, 0, len(byDay))
	for d, c := range byDay {
		out = append(out, model.DayCount{Date: d, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *MemoryStore) TopCountries(_ context.Context, n int) ([]model.CountryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	byCountry := make(map[string]int64)
	for _, v := range s.visitors {
		if v.CountryCode == "" {
			continue
		}
		byCountry[v.CountryCode]++
	}
	out := make([]model.CountryCount, 0, len(byCountry))
	for c, n := range byCountry {
		out = append(out, model.CountryCount{CountryCode: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CountryCode < out[j].CountryCode
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) IncrementGames(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.games++
	return s.games, nil
}

func (s *MemoryStore) GameCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.games, nil
}

func (s *MemoryStore) InsertEntry(_ context.Context, e model.LeaderboardEntry) (model.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.LeaderboardEntry{}, ErrClosed
	}
	key := entryKey{name: e.Name, total: e.Total}
	if _, ok := s.keys[key]; ok {
		return model.LeaderboardEntry{}, ErrConflict
	}
	e.ID = uuid.NewString()
	if e.CompletedAt.IsZero() {
		e.CompletedAt = s.now()
	}
	s.keys[key] = struct{}{}
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *MemoryStore) TopEntries(_ context.Context, total, k int) ([]model.RankedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return ranking.Rank(s.entries, total, k), nil
}

func (s *MemoryStore) Totals(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return ranking.Totals(s.entries), nil
}

func (s *MemoryStore) DeleteEntries(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if len(ids) == 0 {
		return 0, nil
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	return s.deleteWhere(func(e model.LeaderboardEntry) bool {
		_, ok := drop[e.ID]
		return ok
	}), nil
}

func (s *MemoryStore) DeleteUnrankable(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.deleteWhere(func(e model.LeaderboardEntry) bool { return e.Total <= 0 }), nil
}

// deleteWhere removes matching entries preserving order. Caller holds mu.
func (s *MemoryStore) deleteWhere(match func(model.LeaderboardEntry) bool) int64 {
	var removed int64
	kept := s.entries[:0]
	for _, e := range s.entries {
		if match(e) {
			delete(s.keys, entryKey{name: e.Name, total: e.Total})
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(s.entries[len(kept):])
	s.entries = kept
	return removed
}

// EntryCount returns the number of stored leaderboard entries.
func (s *MemoryStore) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
