package repository

import (
	"math/rand/v2"
	"time"
)

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the time source used for timestamps and age filters.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSeed makes sampling deterministic.
func WithSeed(seed uint64) MemoryOption {
	return func(s *MemoryStore) {
		s.rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
}

// MongoOption applies a configuration option to the MongoStore.
type MongoOption func(*MongoStore)

// WithDatabase sets the database name.
func WithDatabase(name string) MongoOption {
	return func(s *MongoStore) {
		if name != "" {
			s.database = name
		}
	}
}

// WithPeopleCollection sets the collection holding person records.
func WithPeopleCollection(name string) MongoOption {
	return func(s *MongoStore) {
		if name != "" {
			s.peopleCollection = name
		}
	}
}

// WithMongoClock sets the time source used for age filters.
func WithMongoClock(now func() time.Time) MongoOption {
	return func(s *MongoStore) {
		if now != nil {
			s.now = now
		}
	}
}
