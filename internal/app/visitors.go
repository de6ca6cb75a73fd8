package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/facequiz/internal/adapters/cache"
	"github.com/okian/facequiz/internal/adapters/repository"
	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/pkg/logger"
	"github.com/okian/facequiz/pkg/metrics"
)

const defaultTopCountries = 10

// EnqueueVisit hands a visit to the worker pool without waiting for it.
// A full or stopped queue drops the visit and returns the reason.
func (s *Service) EnqueueVisit(ctx context.Context, address, requestID string) error {
	if address == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		metrics.RecordVisitDropped()
		return ErrNotStarted
	}

	err := s.visits.Enqueue(ctx, model.VisitEvent{Address: address, At: s.now(), RequestID: requestID})
	if err != nil {
		metrics.RecordVisitDropped()
		return fmt.Errorf("enqueue visit: %w", err)
	}
	return nil
}

// RecordVisit stores the first sighting of an address. Repeat sightings are
// no-ops. The country lookup is best effort: failures store no country.
func (s *Service) RecordVisit(ctx context.Context, e model.VisitEvent) error {
	if e.Address == "" {
		return nil
	}
	if s.deduper != nil && s.deduper.SeenAndRecord(ctx, e.Address) {
		metrics.RecordVisitDuplicate()
		return nil
	}

	exists, err := s.store.VisitorExists(ctx, e.Address)
	if err != nil {
		s.forget(ctx, e.Address)
		return fmt.Errorf("check visitor: %w", err)
	}
	if exists {
		metrics.RecordVisitDuplicate()
		return nil
	}

	country, err := s.locator.Lookup(ctx, e.Address)
	if err != nil {
		s.logger.Debug(ctx, "country lookup failed",
			logger.String("address", e.Address),
			logger.Error(err),
		)
		country = ""
	}

	at := e.At
	if at.IsZero() {
		at = s.now()
	}
	err = s.store.InsertVisitor(ctx, model.Visitor{Address: e.Address, FirstSeen: at.UTC(), CountryCode: country})
	if errors.Is(err, repository.ErrConflict) {
		metrics.RecordVisitDuplicate()
		return nil
	}
	if err != nil {
		s.forget(ctx, e.Address)
		return fmt.Errorf("insert visitor: %w", err)
	}

	metrics.RecordVisitRecorded()
	if err := s.cache.Delete(ctx, cache.KeyVisitorCount); err != nil {
		metrics.RecordErrorByComponent("cache", "delete")
	}
	return nil
}

// forget lets a failed address be retried on its next visit.
func (s *Service) forget(ctx context.Context, address string) {
	if s.deduper != nil {
		s.deduper.Unrecord(ctx, address)
	}
}

// VisitorCount returns the number of distinct addresses seen.
func (s *Service) VisitorCount(ctx context.Context) (int64, error) {
	return cache.Fetch(ctx, s.cache, cache.KeyVisitorCount, s.cacheTTL, s.store.VisitorCount)
}

// VisitorHistory returns first-seen visitors per UTC day, ascending.
func (s *Service) VisitorHistory(ctx context.Context) ([]model.DayCount, error) {
	return s.store.VisitorsByDay(ctx)
}

// TopCountries returns the n most common visitor countries. n <= 0 uses 10.
func (s *Service) TopCountries(ctx context.Context, n int) ([]model.CountryCount, error) {
	if n <= 0 {
		n = defaultTopCountries
	}
	return s.store.TopCountries(ctx, s.clampSample(n))
}

// IncrementGames bumps the played-games counter and returns the new value.
func (s *Service) IncrementGames(ctx context.Context) (int64, error) {
	n, err := s.store.IncrementGames(ctx)
	if err != nil {
		return 0, err
	}
	metrics.RecordGameIncremented()
	if err := s.cache.Raise(ctx, cache.KeyGameCount, n, s.cacheTTL); err != nil {
		metrics.RecordErrorByComponent("cache", "set")
	}
	return n, nil
}

// GameCount returns the played-games counter.
func (s *Service) GameCount(ctx context.Context) (int64, error) {
	return cache.Fetch(ctx, s.cache, cache.KeyGameCount, s.cacheTTL, s.store.GameCount)
}
