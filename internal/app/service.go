// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/facequiz/internal/adapters/cache"
	"github.com/okian/facequiz/internal/adapters/geo"
	visitqueue "github.com/okian/facequiz/internal/adapters/mq/queue"
	workerpool "github.com/okian/facequiz/internal/adapters/mq/worker"
	"github.com/okian/facequiz/internal/adapters/repository"
	"github.com/okian/facequiz/internal/domain/dedupe"
	"github.com/okian/facequiz/internal/domain/quiz"
	"github.com/okian/facequiz/internal/domain/ranking"
	"github.com/okian/facequiz/pkg/logger"
	"github.com/okian/facequiz/pkg/metrics"
)

const (
	defaultWorkerCount = 4
	defaultQueueSize   = 10_000
	defaultDedupeSize  = 50_000
	defaultMaxSample   = 100
	defaultCacheTTL    = 5 * time.Second
	defaultPrune       = time.Minute

	pruneTimeout = 30 * time.Second
)

// Service implements the API dependencies for the quiz backend.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	cache   cache.Cache
	locator geo.Locator
	quiz    *quiz.Generator
	deduper dedupe.Deduper
	visits  *visitqueue.InMemoryQueue
	pool    *workerpool.Pool

	// Configuration
	workerCount        int
	queueSize          int
	dedupeSize         int
	leaderboardSize    int
	maxSample          int
	cacheTTL           time.Duration
	pruneInterval      time.Duration
	allowedOccupations []string
	quizOpts           []quiz.Option
	now                func() time.Time

	// State
	started   bool
	cancelRun context.CancelFunc
	pruneCh   chan struct{}
	stopCh    chan struct{}
	loopDone  chan struct{}
	pruneMu   sync.Mutex

	logger logger.Logger
}

// New constructs a Service over store. The service owns store and the
// configured cache and closes them on Stop.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		cache:           cache.Noop{},
		locator:         geo.Disabled{},
		workerCount:     defaultWorkerCount,
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		leaderboardSize: ranking.DefaultSize,
		maxSample:       defaultMaxSample,
		cacheTTL:        defaultCacheTTL,
		pruneInterval:   defaultPrune,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.quiz = quiz.NewGenerator(store, s.quizOpts...)
	return s
}

// Start creates the visit pipeline and the leaderboard maintenance loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting facequiz service...")

	// background work outlives the caller's ctx and ends in Stop
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.visits = visitqueue.NewInMemoryQueue(visitqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.visits, s)
	s.pool.Start(runCtx)

	s.pruneCh = make(chan struct{}, 1)
	s.stopCh = make(chan struct{})
	s.loopDone = make(chan struct{})
	go s.maintain(runCtx)

	s.started = true
	s.logger.Info(ctx, "facequiz service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("leaderboardSize", s.leaderboardSize),
		logger.Duration("pruneInterval", s.pruneInterval),
	)
	return nil
}

// Stop drains queued visits, stops maintenance and closes the store and cache.
// ctx bounds the drain.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping facequiz service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	close(s.stopCh)
	<-s.loopDone
	s.cancelRun()

	if err := s.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if err := s.store.Close(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "facequiz service stopped")
	return errors.Join(errs...)
}

// Health pings the store and the cache.
func (s *Service) Health(ctx context.Context) error {
	var errs []error
	if err := s.store.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.cache.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}
	return errors.Join(errs...)
}

// LeaderboardSize returns K.
func (s *Service) LeaderboardSize() int { return s.leaderboardSize }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"leaderboardSize": s.leaderboardSize,
		"maxSample":       s.maxSample,
		"pruneInterval":   s.pruneInterval.String(),
	}
	if s.started {
		stats["queueLength"] = s.visits.Len()
		stats["dedupeEntries"] = s.deduper.Size()
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}

// clampSample bounds n by the configured maximum.
func (s *Service) clampSample(n int) int {
	if n > s.maxSample {
		return s.maxSample
	}
	return n
}
