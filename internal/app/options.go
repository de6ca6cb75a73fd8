package service

import (
	"time"

	"github.com/okian/facequiz/internal/adapters/cache"
	"github.com/okian/facequiz/internal/adapters/geo"
	"github.com/okian/facequiz/internal/domain/quiz"
	"github.com/okian/facequiz/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCache sets the counter cache. The default never caches.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithCacheTTL sets how long cached counters live.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithLocator sets the country lookup. The default performs none.
func WithLocator(l geo.Locator) Option {
	return func(s *Service) {
		if l != nil {
			s.locator = l
		}
	}
}

// WithWorkerCount sets the number of visit workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the visit queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many addresses are remembered in process.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLeaderboardSize sets K, the entries kept per quiz length.
func WithLeaderboardSize(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.leaderboardSize = k
		}
	}
}

// WithMaxSample caps sample sizes and quiz rounds per request.
func WithMaxSample(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSample = n
		}
	}
}

// WithPruneInterval sets the scheduled prune period. 0 disables the schedule;
// prunes after submissions still run.
func WithPruneInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.pruneInterval = d
		}
	}
}

// WithAllowedOccupations restricts occupation filters. Empty allows any.
func WithAllowedOccupations(occupations []string) Option {
	return func(s *Service) {
		s.allowedOccupations = append([]string(nil), occupations...)
	}
}

// WithQuizOptions passes options to the quiz generator.
func WithQuizOptions(opts ...quiz.Option) Option {
	return func(s *Service) {
		s.quizOpts = append(s.quizOpts, opts...)
	}
}

// WithClock sets the time source for visit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
