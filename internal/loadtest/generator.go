package loadtest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/facequiz/pkg/logger"
)

// generateSubmissions creates cfg.Submissions submissions. Roughly
// cfg.DuplicateRate of them replay an earlier submission exactly, so the
// server must answer one of each pair with a conflict.
func generateSubmissions(ctx context.Context, cfg *Config, stats *Stats) ([]Submission, error) {
	if len(cfg.Totals) == 0 {
		return nil, fmt.Errorf("no quiz lengths configured")
	}
	for _, t := range cfg.Totals {
		if t <= 0 {
			return nil, fmt.Errorf("invalid quiz length %d", t)
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	logger.Get().Info(ctx, "generating submissions",
		logger.Int("count", cfg.Submissions),
		logger.Any("totals", cfg.Totals),
		logger.Float64("duplicateRate", cfg.DuplicateRate))

	subs := make([]Submission, 0, cfg.Submissions)
	for i := 0; i < cfg.Submissions; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		if len(subs) > 0 && rng.Float64() < cfg.DuplicateRate {
			subs = append(subs, subs[rng.IntN(len(subs))])
			stats.Duplicates++
			continue
		}
		total := cfg.Totals[rng.IntN(len(cfg.Totals))]
		subs = append(subs, Submission{
			Name:   "player-" + uuid.NewString(),
			Scored: generateScore(rng, total),
			Total:  total,
		})
	}

	stats.Generated = len(subs)
	logger.Get().Info(ctx, "generated submissions",
		logger.Int("count", len(subs)),
		logger.Int("duplicates", stats.Duplicates))
	return subs, nil
}

// generateScore draws a score in [0, total], skewed towards the middle the
// way real quiz results are: most players get about half right, few get
// everything right.
func generateScore(rng *rand.Rand, total int) int {
	a := rng.IntN(total + 1)
	b := rng.IntN(total + 1)
	return (a + b + rng.IntN(2)) / 2
}
