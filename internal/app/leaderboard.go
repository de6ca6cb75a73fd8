package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/facequiz/internal/adapters/repository"
	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/internal/domain/ranking"
	"github.com/okian/facequiz/pkg/logger"
	"github.com/okian/facequiz/pkg/metrics"
)

// SubmitResult reports the outcome of a submission. Conflict is set, with a
// zero Entry, when the name already holds an entry for that total.
type SubmitResult struct {
	Entry    model.LeaderboardEntry
	Conflict bool
}

// Submit stores a score. Scores are not range checked.
func (s *Service) Submit(ctx context.Context, name string, scored, total int) (SubmitResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SubmitResult{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	entry, err := s.store.InsertEntry(ctx, model.LeaderboardEntry{
		Name:        name,
		Scored:      scored,
		Total:       total,
		CompletedAt: s.now().UTC(),
	})
	if errors.Is(err, repository.ErrConflict) {
		metrics.RecordLeaderboardSubmission("conflict")
		return SubmitResult{Conflict: true}, nil
	}
	if err != nil {
		metrics.RecordLeaderboardSubmission("error")
		return SubmitResult{}, fmt.Errorf("submit: %w", err)
	}

	metrics.RecordLeaderboardSubmission("accepted")
	s.requestPrune()
	return SubmitResult{Entry: entry}, nil
}

// Rank returns the top K entries for one quiz length.
func (s *Service) Rank(ctx context.Context, total int) ([]model.RankedEntry, error) {
	return s.store.TopEntries(ctx, total, s.leaderboardSize)
}

// ListTop returns the top K entries of every quiz length. It never writes.
func (s *Service) ListTop(ctx context.Context) (map[int][]model.RankedEntry, error) {
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list totals: %w", err)
	}
	board := make(map[int][]model.RankedEntry, len(totals))
	for _, total := range totals {
		top, err := s.store.TopEntries(ctx, total, s.leaderboardSize)
		if err != nil {
			return nil, fmt.Errorf("rank total %d: %w", total, err)
		}
		board[total] = top
	}
	return board, nil
}

// IsLeader reports whether scored/total would make the top K for total.
// Non-integral or non-positive totals have no partition and always qualify;
// NaN scores fail against a full partition.
func (s *Service) IsLeader(ctx context.Context, scored, total float64) (bool, error) {
	var top []model.RankedEntry
	if total > 0 && total == math.Trunc(total) && total <= math.MaxInt32 {
		var err error
		top, err = s.store.TopEntries(ctx, int(total), s.leaderboardSize)
		if err != nil {
			return false, fmt.Errorf("is leader: %w", err)
		}
	}
	return ranking.IsCompetitive(top, s.leaderboardSize, scored, total), nil
}

// Prune deletes entries ranked below K in every partition and entries that
// can never rank. It returns the number of deleted entries.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.RecordPruneLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	removed, err := s.store.DeleteUnrankable(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune unrankable: %w", err)
	}

	totals, err := s.store.Totals(ctx)
	if err != nil {
		return removed, fmt.Errorf("prune totals: %w", err)
	}
	for _, total := range totals {
		all, err := s.store.TopEntries(ctx, total, 0)
		if err != nil {
			return removed, fmt.Errorf("prune rank %d: %w", total, err)
		}
		if len(all) <= s.leaderboardSize {
			continue
		}
		entries := make([]model.LeaderboardEntry, len(all))
		for i, e := range all {
			entries[i] = e.LeaderboardEntry
		}
		keep := ranking.Retained(ranking.Board(entries, s.leaderboardSize))
		ids := make([]string, 0, len(all)-len(keep))
		for _, e := range entries {
			if _, ok := keep[e.ID]; !ok {
				ids = append(ids, e.ID)
			}
		}
		n, err := s.store.DeleteEntries(ctx, ids)
		removed += n
		if err != nil {
			return removed, fmt.Errorf("prune delete %d: %w", total, err)
		}
	}
	metrics.RecordLeaderboardPruned(int(removed))
	return removed, nil
}

// requestPrune wakes the maintenance loop without blocking.
func (s *Service) requestPrune() {
	s.mu.RLock()
	ch := s.pruneCh
	s.mu.RUnlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// maintain prunes on request and on the configured interval until Stop.
func (s *Service) maintain(ctx context.Context) {
	defer close(s.loopDone)

	var tick <-chan time.Time
	if s.pruneInterval > 0 {
		ticker := time.NewTicker(s.pruneInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	log := s.logger.Named("maintenance")
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-s.pruneCh:
		case <-tick:
		}

		pctx, cancel := context.WithTimeout(ctx, pruneTimeout)
		removed, err := s.Prune(pctx)
		cancel()
		if err != nil {
			metrics.RecordErrorByComponent("maintenance", "prune")
			log.Error(ctx, "prune failed", logger.Error(err))
			continue
		}
		if removed > 0 {
			log.Debug(ctx, "pruned leaderboard", logger.Int64("removed", removed))
		}
	}
}
