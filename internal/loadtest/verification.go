package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/internal/domain/ranking"
	"github.com/okian/facequiz/pkg/logger"
)

// Board is the decoded GET /leaderboard answer keyed by quiz length.
type Board map[int][]model.RankedEntry

type isLeaderResponse struct {
	IsLeader bool `json:"isLeader"`
}

// getLeaderboard fetches the board and the configured partition size.
func getLeaderboard(ctx context.Context, client *HTTPClient, stats *Stats) (Board, int, error) {
	var serverStats map[string]any
	if err := expectOK(client.Get(ctx, "/stats", &serverStats)); err != nil {
		return nil, 0, fmt.Errorf("read stats: %w", err)
	}
	k := ranking.DefaultSize
	if v, ok := serverStats["leaderboardSize"].(float64); ok && v > 0 {
		k = int(v)
	}

	var raw map[string][]model.RankedEntry
	if err := expectOK(client.Get(ctx, "/leaderboard", &raw)); err != nil {
		return nil, 0, fmt.Errorf("read leaderboard: %w", err)
	}
	board := make(Board, len(raw))
	for key, entries := range raw {
		total, err := strconv.Atoi(key)
		if err != nil {
			return nil, 0, fmt.Errorf("leaderboard key %q is not a quiz length", key)
		}
		board[total] = entries
	}

	stats.Partitions = len(board)
	stats.LeaderboardSize = k
	logger.Get().Info(ctx, "leaderboard retrieved",
		logger.Int("partitions", len(board)),
		logger.Int("k", k))
	return board, k, nil
}

// verifyBoard checks the ordering rules every board must satisfy, whatever
// else the server has stored.
func verifyBoard(board Board, k int) []string {
	var problems []string
	for _, total := range sortedTotals(board) {
		entries := board[total]
		if len(entries) > k {
			problems = append(problems, fmt.Sprintf("quiz length %d: %d entries, want at most %d", total, len(entries), k))
		}
		for i, e := range entries {
			if e.Total != total {
				problems = append(problems, fmt.Sprintf("quiz length %d: entry %q has total %d", total, e.Name, e.Total))
			}
			if e.Rank != i+1 {
				problems = append(problems, fmt.Sprintf("quiz length %d: entry %d has rank %d", total, i, e.Rank))
			}
			if want, _ := ranking.Ratio(e.Scored, e.Total); e.Ratio != want {
				problems = append(problems, fmt.Sprintf("quiz length %d: entry %q ratio %v, want %v", total, e.Name, e.Ratio, want))
			}
			if i > 0 && e.Ratio > entries[i-1].Ratio {
				problems = append(problems, fmt.Sprintf("quiz length %d: entry %d ranks above a lower ratio", total, i))
			}
		}
	}
	return problems
}

// verifyExpected compares the board with what accepted submissions alone
// should produce. It only holds when nothing else writes to the server.
func verifyExpected(board Board, k int, accepted []Submission) []string {
	expected := make(map[int][]float64)
	for _, s := range accepted {
		r, _ := ranking.Ratio(s.Scored, s.Total)
		expected[s.Total] = append(expected[s.Total], r)
	}

	var problems []string
	for total, ratios := range expected {
		sort.Sort(sort.Reverse(sort.Float64Slice(ratios)))
		if len(ratios) > k {
			ratios = ratios[:k]
		}
		got := board[total]
		if len(got) != len(ratios) {
			problems = append(problems, fmt.Sprintf("quiz length %d: %d entries, want %d", total, len(got), len(ratios)))
			continue
		}
		for i := range ratios {
			if got[i].Ratio != ratios[i] {
				problems = append(problems, fmt.Sprintf("quiz length %d: rank %d ratio %v, want %v", total, i+1, got[i].Ratio, ratios[i]))
			}
		}
	}
	for total := range board {
		if _, ok := expected[total]; !ok {
			problems = append(problems, fmt.Sprintf("quiz length %d: unexpected partition", total))
		}
	}
	return problems
}

// verifyIsLeader queries /is-leader at the edges of every partition: the
// K-th entry's own score qualifies, and a negative score only qualifies
// while the partition has room.
func verifyIsLeader(ctx context.Context, client *HTTPClient, board Board, k int, stats *Stats) ([]string, error) {
	var problems []string
	ask := func(scored, total int) (bool, error) {
		q := url.Values{}
		q.Set("scored", strconv.Itoa(scored))
		q.Set("total", strconv.Itoa(total))
		var resp isLeaderResponse
		status, err := client.Get(ctx, "/is-leader?"+q.Encode(), &resp)
		if err != nil {
			return false, err
		}
		if status != http.StatusOK {
			return false, fmt.Errorf("is-leader: unexpected status %d", status)
		}
		stats.LeaderboardChecks++
		return resp.IsLeader, nil
	}

	for _, total := range sortedTotals(board) {
		entries := board[total]
		full := len(entries) >= k

		got, err := ask(-1, total)
		if err != nil {
			return problems, err
		}
		if got == full {
			problems = append(problems, fmt.Sprintf("quiz length %d: is-leader(-1) = %v with %d of %d entries", total, got, len(entries), k))
		}

		if full {
			last := entries[k-1]
			got, err := ask(last.Scored, total)
			if err != nil {
				return problems, err
			}
			if !got {
				problems = append(problems, fmt.Sprintf("quiz length %d: the K-th score %d/%d is not a leader", total, last.Scored, total))
			}
		}
	}
	return problems, nil
}

// verifyCounts checks submission and game counters against what was sent.
// A replay of an entry that was pruned meanwhile is accepted again, so
// conflicts may fall short of the generated duplicates but never exceed them.
func verifyCounts(cfg *Config, stats *Stats) []string {
	var problems []string
	if got := stats.Created + stats.Conflicts; got != stats.Submitted {
		problems = append(problems, fmt.Sprintf("%d of %d submissions answered with created or conflict", got, stats.Submitted))
	}
	if stats.Conflicts > stats.Duplicates {
		problems = append(problems, fmt.Sprintf("got %d conflicts for %d duplicates", stats.Conflicts, stats.Duplicates))
	}
	if cfg.Games > 0 {
		if got := stats.GameCountAfter - stats.GameCountBefore; got != cfg.Games {
			problems = append(problems, fmt.Sprintf("game count grew by %d, want %d", got, cfg.Games))
		}
	}
	return problems
}

func sortedTotals(board Board) []int {
	totals := make([]int, 0, len(board))
	for t := range board {
		totals = append(totals, t)
	}
	sort.Ints(totals)
	return totals
}
