// Package ranking holds the leaderboard ordering rules shared by every store.
//
// Entries are partitioned by Total (quiz length) and ordered inside a
// partition by Ratio = Scored/Total, highest first. Ties keep insertion
// order. Entries with Total <= 0 have no ratio and never rank.
package ranking

import (
	"math"
	"sort"

	"github.com/okian/facequiz/internal/domain/model"
)

// DefaultSize is the number of entries retained per partition.
const DefaultSize = 10

// Ratio returns scored/total. ok is false when total <= 0.
func Ratio(scored, total int) (ratio float64, ok bool) {
	if total <= 0 {
		return 0, false
	}
	return float64(scored) / float64(total), true
}

// Rank returns the top k entries of the given partition, best first.
// entries must be in insertion order; entries of other partitions are ignored.
// k <= 0 returns the whole partition.
func Rank(entries []model.LeaderboardEntry, total, k int) []model.RankedEntry {
	if total <= 0 {
		return []model.RankedEntry{}
	}
	ranked := make([]model.RankedEntry, 0, len(entries))
	for _, e := range entries {
		if e.Total != total {
			continue
		}
		r, _ := Ratio(e.Scored, e.Total)
		ranked = append(ranked, model.RankedEntry{LeaderboardEntry: e, Ratio: r})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Ratio > ranked[j].Ratio
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Totals returns the distinct rankable totals in ascending order.
func Totals(entries []model.LeaderboardEntry) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0)
	for _, e := range entries {
		if e.Total <= 0 {
			continue
		}
		if _, ok := seen[e.Total]; ok {
			continue
		}
		seen[e.Total] = struct{}{}
		out = append(out, e.Total)
	}
	sort.Ints(out)
	return out
}

// Board ranks every partition and keeps the top k of each.
func Board(entries []model.LeaderboardEntry, k int) map[int][]model.RankedEntry {
	board := make(map[int][]model.RankedEntry)
	for _, total := range Totals(entries) {
		board[total] = Rank(entries, total, k)
	}
	return board
}

// Retained returns the ids present in board. Everything else is prunable.
func Retained(board map[int][]model.RankedEntry) map[string]struct{} {
	keep := make(map[string]struct{})
	for _, ranked := range board {
		for _, r := range ranked {
			keep[r.ID] = struct{}{}
		}
	}
	return keep
}

// IsCompetitive reports whether a score would enter a partition whose current
// top entries are top. With fewer than k entries any score qualifies;
// otherwise the candidate ratio must be >= the k-th highest ratio.
// A NaN candidate (unparsable input) fails the comparison.
func IsCompetitive(top []model.RankedEntry, k int, scored, total float64) bool {
	if k <= 0 || len(top) < k {
		return true
	}
	threshold := top[k-1].Ratio
	candidate := scored / total
	if math.IsNaN(candidate) {
		return false
	}
	return candidate >= threshold
}
