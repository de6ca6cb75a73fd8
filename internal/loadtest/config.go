// Package loadtest drives a running facequiz server with concurrent
// leaderboard submissions and game increments, then checks that what the
// server reports is consistent with what was sent.
package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Submissions   int           // Number of leaderboard submissions to generate
	Totals        []int         // Quiz lengths to spread submissions over
	DuplicateRate float64       // Share of submissions that repeat an earlier (name, total)
	Games         int           // Number of /increment-games calls
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	OutputFile    string        // Where generated submissions are written; empty skips saving
	Strict        bool          // Compare against expectations computed locally; needs an otherwise idle server
	Seed          uint64        // Generator seed; 0 picks one from the clock
	Verbose       bool          // Log progress while submitting
}

// Submission is one generated leaderboard submission.
type Submission struct {
	Name   string `json:"name"`
	Scored int    `json:"scored"`
	Total  int    `json:"total"`
}

// Stats holds run statistics.
type Stats struct {
	Generated         int
	Duplicates        int
	Submitted         int
	Created           int
	Conflicts         int
	Failed            int
	GamesIncremented  int
	GameCountBefore   int
	GameCountAfter    int
	Partitions        int
	LeaderboardSize   int
	LeaderboardChecks int
	Violations        []string
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
