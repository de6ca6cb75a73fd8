package loadtest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/facequiz/pkg/logger"
)

// SetupLogging sends log output to stdout and, when logFile is set, to that
// file as well.
func SetupLogging(logFile string) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.InitWith(w, logger.FormatText); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return nil
}

// ParseTotals reads a comma separated list of quiz lengths.
func ParseTotals(s string) ([]int, error) {
	var totals []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid quiz length %q", part)
		}
		totals = append(totals, n)
	}
	if len(totals) == 0 {
		return nil, fmt.Errorf("no quiz lengths in %q", s)
	}
	return totals, nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Face Quiz Load Test Tool
========================

Submits generated scores to a running server concurrently, bumps the game
counter, then reads the leaderboard back and checks its ordering.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -submissions int
        Number of leaderboard submissions (default 1000)
  -totals string
        Comma separated quiz lengths (default "10,20,30")
  -duplicates float
        Share of submissions that replay an earlier one (default 0.05)
  -games int
        Number of game counter increments (default 100)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -strict
        Also compare results with local expectations; needs an idle server
        with an empty leaderboard
  -seed uint
        Generator seed (default: from the clock)
  -output string
        Write generated submissions to this JSON file
  -log string
        Also write log output to this file
  -verbose
        Log progress while submitting
  -help
        Show this help message

Examples:
  # Smoke test a fresh local server
  go run ./cmd/loadtest -strict

  # Heavier run against a shared environment
  go run ./cmd/loadtest -url http://quiz.internal:8080 -submissions 50000 -workers 32
`)
}
