package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/facequiz/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// ErrVerification is returned when the server's answers disagree with what
// was submitted.
var ErrVerification = errors.New("verification failed")

// Run executes the complete load test and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting facequiz load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("games", cfg.Games),
		logger.Int("workers", workerCount(cfg)),
		logger.Duration("timeout", cfg.Timeout),
		logger.Bool("strict", cfg.Strict))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate submissions
	subs, err := generateSubmissions(ctx, cfg, stats)
	if err != nil {
		return stats, fmt.Errorf("generation failed: %w", err)
	}

	// Step 3: Submit concurrently
	accepted := submitAll(ctx, cfg, client, subs, stats)

	// Step 4: Bump the game counter
	if err := incrementGames(ctx, cfg, client, stats); err != nil {
		return stats, fmt.Errorf("game increments failed: %w", err)
	}

	// Step 5: Read the board back
	board, k, err := getLeaderboard(ctx, client, stats)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 6: Verify
	stats.Violations = append(stats.Violations, verifyBoard(board, k)...)
	if cfg.Strict {
		stats.Violations = append(stats.Violations, verifyExpected(board, k, accepted)...)
		stats.Violations = append(stats.Violations, verifyCounts(cfg, stats)...)
		problems, err := verifyIsLeader(ctx, client, board, k, stats)
		stats.Violations = append(stats.Violations, problems...)
		if err != nil {
			return stats, fmt.Errorf("is-leader check failed: %w", err)
		}
	}

	// Step 7: Save submissions to file
	if cfg.OutputFile != "" {
		if err := saveSubmissions(ctx, cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	for _, v := range stats.Violations {
		log.Error(ctx, "violation", logger.String("detail", v))
	}
	switch {
	case len(stats.Violations) > 0:
		return stats, fmt.Errorf("%w: %d problems, first: %s", ErrVerification, len(stats.Violations), stats.Violations[0])
	case stats.Failed > 0:
		return stats, fmt.Errorf("%d submissions failed", stats.Failed)
	}

	log.Info(ctx, "load test completed successfully")
	return stats, nil
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// checkServiceHealth verifies the service is up and its backends reachable.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")

	var h healthResponse
	status, err := client.Get(ctx, "/healthz", &h)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK || h.Status != "ok" {
		return fmt.Errorf("service unhealthy: status %d %s", status, strings.TrimSpace(h.Status+" "+h.Error))
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveSubmissions writes the generated submissions as a JSON array.
func saveSubmissions(ctx context.Context, filename string, subs []Submission) error {
	if len(subs) == 0 {
		return fmt.Errorf("no submissions to save")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submissions: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "submissions saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Created+stats.Conflicts) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("conflicts", stats.Conflicts),
		logger.Int("failed", stats.Failed),
		logger.Int("gamesIncremented", stats.GamesIncremented),
		logger.Int("partitions", stats.Partitions),
		logger.Int("leaderboardSize", stats.LeaderboardSize),
		logger.Int("isLeaderChecks", stats.LeaderboardChecks),
		logger.Int("violations", len(stats.Violations)),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
