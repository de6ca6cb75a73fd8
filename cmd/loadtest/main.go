package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/facequiz/internal/loadtest"
)

// Default configuration constants.
const (
	defaultSubmissions   = 1000
	defaultGames         = 100
	defaultDuplicateRate = 0.05
	defaultWorkers       = 2 // multiplier for runtime.NumCPU()
	defaultTestTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8080", "Base URL of the service")
		submissions = flag.Int("submissions", defaultSubmissions, "Number of leaderboard submissions")
		totals      = flag.String("totals", "10,20,30", "Comma separated quiz lengths")
		duplicates  = flag.Float64("duplicates", defaultDuplicateRate, "Share of submissions that replay an earlier one")
		games       = flag.Int("games", defaultGames, "Number of game counter increments")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", loadtest.DefaultTimeout, "HTTP request timeout")
		strict      = flag.Bool("strict", false, "Compare results with local expectations")
		seed        = flag.Uint64("seed", 0, "Generator seed")
		outputFile  = flag.String("output", "", "Write generated submissions to this file")
		logFile     = flag.String("log", "", "Also write log output to this file")
		verbose     = flag.Bool("verbose", false, "Log progress while submitting")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	if err := loadtest.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	parsedTotals, err := loadtest.ParseTotals(*totals)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:       *baseURL,
		Submissions:   *submissions,
		Totals:        parsedTotals,
		DuplicateRate: *duplicates,
		Games:         *games,
		Workers:       *workers,
		Timeout:       *timeout,
		OutputFile:    *outputFile,
		Strict:        *strict,
		Seed:          *seed,
		Verbose:       *verbose,
	}

	if _, err := loadtest.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Load test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
