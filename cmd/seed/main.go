package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/okian/facequiz/internal/config"
	"github.com/okian/facequiz/internal/seed"
	"github.com/okian/facequiz/pkg/logger"
)

const defaultTimeout = 10 * time.Minute

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	// Store defaults come from the service configuration.
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	var (
		file       = flag.String("file", "", "JSON array of person records")
		mongoURI   = flag.String("mongo-uri", cfg.MongoURI, "MongoDB connection string")
		database   = flag.String("db", cfg.MongoDatabase, "Database name")
		collection = flag.String("collection", cfg.PeopleCollection, "People collection")
		batch      = flag.Int("batch", seed.DefaultBatchSize, "Records per insert")
		dryRun     = flag.Bool("dry-run", false, "Validate without writing")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seed.ShowHelp()
		return
	}

	if err := logger.InitWith(os.Stdout, logger.Format(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	stats, err := seed.Run(ctx, &seed.Config{
		File:             *file,
		MongoURI:         *mongoURI,
		MongoDatabase:    *database,
		PeopleCollection: *collection,
		BatchSize:        *batch,
		DryRun:           *dryRun,
	})
	fmt.Fprintf(os.Stdout, "read=%d inserted=%d skipped=%d\n", stats.Read, stats.Inserted, stats.Skipped)
	if err != nil {
		os.Stderr.WriteString("import failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
