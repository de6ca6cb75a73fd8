// Package seed imports person records into the store out of band.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/facequiz/internal/adapters/repository"
	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/pkg/logger"
)

// DefaultBatchSize is used when Config.BatchSize is not positive.
const DefaultBatchSize = 500

// Inserter stores person records and reports how many were written.
type Inserter interface {
	InsertPeople(ctx context.Context, ps []model.Person) (int, error)
}

// Run imports cfg.File into the configured Mongo store, or into a
// throwaway in-memory store on a dry run.
func Run(ctx context.Context, cfg *Config) (Stats, error) {
	if cfg.File == "" {
		return Stats{}, ErrNoFile
	}
	f, err := os.Open(cfg.File)
	if err != nil {
		return Stats{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	log := logger.Get().Named("seed")
	log.Info(ctx, "starting import",
		logger.String("file", cfg.File),
		logger.String("collection", cfg.PeopleCollection),
		logger.Bool("dryRun", cfg.DryRun))

	var store repository.Store
	if cfg.DryRun {
		store = repository.NewMemoryStore()
	} else {
		store, err = repository.NewMongoStore(ctx, cfg.MongoURI,
			repository.WithDatabase(cfg.MongoDatabase),
			repository.WithPeopleCollection(cfg.PeopleCollection),
		)
		if err != nil {
			return Stats{}, fmt.Errorf("open store: %w", err)
		}
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "failed to close store", logger.Error(err))
		}
	}()

	stats, err := Import(ctx, store, f, cfg.BatchSize)
	for _, r := range stats.Rejected {
		log.Warn(ctx, "record rejected", logger.Int("index", r.Index), logger.String("reason", r.Reason))
	}
	log.Info(ctx, "import finished",
		logger.Int("read", stats.Read),
		logger.Int("inserted", stats.Inserted),
		logger.Int("skipped", stats.Skipped))
	return stats, err
}

// Import reads a JSON array of person records from r and inserts the valid
// ones in batches. Records without a name are rejected and counted as
// skipped. A malformed document stops the import; batches already written
// stay written.
func Import(ctx context.Context, ins Inserter, r io.Reader, batchSize int) (Stats, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var (
		stats Stats
		batch = make([]model.Person, 0, batchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := ins.InsertPeople(ctx, batch)
		stats.Inserted += n
		stats.Skipped += len(batch) - n
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		return nil
	}

	err := decode(r, func(i int, rec record, reason string) error {
		stats.Read++
		if reason != "" {
			stats.Skipped++
			stats.Rejected = append(stats.Rejected, Rejection{Index: i, Reason: reason})
			return nil
		}
		batch = append(batch, rec.person())
		if len(batch) == batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, flush()
}

// decode streams the array elements of r to fn. reason is set when an
// element cannot be imported.
func decode(r io.Reader, fn func(i int, rec record, reason string) error) error {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ErrNotArray
		}
		return fmt.Errorf("%w: %w", ErrNotArray, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return ErrNotArray
	}

	for i := 0; dec.More(); i++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		var (
			rec    record
			reason string
		)
		if err := json.Unmarshal(raw, &rec); err != nil {
			reason = "not a person object: " + err.Error()
		} else if strings.TrimSpace(rec.Name) == "" {
			reason = "name is required"
		}
		if err := fn(i, rec, reason); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("closing array: %w", err)
	}
	return nil
}

func (r record) person() model.Person {
	return model.Person{
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Occupation:  r.Occupation,
		ImageURL:    r.ImageURL,
		Ethnicity:   r.Ethnicity,
		NativeName:  r.NativeName,
		BirthDate:   r.BirthDate,
		BirthPlace:  r.BirthPlace,
		DeathDate:   r.DeathDate,
		NotableWork: r.NotableWork,
		Gender:      r.Gender,
	}
}
