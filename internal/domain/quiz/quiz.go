// Package quiz generates "guess the ethnicity" rounds from sampled records.
package quiz

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/facequiz/internal/domain/model"
)

// OptionsPerRound is one correct answer plus three distractors.
const OptionsPerRound = 4

// Ethnicities is the fixed set a round's answer is drawn from.
var Ethnicities = []string{
	"Chinese",
	"Japanese",
	"Korean",
	"Vietnamese",
	"Filipino",
	"Thai",
	"Indian",
	"Indonesian",
}

// Sampler draws random records by ethnicity. With exclude set it draws
// records whose ethnicity differs from the given one.
type Sampler interface {
	SampleByEthnicity(ctx context.Context, ethnicity string, exclude bool, n int) ([]model.Person, error)
}

// Generator builds quiz rounds. It is safe for concurrent use.
type Generator struct {
	sampler     Sampler
	ethnicities []string

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes round generation deterministic.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithEthnicities overrides the answer set.
func WithEthnicities(set []string) Option {
	return func(g *Generator) {
		if len(set) > 0 {
			g.ethnicities = append([]string(nil), set...)
		}
	}
}

// NewGenerator creates a Generator backed by sampler.
func NewGenerator(sampler Sampler, opts ...Option) *Generator {
	seed := uint64(time.Now().UnixNano())
	g := &Generator{
		sampler:     sampler,
		ethnicities: Ethnicities,
		rnd:         rand.New(rand.NewPCG(seed, seed>>1)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Rounds runs limit independent rounds. Rounds whose samples come back short
// are skipped, so fewer than limit rounds may be returned.
func (g *Generator) Rounds(ctx context.Context, limit int) ([]model.QuizRound, error) {
	rounds := make([]model.QuizRound, 0, max(limit, 0))
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		round, ok, err := g.round(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			rounds = append(rounds, round)
		}
	}
	return rounds, nil
}

func (g *Generator) round(ctx context.Context) (model.QuizRound, bool, error) {
	ethnicity := g.pick()

	correct, err := g.sampler.SampleByEthnicity(ctx, ethnicity, false, 1)
	if err != nil {
		return model.QuizRound{}, false, fmt.Errorf("sample %s: %w", ethnicity, err)
	}
	distractors, err := g.sampler.SampleByEthnicity(ctx, ethnicity, true, OptionsPerRound-1)
	if err != nil {
		return model.QuizRound{}, false, fmt.Errorf("sample distractors for %s: %w", ethnicity, err)
	}
	if len(correct) < 1 || len(distractors) < OptionsPerRound-1 {
		return model.QuizRound{}, false, nil
	}

	options := make([]model.Person, 0, OptionsPerRound)
	options = append(options, correct[0])
	options = append(options, distractors[:OptionsPerRound-1]...)
	g.shuffle(options)

	return model.QuizRound{Options: options, CorrectEthnicity: ethnicity}, true, nil
}

func (g *Generator) pick() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ethnicities[g.rnd.IntN(len(g.ethnicities))]
}

func (g *Generator) shuffle(p []model.Person) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rnd.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
}
