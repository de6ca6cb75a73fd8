package service

import (
	"context"

	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/internal/domain/people"
)

// Random samples up to n records, capped by the maximum sample size.
func (s *Service) Random(ctx context.Context, n int) ([]model.Person, error) {
	if n <= 0 {
		return []model.Person{}, nil
	}
	return s.store.RandomPeople(ctx, s.clampSample(n))
}

// People returns records matching f. Occupations outside the allow-list are
// dropped; if none survive the occupation filter is not applied.
// limit > 0 samples up to limit matches, limit <= 0 returns every match.
func (s *Service) People(ctx context.Context, f people.Filter, limit int) ([]model.Person, error) {
	f.Occupations = people.RestrictOccupations(f.Occupations, s.allowedOccupations)
	return s.store.FilterPeople(ctx, f, s.clampSample(limit))
}

// Grouped generates up to limit quiz rounds.
func (s *Service) Grouped(ctx context.Context, limit int) ([]model.QuizRound, error) {
	return s.quiz.Rounds(ctx, s.clampSample(limit))
}
