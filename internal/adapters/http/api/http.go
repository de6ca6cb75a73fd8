// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/facequiz/internal/app"
	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/internal/domain/people"
	"github.com/okian/facequiz/pkg/logger"
	"github.com/okian/facequiz/pkg/metrics"
)

// PeopleReader serves person records and quiz rounds.
type PeopleReader interface {
	Random(ctx context.Context, n int) ([]model.Person, error)
	People(ctx context.Context, f people.Filter, limit int) ([]model.Person, error)
	Grouped(ctx context.Context, limit int) ([]model.QuizRound, error)
}

// VisitTracker records visits and serves the visitor and game counters.
type VisitTracker interface {
	// EnqueueVisit must not block on recording.
	EnqueueVisit(ctx context.Context, address, requestID string) error
	VisitorCount(ctx context.Context) (int64, error)
	VisitorHistory(ctx context.Context) ([]model.DayCount, error)
	TopCountries(ctx context.Context, n int) ([]model.CountryCount, error)
	IncrementGames(ctx context.Context) (int64, error)
	GameCount(ctx context.Context) (int64, error)
}

// Leaderboard accepts scores and serves rankings.
type Leaderboard interface {
	Submit(ctx context.Context, name string, scored, total int) (service.SubmitResult, error)
	ListTop(ctx context.Context) (map[int][]model.RankedEntry, error)
	IsLeader(ctx context.Context, scored, total float64) (bool, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	PeopleReader
	VisitTracker
	Leaderboard
	HealthChecker
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	peopleHandler      *PeopleHandler
	visitorHandler     *VisitorHandler
	leaderboardHandler *LeaderboardHandler

	corsOrigins []string
	visitSkip   []string
	logger      logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:        deps,
		corsOrigins: []string{"*"},
		visitSkip:   []string{"/healthz", "/stats", "/metrics", "/api-docs", "/openapi.yaml"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.peopleHandler = NewPeopleHandler(deps, s.logger)
	s.visitorHandler = NewVisitorHandler(deps, s.logger)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /random", MetricsMiddleware(s.peopleHandler.HandleRandom, "random"))
	mux.HandleFunc("GET /random/{count}", MetricsMiddleware(s.peopleHandler.HandleRandomCount, "random_count"))
	mux.HandleFunc("GET /people", MetricsMiddleware(s.peopleHandler.HandlePeople, "people"))
	mux.HandleFunc("GET /people/grouped", MetricsMiddleware(s.peopleHandler.HandleGrouped, "people_grouped"))

	mux.HandleFunc("GET /visitor-count", MetricsMiddleware(s.visitorHandler.HandleVisitorCount, "visitor_count"))
	mux.HandleFunc("GET /visitor-count-history", MetricsMiddleware(s.visitorHandler.HandleHistory, "visitor_count_history"))
	mux.HandleFunc("GET /topPlayedCountryCodes", MetricsMiddleware(s.visitorHandler.HandleTopCountries, "top_countries"))
	mux.HandleFunc("POST /increment-games", MetricsMiddleware(s.visitorHandler.HandleIncrementGames, "increment_games"))
	mux.HandleFunc("GET /game-count", MetricsMiddleware(s.visitorHandler.HandleGameCount, "game_count"))

	mux.HandleFunc("GET /is-leader", MetricsMiddleware(s.leaderboardHandler.HandleIsLeader, "is_leader"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("POST /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleSubmit, "leaderboard_submit"))
}

// Handler wraps next with the middleware chain shared by every route.
// Outermost first: panic recovery, proxy headers, CORS, compression,
// request ids, visit recording.
func (s *Server) Handler(next http.Handler) http.Handler {
	h := VisitMiddleware(s.deps, s.logger, next, s.visitSkip...)
	h = RequestIDMiddleware(h)
	h = compress(h)
	h = cors(s.corsOrigins)(h)
	h = proxyHeaders(h)
	return recovery(s.logger)(h)
}

type errorResponse struct {
	Error string `json:"error"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail logs an unexpected handler error once and answers 500.
func fail(ctx context.Context, l logger.Logger, w http.ResponseWriter, op string, err error) {
	// a caller that went away is not an error worth logging
	if !errors.Is(err, context.Canceled) {
		l.Error(ctx, op+" failed", logger.String("request_id", RequestIDFromContext(ctx)), logger.Error(err))
		metrics.RecordErrorByComponent("api", op)
	}
	writeError(w, http.StatusInternalServerError, err)
}

// orEmpty keeps empty results encoded as [] rather than null.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
