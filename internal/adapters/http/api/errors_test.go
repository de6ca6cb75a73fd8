package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/facequiz/internal/adapters/http/api"
	service "github.com/okian/facequiz/internal/app"
	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/internal/domain/people"
	"github.com/okian/facequiz/pkg/logger"
)

// brokenDeps fails every call with err, or panics when panics is set.
type brokenDeps struct {
	err    error
	panics bool
	visits []string
}

func (b *brokenDeps) fail() error {
	if b.panics {
		panic("store exploded")
	}
	return b.err
}

func (b *brokenDeps) Random(context.Context, int) ([]model.Person, error) { return nil, b.fail() }
func (b *brokenDeps) People(context.Context, people.Filter, int) ([]model.Person, error) {
	return nil, b.fail()
}
func (b *brokenDeps) Grouped(context.Context, int) ([]model.QuizRound, error) { return nil, b.fail() }
func (b *brokenDeps) EnqueueVisit(_ context.Context, address, _ string) error {
	b.visits = append(b.visits, address)
	return nil
}
func (b *brokenDeps) VisitorCount(context.Context) (int64, error)                { return 0, b.fail() }
func (b *brokenDeps) VisitorHistory(context.Context) ([]model.DayCount, error)   { return nil, b.fail() }
func (b *brokenDeps) TopCountries(context.Context, int) ([]model.CountryCount, error) {
	return nil, b.fail()
}
func (b *brokenDeps) IncrementGames(context.Context) (int64, error) { return 0, b.fail() }
func (b *brokenDeps) GameCount(context.Context) (int64, error)      { return 0, b.fail() }
func (b *brokenDeps) Submit(context.Context, string, int, int) (service.SubmitResult, error) {
	return service.SubmitResult{}, b.fail()
}
func (b *brokenDeps) ListTop(context.Context) (map[int][]model.RankedEntry, error) {
	return nil, b.fail()
}
func (b *brokenDeps) IsLeader(context.Context, float64, float64) (bool, error) { return false, b.fail() }
func (b *brokenDeps) Health(context.Context) error                             { return b.fail() }
func (b *brokenDeps) GetStats() map[string]any                                 { return map[string]any{} }

func brokenServer(deps *brokenDeps) http.Handler {
	server := api.NewServer(deps, api.WithLogger(logger.Nop()))
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return server.Handler(mux)
}

func TestServer_Failures(t *testing.T) {
	Convey("Given dependencies whose store is down", t, func() {
		deps := &brokenDeps{err: errors.New("connection refused")}
		h := brokenServer(deps)

		for _, route := range []struct{ method, path string }{
			{http.MethodGet, "/random"},
			{http.MethodGet, "/random/3"},
			{http.MethodGet, "/people"},
			{http.MethodGet, "/people/grouped"},
			{http.MethodGet, "/visitor-count"},
			{http.MethodGet, "/visitor-count-history"},
			{http.MethodGet, "/topPlayedCountryCodes"},
			{http.MethodPost, "/increment-games"},
			{http.MethodGet, "/game-count"},
			{http.MethodGet, "/leaderboard"},
			{http.MethodGet, "/is-leader?scored=1&total=10"},
		} {
			Convey("When "+route.method+" "+route.path, func() {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(route.method, route.path, http.NoBody))

				Convey("Then the error message is returned with a 500", func() {
					So(w.Code, ShouldEqual, http.StatusInternalServerError)
					So(decode[map[string]string](w)["error"], ShouldEqual, "connection refused")
				})
			})
		}

		Convey("When a score is submitted", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/leaderboard", strings.NewReader(`{"name":"A","scored":1,"total":2}`)))

			Convey("Then it fails with a 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})

		Convey("When the health check runs", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

			Convey("Then the service is reported unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				body := decode[map[string]string](w)
				So(body["status"], ShouldEqual, "unavailable")
				So(body["error"], ShouldEqual, "connection refused")
			})
		})

		Convey("When operational paths are requested", func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))

			Convey("Then no visit is recorded for them", func() {
				So(deps.visits, ShouldBeEmpty)
			})
		})

		Convey("When a business path is requested", func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/game-count", http.NoBody))

			Convey("Then the client address is handed over even though the handler failed", func() {
				So(deps.visits, ShouldResemble, []string{"192.0.2.1"})
			})
		})
	})

	Convey("Given dependencies that panic", t, func() {
		h := brokenServer(&brokenDeps{panics: true})

		Convey("When a handler panics", func() {
			w := httptest.NewRecorder()

			Convey("Then the panic is recovered as a 500", func() {
				So(func() {
					h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/random", http.NoBody))
				}, ShouldNotPanic)
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}
