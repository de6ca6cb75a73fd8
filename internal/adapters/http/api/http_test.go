package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/facequiz/internal/adapters/http/api"
	"github.com/okian/facequiz/internal/adapters/repository"
	service "github.com/okian/facequiz/internal/app"
	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/pkg/logger"
)

var _ api.Dependencies = (*service.Service)(nil)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type testEnv struct {
	handler http.Handler
	svc     *service.Service
	store   *repository.MemoryStore
}

func newEnv(opts ...service.Option) *testEnv {
	store := repository.NewMemoryStore(repository.WithClock(clock), repository.WithSeed(7))
	opts = append([]service.Option{
		service.WithLogger(logger.Nop()),
		service.WithClock(clock),
		service.WithPruneInterval(0),
		service.WithWorkerCount(2),
	}, opts...)
	svc := service.New(store, opts...)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}

	server := api.NewServer(svc, api.WithLogger(logger.Nop()))
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return &testEnv{handler: server.Handler(mux), svc: svc, store: store}
}

func (e *testEnv) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = e.svc.Stop(ctx)
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

func (e *testEnv) seed(ps ...model.Person) {
	_, err := e.store.InsertPeople(context.Background(), ps)
	So(err, ShouldBeNil)
}

func TestPeopleRoutes(t *testing.T) {
	Convey("Given a server over three records", t, func() {
		env := newEnv()
		Reset(env.close)
		env.seed(
			model.Person{Name: "Bruce Lee", Ethnicity: "Chinese", Gender: "male", Occupation: "Actor", BirthDate: "1940-11-27T00:00:00Z"},
			model.Person{Name: "Ken Watanabe", Ethnicity: "Japanese", Gender: "male", Occupation: "actor", BirthDate: "1959-10-21T00:00:00Z"},
			model.Person{Name: "Michelle Yeoh", Ethnicity: "Chinese", Gender: "female", Occupation: "Actor", BirthDate: "1962-08-06T00:00:00Z"},
		)

		Convey("When GET /random", func() {
			w := env.do(http.MethodGet, "/random", "")

			Convey("Then a single record is returned in a list", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(decode[[]model.Person](w), ShouldHaveLength, 1)
			})
		})

		Convey("When GET /random/{count} asks for more than exist", func() {
			w := env.do(http.MethodGet, "/random/5", "")

			Convey("Then at most the collection is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[[]model.Person](w), ShouldHaveLength, 3)
			})
		})

		Convey("When GET /random/{count} has a malformed count", func() {
			w := env.do(http.MethodGet, "/random/abc", "")

			Convey("Then one record is sampled", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[[]model.Person](w), ShouldHaveLength, 1)
			})
		})

		Convey("When GET /people filters by ethnicity", func() {
			w := env.do(http.MethodGet, "/people?ethnicity=Chinese", "")

			Convey("Then only exact matches are returned", func() {
				got := decode[[]model.Person](w)
				So(got, ShouldHaveLength, 2)
				for _, p := range got {
					So(p.Ethnicity, ShouldEqual, "Chinese")
				}
			})
		})

		Convey("When GET /people filters by occupation ignoring case", func() {
			w := env.do(http.MethodGet, "/people?occupation=ACTOR&gender=male", "")

			Convey("Then both spellings match", func() {
				So(decode[[]model.Person](w), ShouldHaveLength, 2)
			})
		})

		Convey("When GET /people has an age range", func() {
			// on 2024-06-15 Bruce Lee is 83, Ken Watanabe 64, Michelle Yeoh 61
			w := env.do(http.MethodGet, "/people?minAge=62&maxAge=70", "")

			Convey("Then birth dates are compared against the range", func() {
				got := decode[[]model.Person](w)
				So(got, ShouldHaveLength, 1)
				So(got[0].Name, ShouldEqual, "Ken Watanabe")
			})
		})

		Convey("When GET /people has an unparsable age and a limit", func() {
			w := env.do(http.MethodGet, "/people?minAge=old&limit=2", "")

			Convey("Then the age does not filter and the limit samples", func() {
				So(decode[[]model.Person](w), ShouldHaveLength, 2)
			})
		})

		Convey("When GET /people matches nothing", func() {
			w := env.do(http.MethodGet, "/people?name=Nobody", "")

			Convey("Then an empty list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When GET /people/grouped", func() {
			w := env.do(http.MethodGet, "/people/grouped?limit=3", "")

			Convey("Then every round has four options", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				rounds := decode[[]model.QuizRound](w)
				So(len(rounds), ShouldBeLessThanOrEqualTo, 3)
				for _, r := range rounds {
					So(r.Options, ShouldHaveLength, 4)
				}
			})
		})
	})
}

func TestLeaderboardRoutes(t *testing.T) {
	Convey("Given a server with K=2", t, func() {
		env := newEnv(service.WithLeaderboardSize(2))
		Reset(env.close)

		Convey("When a score is submitted", func() {
			w := env.do(http.MethodPost, "/leaderboard", `{"name":"A","scored":8,"total":10}`)

			Convey("Then it is created", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				body := decode[map[string]any](w)
				So(body["success"], ShouldEqual, true)
				entry := body["entry"].(map[string]any)
				So(entry["name"], ShouldEqual, "A")
				So(entry["scored"], ShouldEqual, 8)
			})

			Convey("And submitting the same name and total conflicts", func() {
				w := env.do(http.MethodPost, "/leaderboard", `{"name":"A","scored":9,"total":10}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				body := decode[map[string]any](w)
				So(body["success"], ShouldEqual, false)
				So(body["conflict"], ShouldEqual, true)
				So(body["error"], ShouldNotBeEmpty)
				So(env.store.EntryCount(), ShouldEqual, 1)
			})

			Convey("And the same name may submit another quiz length", func() {
				w := env.do(http.MethodPost, "/leaderboard", `{"name":"A","scored":15,"total":20}`)
				So(w.Code, ShouldEqual, http.StatusCreated)
			})
		})

		Convey("When the body is not JSON", func() {
			w := env.do(http.MethodPost, "/leaderboard", `{"name":`)

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[map[string]string](w)["error"], ShouldContainSubstring, "bad request")
			})
		})

		Convey("When the name is blank", func() {
			w := env.do(http.MethodPost, "/leaderboard", `{"name":"  ","scored":1,"total":10}`)

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When three scores share a quiz length", func() {
			for _, body := range []string{
				`{"name":"A","scored":8,"total":10}`,
				`{"name":"B","scored":9,"total":10}`,
				`{"name":"C","scored":7,"total":10}`,
			} {
				So(env.do(http.MethodPost, "/leaderboard", body).Code, ShouldEqual, http.StatusCreated)
			}

			Convey("Then GET /leaderboard lists the top two by ratio", func() {
				w := env.do(http.MethodGet, "/leaderboard", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				board := decode[map[string][]model.RankedEntry](w)
				So(board["10"], ShouldHaveLength, 2)
				So(board["10"][0].Name, ShouldEqual, "B")
				So(board["10"][0].Ratio, ShouldAlmostEqual, 0.9)
				So(board["10"][1].Name, ShouldEqual, "A")
			})

			Convey("And a score equal to the second place is competitive", func() {
				w := env.do(http.MethodGet, "/is-leader?scored=8&total=10", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]bool](w)["isLeader"], ShouldBeTrue)
			})

			Convey("And a score just below it is not", func() {
				w := env.do(http.MethodGet, "/is-leader?scored=7.9&total=10", "")
				So(decode[map[string]bool](w)["isLeader"], ShouldBeFalse)
			})

			Convey("And an unparsable score is not", func() {
				w := env.do(http.MethodGet, "/is-leader?scored=lots&total=10", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]bool](w)["isLeader"], ShouldBeFalse)
			})

			Convey("And trailing text after a quiz length is ignored", func() {
				w := env.do(http.MethodGet, "/is-leader?scored=1&total=10abc", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]bool](w)["isLeader"], ShouldBeFalse)
			})

			Convey("And an empty quiz length always qualifies", func() {
				w := env.do(http.MethodGet, "/is-leader?scored=0&total=30", "")
				So(decode[map[string]bool](w)["isLeader"], ShouldBeTrue)
			})
		})

		Convey("When the leaderboard is empty", func() {
			w := env.do(http.MethodGet, "/leaderboard", "")

			Convey("Then an empty object is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "{}")
			})
		})

		Convey("When the method is not routed", func() {
			w := env.do(http.MethodPut, "/leaderboard", "")

			Convey("Then the mux answers 405", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestCounterRoutes(t *testing.T) {
	Convey("Given a fresh server", t, func() {
		env := newEnv()
		Reset(env.close)

		Convey("When no game was played", func() {
			w := env.do(http.MethodGet, "/game-count", "")

			Convey("Then the count is zero", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]int64](w)["count"], ShouldEqual, 0)
			})
		})

		Convey("When games are incremented twice", func() {
			So(decode[map[string]int64](env.do(http.MethodPost, "/increment-games", ""))["count"], ShouldEqual, 1)
			So(decode[map[string]int64](env.do(http.MethodPost, "/increment-games", ""))["count"], ShouldEqual, 2)

			Convey("Then the game count reflects both", func() {
				So(decode[map[string]int64](env.do(http.MethodGet, "/game-count", ""))["count"], ShouldEqual, 2)
			})
		})

		Convey("When requests arrive from different clients", func() {
			req := httptest.NewRequest(http.MethodGet, "/random", http.NoBody)
			req.RemoteAddr = "203.0.113.9:41000"
			env.handler.ServeHTTP(httptest.NewRecorder(), req)

			proxied := httptest.NewRequest(http.MethodGet, "/random", http.NoBody)
			proxied.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")
			env.handler.ServeHTTP(httptest.NewRecorder(), proxied)

			Convey("Then each address is recorded once, proxies resolved", func() {
				ctx := context.Background()
				So(eventually(func() bool {
					a, _ := env.store.VisitorExists(ctx, "203.0.113.9")
					b, _ := env.store.VisitorExists(ctx, "198.51.100.2")
					return a && b
				}), ShouldBeTrue)

				w := env.do(http.MethodGet, "/visitor-count-history", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				days := decode[[]model.DayCount](w)
				So(days, ShouldNotBeEmpty)
				So(days[0].Date, ShouldEqual, "2024-06-15")
			})
		})

		Convey("When nobody has a country", func() {
			w := env.do(http.MethodGet, "/topPlayedCountryCodes?n=3", "")

			Convey("Then an empty list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[[]model.CountryCount](w), ShouldBeEmpty)
			})
		})

		Convey("When GET /visitor-count", func() {
			w := env.do(http.MethodGet, "/visitor-count", "")

			Convey("Then a count object is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[map[string]int64](w), ShouldContainKey, "count")
			})
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given a running server", t, func() {
		env := newEnv()
		Reset(env.close)

		Convey("Then /healthz reports ok", func() {
			w := env.do(http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode[map[string]string](w)["status"], ShouldEqual, "ok")
		})

		Convey("Then /stats exposes the service configuration", func() {
			w := env.do(http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			stats := decode[map[string]any](w)
			So(stats["leaderboardSize"], ShouldEqual, 10)
			So(stats["started"], ShouldEqual, true)
		})

		Convey("Then /metrics serves Prometheus text", func() {
			env.do(http.MethodGet, "/game-count", "")
			w := env.do(http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "facequiz_api_http_requests_total")
		})

		Convey("Then responses carry a generated request id", func() {
			w := env.do(http.MethodGet, "/game-count", "")
			So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
		})

		Convey("Then a caller's request id is echoed", func() {
			req := httptest.NewRequest(http.MethodGet, "/game-count", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "req-123")
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "req-123")
		})

		Convey("Then cross-origin requests are allowed", func() {
			req := httptest.NewRequest(http.MethodGet, "/game-count", http.NoBody)
			req.Header.Set("Origin", "https://quiz.example.com")
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("Then CORS preflight succeeds", func() {
			req := httptest.NewRequest(http.MethodOptions, "/leaderboard", http.NoBody)
			req.Header.Set("Origin", "https://quiz.example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
