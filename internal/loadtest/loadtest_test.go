package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/facequiz/internal/adapters/http/api"
	"github.com/okian/facequiz/internal/adapters/repository"
	service "github.com/okian/facequiz/internal/app"
	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// newServer starts the real HTTP surface over an in-memory store.
func newServer(t *testing.T, k int) *httptest.Server {
	t.Helper()
	svc := service.New(repository.NewMemoryStore(repository.WithSeed(7)),
		service.WithLogger(logger.Nop()),
		service.WithLeaderboardSize(k),
		service.WithWorkerCount(2),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}

	server := api.NewServer(svc, api.WithLogger(logger.Nop()))
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	ts := httptest.NewServer(server.Handler(mux))

	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})
	return ts
}

func ranked(total int, scored ...int) []model.RankedEntry {
	out := make([]model.RankedEntry, len(scored))
	for i, s := range scored {
		out[i] = model.RankedEntry{
			LeaderboardEntry: model.LeaderboardEntry{Name: "p", Scored: s, Total: total},
			Ratio:            float64(s) / float64(total),
			Rank:             i + 1,
		}
	}
	return out
}

func TestRun(t *testing.T) {
	Convey("Given a fresh server keeping three entries per quiz length", t, func() {
		ts := newServer(t, 3)
		out := filepath.Join(t.TempDir(), "runs", "subs.json")

		cfg := &Config{
			BaseURL:       ts.URL,
			Submissions:   120,
			Totals:        []int{5, 10},
			DuplicateRate: 0.1,
			Games:         25,
			Workers:       8,
			Timeout:       5 * time.Second,
			OutputFile:    out,
			Strict:        true,
			Seed:          42,
		}

		Convey("When a strict run completes", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every check passes", func() {
				So(err, ShouldBeNil)
				So(stats.Violations, ShouldBeEmpty)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Submitted, ShouldEqual, 120)
				So(stats.Created+stats.Conflicts, ShouldEqual, 120)
				So(stats.Duplicates, ShouldBeGreaterThan, 0)
				So(stats.GameCountAfter-stats.GameCountBefore, ShouldEqual, 25)
				So(stats.Partitions, ShouldEqual, 2)
				So(stats.LeaderboardSize, ShouldEqual, 3)
				So(stats.LeaderboardChecks, ShouldEqual, 4)
			})

			Convey("Then the generated submissions are saved", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var subs []Submission
				So(json.Unmarshal(data, &subs), ShouldBeNil)
				So(subs, ShouldHaveLength, 120)
			})
		})
	})

	Convey("Given an unhealthy server", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable","error":"store down"}`))
		}))
		defer ts.Close()

		_, err := Run(context.Background(), &Config{BaseURL: ts.URL, Submissions: 1, Totals: DefaultTotals})

		Convey("Then the run stops before submitting", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "store down")
		})
	})
}

func TestGenerateSubmissions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a seeded generator", t, func() {
		cfg := &Config{Submissions: 500, Totals: []int{10, 20}, DuplicateRate: 0.2, Seed: 9}
		stats := &Stats{}
		subs, err := generateSubmissions(ctx, cfg, stats)
		So(err, ShouldBeNil)

		Convey("Then scores stay within their quiz length", func() {
			So(subs, ShouldHaveLength, 500)
			for _, s := range subs {
				So(s.Name, ShouldStartWith, "player-")
				So(s.Scored, ShouldBeBetweenOrEqual, 0, s.Total)
				So([]int{10, 20}, ShouldContain, s.Total)
			}
		})

		Convey("Then duplicates replay earlier submissions exactly", func() {
			seen := make(map[Submission]int)
			replays := 0
			for _, s := range subs {
				if seen[s] > 0 {
					replays++
				}
				seen[s]++
			}
			So(stats.Duplicates, ShouldBeGreaterThan, 0)
			So(replays, ShouldEqual, stats.Duplicates)
		})

		Convey("Then the same seed gives the same scores", func() {
			again, err := generateSubmissions(ctx, cfg, &Stats{})
			So(err, ShouldBeNil)
			for i := range subs {
				So(again[i].Scored, ShouldEqual, subs[i].Scored)
				So(again[i].Total, ShouldEqual, subs[i].Total)
			}
		})
	})

	Convey("Given invalid quiz lengths", t, func() {
		_, err := generateSubmissions(ctx, &Config{Submissions: 1}, &Stats{})
		So(err, ShouldNotBeNil)
		_, err = generateSubmissions(ctx, &Config{Submissions: 1, Totals: []int{0}}, &Stats{})
		So(err, ShouldNotBeNil)
	})
}

func TestVerifyBoard(t *testing.T) {
	Convey("Given a well formed board", t, func() {
		board := Board{10: ranked(10, 9, 7, 7), 5: ranked(5, 5)}
		So(verifyBoard(board, 3), ShouldBeEmpty)
	})

	Convey("Given a board breaking the ordering rules", t, func() {
		unsorted := ranked(10, 3, 8)
		badRank := ranked(10, 8, 3)
		badRank[1].Rank = 5
		badRatio := ranked(10, 8)
		badRatio[0].Ratio = 0.1

		So(verifyBoard(Board{10: unsorted}, 3), ShouldHaveLength, 1)
		So(verifyBoard(Board{10: badRank}, 3), ShouldHaveLength, 1)
		So(verifyBoard(Board{10: badRatio}, 3), ShouldHaveLength, 1)
		So(verifyBoard(Board{10: ranked(10, 9, 8, 7, 6)}, 3), ShouldHaveLength, 1)
		So(verifyBoard(Board{20: ranked(10, 9)}, 3), ShouldHaveLength, 1)
	})
}

func TestVerifyExpected(t *testing.T) {
	accepted := []Submission{
		{Name: "a", Scored: 3, Total: 10},
		{Name: "b", Scored: 9, Total: 10},
		{Name: "c", Scored: 6, Total: 10},
		{Name: "d", Scored: 1, Total: 10},
		{Name: "e", Scored: 2, Total: 5},
	}

	Convey("Given the board accepted submissions produce", t, func() {
		board := Board{10: ranked(10, 9, 6, 3), 5: ranked(5, 2)}
		So(verifyExpected(board, 3, accepted), ShouldBeEmpty)
	})

	Convey("Given a board that lost or gained entries", t, func() {
		So(verifyExpected(Board{10: ranked(10, 9, 6), 5: ranked(5, 2)}, 3, accepted), ShouldHaveLength, 1)
		So(verifyExpected(Board{10: ranked(10, 9, 6, 1), 5: ranked(5, 2)}, 3, accepted), ShouldHaveLength, 1)
		So(verifyExpected(Board{10: ranked(10, 9, 6, 3), 5: ranked(5, 2), 7: ranked(7, 1)}, 3, accepted), ShouldHaveLength, 1)
	})
}

func TestVerifyCounts(t *testing.T) {
	Convey("Given counts matching what was sent", t, func() {
		stats := &Stats{Generated: 10, Duplicates: 2, Submitted: 10, Created: 8, Conflicts: 2, GameCountBefore: 4, GameCountAfter: 9}
		So(verifyCounts(&Config{Games: 5}, stats), ShouldBeEmpty)

		Convey("When a pruned entry was accepted again", func() {
			stats.Created, stats.Conflicts = 9, 1
			So(verifyCounts(&Config{Games: 5}, stats), ShouldBeEmpty)
		})

		Convey("When games or submissions went missing", func() {
			stats.GameCountAfter = 8
			stats.Created = 7
			So(verifyCounts(&Config{Games: 5}, stats), ShouldHaveLength, 2)
		})
	})
}

func TestParseTotals(t *testing.T) {
	Convey("Given quiz length lists", t, func() {
		got, err := ParseTotals(" 10, 20,,30 ")
		So(err, ShouldBeNil)
		So(got, ShouldResemble, []int{10, 20, 30})

		for _, in := range []string{"", "10,x", "0", "-5"} {
			_, err := ParseTotals(in)
			So(err, ShouldNotBeNil)
		}
	})
}

func TestHTTPClient(t *testing.T) {
	Convey("Given a server answering with bad JSON", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer ts.Close()

		var out map[string]any
		status, err := newHTTPClient(ts.URL, 0).Get(context.Background(), "/x", &out)
		So(status, ShouldEqual, http.StatusOK)
		So(err, ShouldNotBeNil)
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newHTTPClient("http://127.0.0.1:1", time.Second).Post(ctx, "/leaderboard", Submission{Name: "a"}, nil)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}
