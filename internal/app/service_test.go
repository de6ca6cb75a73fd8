package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/facequiz/internal/app"
	"github.com/okian/facequiz/internal/adapters/cache"
	"github.com/okian/facequiz/internal/adapters/repository"
	"github.com/okian/facequiz/internal/domain/model"
	"github.com/okian/facequiz/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newService(opts ...service.Option) (*service.Service, *repository.MemoryStore) {
	store := repository.NewMemoryStore(repository.WithClock(clock), repository.WithSeed(1))
	opts = append([]service.Option{
		service.WithLogger(logger.Nop()),
		service.WithClock(clock),
		service.WithPruneInterval(0),
	}, opts...)
	return service.New(store, opts...), store
}

func stop(svc *service.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = svc.Stop(ctx)
}

// failingCache reports errors for every call.
type failingCache struct{ cache.Noop }

func (failingCache) GetInt(context.Context, string) (int64, error) { return 0, errors.New("down") }
func (failingCache) Ping(context.Context) error                    { return errors.New("down") }

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc, _ := newService(
			service.WithWorkerCount(2),
			service.WithQueueSize(100),
			service.WithDedupeSize(10),
			service.WithLeaderboardSize(3),
		)

		Convey("Then it reports its configuration before starting", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["leaderboardSize"], ShouldEqual, 3)
			So(svc.LeaderboardSize(), ShouldEqual, 3)
		})

		Convey("When started twice and stopped twice", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["queueLength"], ShouldEqual, 0)

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it is stopped and the store is closed", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Health(ctx), ShouldNotBeNil)
			})
		})
	})
}

func TestService_Health(t *testing.T) {
	Convey("Given a healthy store", t, func() {
		svc, _ := newService()
		So(svc.Health(context.Background()), ShouldBeNil)
	})

	Convey("Given an unreachable cache", t, func() {
		svc, _ := newService(service.WithCache(failingCache{}))
		err := svc.Health(context.Background())
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "cache")
	})
}

func TestService_Counters(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with no games played", t, func() {
		svc, _ := newService()

		Convey("Then the game count is zero", func() {
			n, err := svc.GameCount(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("When a game is incremented", func() {
			n, err := svc.IncrementGames(ctx)

			Convey("Then the counter starts at one", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				cur, _ := svc.GameCount(ctx)
				So(cur, ShouldEqual, 1)
			})
		})

		Convey("When the cache is failing", func() {
			svc, _ := newService(service.WithCache(failingCache{}))
			_, _ = svc.IncrementGames(ctx)

			Convey("Then reads fall back to the store", func() {
				n, err := svc.GameCount(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestService_GameCountWriteThrough(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service caching counters in Redis", t, func() {
		mr := miniredis.RunT(t)
		rc := cache.NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		defer rc.Close()
		svc, _ := newService(service.WithCache(rc), service.WithCacheTTL(time.Hour))

		n, err := svc.GameCount(ctx)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 0)

		Convey("When games are played after the count was cached", func() {
			_, _ = svc.IncrementGames(ctx)
			_, _ = svc.IncrementGames(ctx)

			Convey("Then the next read sees the new count", func() {
				cur, err := svc.GameCount(ctx)
				So(err, ShouldBeNil)
				So(cur, ShouldEqual, 2)
				cached, err := rc.GetInt(ctx, cache.KeyGameCount)
				So(err, ShouldBeNil)
				So(cached, ShouldEqual, 2)
			})
		})
	})
}

func TestService_Closed(t *testing.T) {
	Convey("Given a service whose store is closed", t, func() {
		svc, store := newService()
		_ = store.Close(context.Background())

		Convey("Then store errors surface", func() {
			_, err := svc.IncrementGames(context.Background())
			So(err, ShouldNotBeNil)
			_, err = svc.ListTop(context.Background())
			So(err, ShouldNotBeNil)
			_, err = svc.Submit(context.Background(), "x", 1, 2)
			So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
			err = svc.RecordVisit(context.Background(), model.VisitEvent{Address: "1.2.3.4"})
			So(err, ShouldNotBeNil)
		})
	})
}
