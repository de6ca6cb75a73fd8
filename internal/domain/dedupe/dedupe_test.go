package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/facequiz/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new deduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When an address is seen for the first time", func() {
			seen := d.SeenAndRecord(ctx, "203.0.113.1")

			Convey("Then it is reported as new and recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a second sighting is reported as seen", func() {
				So(d.SeenAndRecord(ctx, "203.0.113.1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an address is unrecorded", func() {
			d.SeenAndRecord(ctx, "203.0.113.1")
			d.Unrecord(ctx, "203.0.113.1")
			d.Unrecord(ctx, "never-seen")

			Convey("Then it is new again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "203.0.113.1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a bounded deduper of size 3", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, a := range []string{"a", "b", "c"} {
			d.SeenAndRecord(ctx, a)
		}

		Convey("When a recently used key is touched and a new key arrives", func() {
			So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "d"), ShouldBeFalse)

			Convey("Then the least recently seen key is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i)), ShouldBeFalse)
		}
		So(d.Size(), ShouldEqual, 1000)
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given many goroutines recording the same keys", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const goroutines = 10
		const keys = 100

		var wg sync.WaitGroup
		var mu sync.Mutex
		firsts := 0
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for k := 0; k < keys; k++ {
					if !d.SeenAndRecord(context.Background(), fmt.Sprintf("k-%d", k)) {
						mu.Lock()
						firsts++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each key is new exactly once", func() {
			So(firsts, ShouldEqual, keys)
			So(d.Size(), ShouldEqual, keys)
		})
	})
}
