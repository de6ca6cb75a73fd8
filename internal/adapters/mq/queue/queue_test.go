package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/facequiz/internal/domain/model"
)

func visit(addr string) model.VisitEvent {
	return model.VisitEvent{Address: addr, At: time.Now()}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("Then it starts empty and open", func() {
			So(q.Len(), ShouldEqual, 0)
			So(q.Cap(), ShouldEqual, 2)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("When an event is enqueued", func() {
			So(q.Enqueue(ctx, visit("1.1.1.1")), ShouldBeNil)

			Convey("Then it can be dequeued", func() {
				So(q.Len(), ShouldEqual, 1)
				e := <-q.Dequeue()
				So(e.Address, ShouldEqual, "1.1.1.1")
				So(q.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the queue is full", func() {
			So(q.Enqueue(ctx, visit("a")), ShouldBeNil)
			So(q.Enqueue(ctx, visit("b")), ShouldBeNil)
			err := q.Enqueue(ctx, visit("c"))

			Convey("Then the event is rejected without blocking", func() {
				So(err, ShouldEqual, ErrFull)
				So(q.Len(), ShouldEqual, 2)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(q.Enqueue(cctx, visit("a")), ShouldEqual, context.Canceled)
		})

		Convey("When the queue is closed with events buffered", func() {
			So(q.Enqueue(ctx, visit("a")), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then new events are refused", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, visit("b")), ShouldEqual, ErrStopped)
			})

			Convey("And buffered events still drain before the channel closes", func() {
				var got []string
				for e := range q.Dequeue() {
					got = append(got, e.Address)
				}
				So(got, ShouldResemble, []string{"a"})
			})
		})
	})
}

func TestInMemoryQueueConcurrency(t *testing.T) {
	Convey("Given concurrent producers and consumers", t, func() {
		q := NewInMemoryQueue(WithCapacity(100))
		ctx := context.Background()
		const producers, perProducer = 10, 100

		var consumed sync.WaitGroup
		var mu sync.Mutex
		seen := make(map[string]struct{})
		for i := 0; i < 4; i++ {
			consumed.Add(1)
			go func() {
				defer consumed.Done()
				for e := range q.Dequeue() {
					mu.Lock()
					seen[e.Address] = struct{}{}
					mu.Unlock()
				}
			}()
		}

		var produced sync.WaitGroup
		for p := 0; p < producers; p++ {
			produced.Add(1)
			go func(p int) {
				defer produced.Done()
				for j := 0; j < perProducer; j++ {
					for q.Enqueue(ctx, visit(fmt.Sprintf("%d-%d", p, j))) != nil {
						time.Sleep(time.Millisecond)
					}
				}
			}(p)
		}
		produced.Wait()
		So(q.Close(), ShouldBeNil)
		consumed.Wait()

		Convey("Then every event is consumed exactly once", func() {
			So(len(seen), ShouldEqual, producers*perProducer)
			So(q.Len(), ShouldEqual, 0)
		})
	})
}

func TestCloseDuringEnqueue(t *testing.T) {
	Convey("Given producers racing with Close", t, func() {
		q := NewInMemoryQueue(WithCapacity(10))
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					_ = q.Enqueue(ctx, visit("x"))
				}
			}()
		}
		go func() {
			for range q.Dequeue() {
			}
		}()

		Convey("Then nothing panics", func() {
			So(func() { _ = q.Close() }, ShouldNotPanic)
			wg.Wait()
		})
	})
}
