package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/trialstats/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func submission(id string) Submission {
	return Submission{
		SubmissionID: id,
		Run: model.RunRecord{
			ID:          "run-" + id,
			CharacterID: "c1",
			TrackType:   model.TrackDirt,
			Score:       1000,
			Features:    model.Features{FinalPlace: 1},
		},
	}
}

func TestInMemoryQueue(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("Then it starts empty", func() {
			So(q.Len(ctx), ShouldEqual, 0)
			So(q.Cap(), ShouldEqual, 2)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("When a submission is enqueued and dequeued", func() {
			So(q.Enqueue(ctx, submission("a")), ShouldBeNil)
			So(q.Len(ctx), ShouldEqual, 1)

			got := <-q.Dequeue(ctx)

			Convey("Then the same submission comes out", func() {
				So(got.SubmissionID, ShouldEqual, "a")
				So(got.Run.ID, ShouldEqual, "run-a")
			})
		})

		Convey("When the queue is full", func() {
			So(q.Enqueue(ctx, submission("a")), ShouldBeNil)
			So(q.Enqueue(ctx, submission("b")), ShouldBeNil)
			err := q.Enqueue(ctx, submission("c"))

			Convey("Then ErrQueueFull is returned", func() {
				So(errors.Is(err, ErrQueueFull), ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then enqueue reports the context error", func() {
				So(errors.Is(q.Enqueue(cctx, submission("a")), context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, submission("a")), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue fails and queued items still drain", func() {
				So(errors.Is(q.Enqueue(ctx, submission("b")), ErrQueueClosed), ShouldBeTrue)
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Close(), ShouldBeNil)

				var drained []string
				for s := range q.Dequeue(ctx) {
					drained = append(drained, s.SubmissionID)
				}
				So(drained, ShouldResemble, []string{"a"})
			})
		})
	})

	Convey("Given concurrent producers", t, func() {
		q := NewInMemoryQueue(WithCapacity(1000))
		var wg sync.WaitGroup
		for p := 0; p < 10; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_ = q.Enqueue(ctx, submission(fmt.Sprintf("%d-%d", p, i)))
				}
			}(p)
		}
		wg.Wait()

		Convey("Then every submission is queued", func() {
			So(q.Len(ctx), ShouldEqual, 500)
		})

		Convey("And a consumer receives them all", func() {
			So(q.Close(), ShouldBeNil)
			count := 0
			timeout := time.After(2 * time.Second)
			ch := q.Dequeue(ctx)
		loop:
			for {
				select {
				case _, ok := <-ch:
					if !ok {
						break loop
					}
					count++
				case <-timeout:
					break loop
				}
			}
			So(count, ShouldEqual, 500)
		})
	})
}
