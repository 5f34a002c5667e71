package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/trialstats/internal/adapters/mq/queue"
	"github.com/okian/trialstats/internal/adapters/mq/worker"
	"github.com/okian/trialstats/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type memorySaver struct {
	mu    sync.Mutex
	saved map[string]model.RunRecord
	fail  map[string]error
}

func newMemorySaver() *memorySaver {
	return &memorySaver{saved: map[string]model.RunRecord{}, fail: map[string]error{}}
}

func (m *memorySaver) Save(_ context.Context, run model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[run.ID]; ok {
		return err
	}
	m.saved[run.ID] = run
	return nil
}

func (m *memorySaver) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func submission(i int) model.Submission {
	return model.Submission{
		SubmissionID: fmt.Sprintf("sub-%d", i),
		Run: model.RunRecord{
			ID:          fmt.Sprintf("run-%d", i),
			CharacterID: "c1",
			TrackType:   model.TrackTurfMile,
			Score:       100 * i,
			Features:    model.Features{FinalPlace: 2},
		},
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	Convey("Given a worker reading from a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		saver := newMemorySaver()

		var (
			mu     sync.Mutex
			failed []string
		)
		w := worker.NewInMemoryWorker(q, saver,
			worker.WithName("test-worker"),
			worker.WithFailureHandler(func(_ context.Context, s model.Submission, _ error) {
				mu.Lock()
				defer mu.Unlock()
				failed = append(failed, s.SubmissionID)
			}),
		)
		go w.Run(ctx)

		Convey("When submissions arrive", func() {
			So(q.Enqueue(ctx, submission(1)), ShouldBeNil)
			So(q.Enqueue(ctx, submission(2)), ShouldBeNil)

			Convey("Then they are persisted", func() {
				So(waitFor(func() bool { return saver.count() == 2 }), ShouldBeTrue)
			})
		})

		Convey("When the saver fails", func() {
			saver.fail["run-3"] = errors.New("disk full")
			So(q.Enqueue(ctx, submission(3)), ShouldBeNil)

			Convey("Then the failure handler sees the submission", func() {
				So(waitFor(func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(failed) == 1
				}), ShouldBeTrue)
				mu.Lock()
				So(failed[0], ShouldEqual, "sub-3")
				mu.Unlock()
				So(saver.count(), ShouldEqual, 0)
			})
		})

		Convey("When shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			Convey("Then it stops and a second shutdown is harmless", func() {
				So(w.Shutdown(sctx), ShouldBeNil)
				So(w.Shutdown(sctx), ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a pool of workers", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(200))
		saver := newMemorySaver()
		pool := worker.NewPool(4, q, saver)
		pool.Start(ctx)

		Convey("Then it reports its size", func() {
			So(pool.Size(), ShouldEqual, 4)
		})

		Convey("When many submissions are queued and the pool shuts down", func() {
			for i := 0; i < 100; i++ {
				So(q.Enqueue(ctx, submission(i)), ShouldBeNil)
			}
			err := pool.Shutdown(ctx)

			Convey("Then the queue is drained before workers exit", func() {
				So(err, ShouldBeNil)
				So(saver.count(), ShouldEqual, 100)
				So(pool.Processed(), ShouldEqual, 100)
				So(q.IsClosed(), ShouldBeTrue)
			})
		})
	})

	Convey("Given a pool created with no worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMemorySaver())

		Convey("Then it defaults to at least one worker", func() {
			So(pool.Size(), ShouldBeGreaterThanOrEqualTo, 1)
		})
	})
}
