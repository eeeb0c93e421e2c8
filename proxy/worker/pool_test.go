package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TurnRelayedEvent
	err    error
}

func (r *recordingPublisher) PublishTurn(_ context.Context, event *eventstream.TurnRelayedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

// failingDriver rejects every Put.
type failingDriver struct {
	*inmemory.Driver
}

func (failingDriver) Put(context.Context, *storage.Turn) error {
	return errors.New("disk full")
}

func testTurn(id string) *storage.Turn {
	return &storage.Turn{
		ID:    id,
		Model: "test-model",
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "What is 2+2?"),
		},
		Response: "2+2 equals 4.",
		Status:   200,
		Complete: true,
	}
}

var _ = Describe("Worker Pool", func() {
	var (
		wp        *Pool
		driver    *inmemory.Driver
		publisher *recordingPublisher
		ctx       context.Context
	)

	BeforeEach(func() {
		logger, _ := zap.NewDevelopment()
		driver = inmemory.NewDriver()
		publisher = &recordingPublisher{}
		ctx = context.Background()

		var err error
		wp, err = NewPool(&Config{
			Driver:    driver,
			Publisher: publisher,
			Logger:    logger,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewPool", func() {
		It("requires a driver", func() {
			_, err := NewPool(&Config{})
			Expect(err).To(HaveOccurred())
			wp.Close()
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			Expect(wp.Enqueue(Job{Turn: testTurn("t1")})).To(BeTrue())
			wp.Close()
		})

		It("rejects jobs without a turn", func() {
			Expect(wp.Enqueue(Job{})).To(BeFalse())
			wp.Close()
		})
	})

	Describe("processing", func() {
		It("stores the turn then publishes it", func() {
			Expect(wp.Enqueue(Job{Path: "/functions/v1/chat", Turn: testTurn("t1")})).To(BeTrue())
			wp.Close()

			got, err := driver.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Response).To(Equal("2+2 equals 4."))

			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].Turn.ID).To(Equal("t1"))
			Expect(publisher.events[0].RequestMeta.Path).To(Equal("/functions/v1/chat"))

			stats := wp.Stats()
			Expect(stats.Stored).To(Equal(uint64(1)))
			Expect(stats.Published).To(Equal(uint64(1)))
		})

		It("stores many turns across workers", func() {
			for i := range 20 {
				Expect(wp.Enqueue(Job{Turn: testTurn(fmt.Sprintf("t%d", i))})).To(BeTrue())
			}
			wp.Close()

			turns, err := driver.List(ctx, storage.ListOptions{Limit: 100})
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(20))
		})

		It("keeps the stored turn when publishing fails", func() {
			publisher.err = errors.New("broker unavailable")
			Expect(wp.Enqueue(Job{Turn: testTurn("t1")})).To(BeTrue())
			wp.Close()

			_, err := driver.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(wp.Stats().Published).To(BeZero())
		})
	})

	Describe("storage failures", func() {
		It("does not publish turns that failed to store", func() {
			wp.Close()

			pub := &recordingPublisher{}
			failing, err := NewPool(&Config{
				Driver:    failingDriver{Driver: inmemory.NewDriver()},
				Publisher: pub,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(failing.Enqueue(Job{Turn: testTurn("t1")})).To(BeTrue())
			failing.Close()

			Expect(pub.events).To(BeEmpty())
			Expect(failing.Stats().Failed).To(Equal(uint64(1)))
		})
	})

	Describe("queue full", func() {
		It("drops jobs when full", func() {
			wp.Close()

			blocked := make(chan struct{})
			slow, err := NewPool(&Config{
				Driver:     blockingDriver{Driver: inmemory.NewDriver(), release: blocked},
				NumWorkers: 1,
				QueueSize:  1,
			})
			Expect(err).NotTo(HaveOccurred())

			// One job occupies the worker, one fills the queue.
			Expect(slow.Enqueue(Job{Turn: testTurn("a")})).To(BeTrue())
			Eventually(func() bool {
				return slow.Enqueue(Job{Turn: testTurn("b")})
			}).Should(BeTrue())

			Expect(slow.Enqueue(Job{Turn: testTurn("c")})).To(BeFalse())
			Expect(slow.Stats().Dropped).To(BeNumerically(">=", 1))

			close(blocked)
			slow.Close()
		})
	})
})

// blockingDriver holds every Put until release is closed.
type blockingDriver struct {
	*inmemory.Driver
	release chan struct{}
}

func (b blockingDriver) Put(ctx context.Context, turn *storage.Turn) error {
	<-b.release
	return b.Driver.Put(ctx, turn)
}
