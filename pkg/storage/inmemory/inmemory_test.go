package inmemory_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
)

func testTurn(id, subject string, at time.Time) *storage.Turn {
	return &storage.Turn{
		ID:        id,
		Subject:   subject,
		Model:     "test-model",
		Messages:  []llm.Message{llm.NewTextMessage(llm.RoleUser, "hello "+id)},
		Response:  "hi",
		Status:    200,
		Frames:    3,
		Complete:  true,
		CreatedAt: at,
		Duration:  250 * time.Millisecond,
	}
}

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
		base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	})

	Describe("Put and Get", func() {
		It("round-trips a turn", func() {
			turn := testTurn("t1", "user-1", base)
			Expect(driver.Put(ctx, turn)).To(Succeed())

			got, err := driver.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(turn))
		})

		It("stores a copy", func() {
			turn := testTurn("t1", "", base)
			Expect(driver.Put(ctx, turn)).To(Succeed())
			turn.Messages[0].Content = "mutated"

			got, err := driver.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Messages[0].Content).To(Equal("hello t1"))
		})

		It("rejects nil and id-less turns", func() {
			Expect(driver.Put(ctx, nil)).NotTo(Succeed())
			Expect(driver.Put(ctx, &storage.Turn{})).NotTo(Succeed())
		})

		It("returns NotFoundError for unknown ids", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for i := range 5 {
				subject := "a"
				if i%2 == 1 {
					subject = "b"
				}
				Expect(driver.Put(ctx, testTurn(fmt.Sprintf("t%d", i), subject, base.Add(time.Duration(i)*time.Minute)))).To(Succeed())
			}
		})

		It("returns newest first with a limit", func() {
			turns, err := driver.List(ctx, storage.ListOptions{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].ID).To(Equal("t4"))
			Expect(turns[1].ID).To(Equal("t3"))
		})

		It("filters by subject", func() {
			turns, err := driver.List(ctx, storage.ListOptions{Subject: "b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].ID).To(Equal("t3"))
			Expect(turns[1].ID).To(Equal("t1"))
		})
	})

	Describe("Stats", func() {
		It("aggregates stored turns", func() {
			Expect(driver.Put(ctx, testTurn("ok", "a", base))).To(Succeed())
			failed := testTurn("failed", "b", base.Add(time.Minute))
			failed.Status = 429
			failed.Complete = false
			Expect(driver.Put(ctx, failed)).To(Succeed())

			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Turns).To(Equal(2))
			Expect(stats.Complete).To(Equal(1))
			Expect(stats.Failed).To(Equal(1))
			Expect(stats.Subjects).To(Equal(2))
			Expect(*stats.LastTurnAt).To(BeTemporally("==", base.Add(time.Minute)))
		})

		It("is empty for an empty store", func() {
			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(storage.Stats{}))
		})
	})
})
