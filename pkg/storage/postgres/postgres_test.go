package postgres_test

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/postgres"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("CHATRELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("CHATRELAY_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	var (
		driver *postgres.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dsn := connStr()

		var err error
		driver, err = postgres.NewDriver(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	It("round-trips a turn", func() {
		id := uuid.NewString()
		turn := &storage.Turn{
			ID:        id,
			Subject:   "pg-user",
			Model:     "test-model",
			Messages:  []llm.Message{llm.NewTextMessage(llm.RoleUser, "hello")},
			Response:  "hi",
			Status:    200,
			Complete:  true,
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
			Duration:  time.Second,
		}
		Expect(driver.Put(ctx, turn)).To(Succeed())

		got, err := driver.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Messages).To(Equal(turn.Messages))
		Expect(got.CreatedAt).To(BeTemporally("==", turn.CreatedAt))
		Expect(got.Duration).To(Equal(time.Second))

		turns, err := driver.List(ctx, storage.ListOptions{Subject: "pg-user", Limit: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(1))
	})

	It("returns NotFoundError for unknown ids", func() {
		_, err := driver.Get(ctx, uuid.NewString())
		Expect(err).To(BeAssignableToTypeOf(storage.NotFoundError{}))
	})
})
