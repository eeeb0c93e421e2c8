package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/chatrelay/pkg/utils/test"
)

// brokenDriver fails every read.
type brokenDriver struct {
	storage.Driver
}

func (brokenDriver) Get(context.Context, string) (*storage.Turn, error) {
	return nil, errors.New("disk on fire")
}

func (brokenDriver) List(context.Context, storage.ListOptions) ([]*storage.Turn, error) {
	return nil, errors.New("disk on fire")
}

func (brokenDriver) Stats(context.Context) (storage.Stats, error) {
	return storage.Stats{}, errors.New("disk on fire")
}

func get(server *api.Server, target string) *http.Response {
	resp, err := server.Test(httptest.NewRequest(http.MethodGet, target, nil))
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())

	var out T
	Expect(json.Unmarshal(body, &out)).To(Succeed())
	return out
}

var _ = Describe("Server", func() {
	var (
		driver *inmemory.Driver
		server *api.Server
		base   time.Time
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		server = api.NewServer(api.Config{ListenAddr: ":0", MaxListLimit: 2}, driver, zap.NewNop())
		base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		ctx := context.Background()
		Expect(driver.Put(ctx, testutils.NewTestTurn("t1", "user-1", "Any flats?", "Two listings match.", base))).To(Succeed())
		Expect(driver.Put(ctx, testutils.NewTestTurn("t2", "user-2", "Parking?", "Yes.", base.Add(time.Minute)))).To(Succeed())
		Expect(driver.Put(ctx, testutils.NewFailedTestTurn("t3", "user-1", fiber.StatusTooManyRequests, base.Add(2*time.Minute)))).To(Succeed())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp := get(server, "/ping")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[string](resp)).To(Equal("pong"))
		})
	})

	Describe("GET /turns", func() {
		It("returns turns newest first, capped by the server limit", func() {
			resp := get(server, "/turns?limit=10")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[api.TurnsResponse](resp)
			Expect(out.Count).To(Equal(2))
			Expect(out.Turns[0].ID).To(Equal("t3"))
			Expect(out.Turns[1].ID).To(Equal("t2"))
		})

		It("filters by subject", func() {
			out := decode[api.TurnsResponse](get(server, "/turns?subject=user-2"))
			Expect(out.Count).To(Equal(1))
			Expect(out.Turns[0].Response).To(Equal("Yes."))
			Expect(out.Turns[0].Messages).To(Equal([]llm.Message{llm.NewTextMessage(llm.RoleUser, "Parking?")}))
		})

		It("returns an empty list rather than null", func() {
			resp := get(server, "/turns?subject=nobody")
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring(`"turns":[]`))
		})

		DescribeTable("rejects bad limits",
			func(limit string) {
				resp := get(server, "/turns?limit="+limit)
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
				Expect(decode[llm.ErrorResponse](resp).Error).To(Equal("limit must be a positive integer"))
			},
			Entry("zero", "0"),
			Entry("negative", "-3"),
			Entry("non-numeric", "ten"),
		)
	})

	Describe("GET /turns/:id", func() {
		It("returns the stored turn", func() {
			resp := get(server, "/turns/t1")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			turn := decode[storage.Turn](resp)
			Expect(turn.Subject).To(Equal("user-1"))
			Expect(turn.Response).To(Equal("Two listings match."))
			Expect(turn.Complete).To(BeTrue())
		})

		It("returns 404 for unknown turns", func() {
			resp := get(server, "/turns/missing")
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			Expect(decode[llm.ErrorResponse](resp).Error).To(Equal("turn not found"))
		})
	})

	Describe("GET /stats", func() {
		It("aggregates the stored turns", func() {
			stats := decode[storage.Stats](get(server, "/stats"))
			Expect(stats.Turns).To(Equal(3))
			Expect(stats.Complete).To(Equal(2))
			Expect(stats.Failed).To(Equal(1))
			Expect(stats.Subjects).To(Equal(2))
			Expect(stats.LastTurnAt).NotTo(BeNil())
			Expect(stats.LastTurnAt.Equal(base.Add(2 * time.Minute))).To(BeTrue())
		})
	})

	Context("when the store fails", func() {
		BeforeEach(func() {
			server = api.NewServer(api.Config{}, brokenDriver{}, zap.NewNop())
		})

		It("returns 500 from every read", func() {
			Expect(get(server, "/turns").StatusCode).To(Equal(fiber.StatusInternalServerError))
			Expect(get(server, "/turns/t1").StatusCode).To(Equal(fiber.StatusInternalServerError))
			Expect(get(server, "/stats").StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})
})
