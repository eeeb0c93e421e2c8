package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/identity"
)

var _ = Describe("Verifier", func() {
	var (
		server *httptest.Server
		v      *Verifier
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != UserPath || r.Header.Get("apikey") != "service-key" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			switch r.Header.Get("Authorization") {
			case "Bearer good":
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"id":"user-1","email":"a@example.com","role":"authenticated"}`)
			case "Bearer broken":
				w.WriteHeader(http.StatusServiceUnavailable)
			default:
				w.WriteHeader(http.StatusUnauthorized)
			}
		}))
		v = New(Config{URL: server.URL + "/", ServiceKey: "service-key"})
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns the identity for an accepted token", func() {
		id, err := v.Verify(context.Background(), "good")
		Expect(err).NotTo(HaveOccurred())
		Expect(id.Subject).To(Equal("user-1"))
		Expect(id.Email).To(Equal("a@example.com"))
	})

	It("rejects an unknown token", func() {
		_, err := v.Verify(context.Background(), "nope")
		Expect(err).To(MatchError(identity.ErrInvalidCredential))
	})

	It("rejects an empty token without calling the service", func() {
		_, err := v.Verify(context.Background(), "")
		Expect(err).To(MatchError(identity.ErrMissingCredential))
	})

	It("reports service failures as infrastructure errors", func() {
		_, err := v.Verify(context.Background(), "broken")
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(identity.ErrInvalidCredential))
	})
})
