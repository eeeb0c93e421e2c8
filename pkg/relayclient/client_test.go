package relayclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

var _ = Describe("Client", func() {
	var (
		server  *httptest.Server
		handler http.HandlerFunc
		seen    *http.Request
		sent    llm.RelayRequest
	)

	BeforeEach(func() {
		seen = nil
		sent = llm.RelayRequest{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r
			_ = json.NewDecoder(r.Body).Decode(&sent)
			handler(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func() *Client {
		return New(Config{Target: server.URL + "/", PublishableKey: "pk-test"})
	}

	It("posts the transcript with credentials and returns the body", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "data: [DONE]\n")
		}

		msgs := []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")}
		body, err := newClient().Stream(context.Background(), "tok", msgs)
		Expect(err).NotTo(HaveOccurred())
		defer body.Close()

		raw, err := io.ReadAll(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal("data: [DONE]\n"))

		Expect(seen.Method).To(Equal(http.MethodPost))
		Expect(seen.URL.Path).To(Equal(DefaultPath))
		Expect(seen.Header.Get("Authorization")).To(Equal("Bearer tok"))
		Expect(seen.Header.Get("apikey")).To(Equal("pk-test"))
		Expect(seen.Header.Get("Content-Type")).To(Equal("application/json"))
		Expect(sent.Messages).To(Equal(msgs))
	})

	It("returns a StatusError carrying the relay message", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":"Rate limits exceeded, please try again later."}`)
		}

		_, err := newClient().Stream(context.Background(), "tok", nil)

		var se *StatusError
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Code).To(Equal(http.StatusTooManyRequests))
		Expect(se.Message).To(Equal("Rate limits exceeded, please try again later."))
	})

	It("keeps a non-JSON error body verbatim", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "bad gateway\n")
		}

		_, err := newClient().Stream(context.Background(), "tok", nil)
		Expect(err).To(MatchError("relay returned status 502: bad gateway"))
	})

	It("fails on transport errors", func() {
		handler = func(http.ResponseWriter, *http.Request) {}
		c := New(Config{Target: "http://127.0.0.1:1"})

		_, err := c.Stream(context.Background(), "tok", nil)
		Expect(err).To(HaveOccurred())

		var se *StatusError
		Expect(errors.As(err, &se)).To(BeFalse())
	})

	It("honors a custom path", func() {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "data: [DONE]\n")
		}
		c := New(Config{Target: server.URL, Path: "/v1/chat"})
		Expect(c.URL()).To(Equal(server.URL + "/v1/chat"))

		body, err := c.Stream(context.Background(), "", nil)
		Expect(err).NotTo(HaveOccurred())
		_ = body.Close()
		Expect(seen.URL.Path).To(Equal("/v1/chat"))
		Expect(seen.Header.Get("Authorization")).To(BeEmpty())
	})
})
