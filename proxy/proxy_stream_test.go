package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
)

// sseUpstream serves chunks as a flushed event stream, one write per chunk.
func sseUpstream(chunks ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Request-Id", "gw-42")
		flusher, ok := w.(http.Flusher)
		Expect(ok).To(BeTrue())

		for _, chunk := range chunks {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
}

var _ = Describe("SSE streaming relay", func() {
	var (
		p         *Proxy
		driver    *inmemory.Driver
		upstream  *httptest.Server
		publisher *recordingPublisher
	)

	relay := func(chunks ...string) (*http.Response, string) {
		upstream = sseUpstream(chunks...)
		publisher = &recordingPublisher{}
		p, driver = newTestProxy(Config{UpstreamURL: upstream.URL, Publisher: publisher}, nil)

		resp, err := p.server.Test(chatRequest(DefaultPath, testToken, helloBody()), -1)
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		return resp, string(body)
	}

	AfterEach(func() {
		if p != nil {
			p.server.Shutdown()
		}
		if upstream != nil {
			upstream.Close()
		}
	})

	Context("when upstream streams a complete reply", func() {
		chunks := []string{
			"data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hello\"}}]}\n\n",
			": keep-alive\n\n",
			"data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\" world\"}}]}\n\n",
			"data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"!\"},\"finish_reason\":\"stop\"}]}\n\n",
			"data: [DONE]\n\n",
		}

		It("forwards the upstream bytes unchanged", func() {
			resp, body := relay(chunks...)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
			Expect(resp.Header.Get("X-Request-Id")).To(Equal("gw-42"))

			want := ""
			for _, c := range chunks {
				want += c
			}
			Expect(body).To(Equal(want))
		})

		It("stores the reconstructed assistant reply", func() {
			relay(chunks...)

			turns := storedTurns(p, driver)
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Response).To(Equal("Hello world!"))
			Expect(turns[0].Frames).To(Equal(4))
			Expect(turns[0].Complete).To(BeTrue())
			Expect(turns[0].Subject).To(Equal(testSubject))
		})

		It("publishes the stored turn", func() {
			relay(chunks...)
			turns := storedTurns(p, driver)

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].EventType).To(Equal(eventstream.EventTypeTurnRelayed))
			Expect(events[0].Turn.ID).To(Equal(turns[0].ID))
			Expect(events[0].RequestMeta.Path).To(Equal(DefaultPath))
		})
	})

	Context("when a JSON object is split across lines", func() {
		It("forwards verbatim and still reconstructs the reply", func() {
			chunks := []string{
				"data: {\"choices\":[{\"delta\"",
				"\n:{\"content\":\"X\"}}]}\n",
				"data: [DONE]\n",
			}
			_, body := relay(chunks...)
			Expect(body).To(Equal(chunks[0] + chunks[1] + chunks[2]))

			turns := storedTurns(p, driver)
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Response).To(Equal("X"))
			Expect(turns[0].Complete).To(BeTrue())
		})
	})

	Context("when chunks split lines and multi-byte runes", func() {
		It("reconstructs the same reply", func() {
			whole := "data: {\"choices\":[{\"delta\":{\"content\":\"Grüß 日本\"}}]}\n\ndata: [DONE]\n\n"
			relay(whole[:9], whole[9:23], whole[23:47], whole[47:])

			turns := storedTurns(p, driver)
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Response).To(Equal("Grüß 日本"))
		})
	})

	Context("when upstream ends without the sentinel", func() {
		It("keeps the partial reply and marks the turn incomplete", func() {
			relay("data: {\"choices\":[{\"delta\":{\"content\":\"Par\"}}]}\n\n",
				"data: {\"choices\":[{\"delta\":{\"content\":\"tial\"}}]}")

			turns := storedTurns(p, driver)
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Response).To(Equal("Partial"))
			Expect(turns[0].Complete).To(BeFalse())
			Expect(turns[0].Status).To(Equal(http.StatusOK))
		})
	})

	Context("when upstream sends unrelated JSON shapes", func() {
		It("forwards them and ignores them for the reply", func() {
			_, body := relay(
				"data: {\"usage\":{\"prompt_tokens\":3}}\n\n",
				"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n",
				"data: [DONE]\n\n",
			)
			Expect(body).To(ContainSubstring("prompt_tokens"))

			turns := storedTurns(p, driver)
			Expect(turns[0].Response).To(Equal("ok"))
		})
	})
})
