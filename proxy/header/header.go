// Package header provides header handling for the chat relay.
//
// The relay sits between a chat client and an upstream LLM gateway like so:
//
//	Client <--> Relay <--> Upstream LLM Gateway
//
// and headers are handled accordingly: each leg negotiates compression, hops,
// encoding, etc. independently, and each leg carries its own credentials.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Handler manages headers between relay connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// APIKeyHeader carries the client's publishable key.
const APIKeyHeader = "Apikey"

// forwardRequest is the set of client request headers (client --> relay --> upstream)
// passed on to the upstream gateway. Everything else, credentials included,
// stays on the client leg.
var forwardRequest = map[string]struct{}{
	"Accept-Language": {},
	"User-Agent":      {},
	"X-Request-Id":    {},
}

// skipResponse is the set of upstream response headers (client <-- relay <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// Hop-by-hop headers: fasthttp manages chunked transfer encoding for the
	// client-facing response independently.
	"Transfer-Encoding": {},

	// The relay always reads a decompressed body (Go's http.Transport strips
	// Content-Encoding after auto-decompression). Forwarding a stale
	// Content-Encoding would claim an encoding the body no longer has.
	"Content-Encoding": {},

	// The upstream Content-Length reflects the (possibly compressed) upstream
	// body size, which is not what the client receives.
	"Content-Length": {},

	// Upstream cookies belong to the relay's session with the gateway.
	"Set-Cookie": {},

	// CORS is answered by the relay itself.
	"Access-Control-Allow-Origin":      {},
	"Access-Control-Allow-Headers":     {},
	"Access-Control-Allow-Methods":     {},
	"Access-Control-Allow-Credentials": {},
	"Access-Control-Expose-Headers":    {},
}

// SetUpstreamRequestHeaders prepares the outgoing http.Request: it copies the
// allowed client headers from the Fiber context and then authenticates with
// the server-held upstream key. The client's Authorization and apikey headers
// are never forwarded.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request, apiKey string) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, ok := forwardRequest[k]; ok {
			req.Header.Set(k, string(value))
		}
	})

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// SetClientResponseHeaders copies response headers from the upstream
// http.Response to the Fiber context, filtering headers that the relay should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// SetEventStreamHeaders marks the client response as an event stream.
func (h *Handler) SetEventStreamHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")
}
