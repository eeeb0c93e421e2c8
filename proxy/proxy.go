// Package proxy provides the chat relay: it authenticates the caller, forwards
// the conversation to an OpenAI-compatible upstream and streams the upstream
// event stream back verbatim, enqueuing each relayed turn for async storage.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/identity"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/stream"
	"github.com/papercomputeco/chatrelay/proxy/header"
	"github.com/papercomputeco/chatrelay/proxy/worker"
)

// Error bodies returned to callers.
const (
	ErrorUnauthorized   = "Unauthorized"
	ErrorInvalidBody    = "Invalid request body"
	ErrorNoMessages     = "messages are required"
	ErrorInvalidRole    = "messages may only carry user and assistant roles"
	ErrorRateLimited    = "Rate limits exceeded, please try again later."
	ErrorPaymentNeeded  = "Payment required, please add funds to your workspace."
	ErrorGateway        = "AI gateway error"
	ErrorIdentityFailed = "identity service unavailable"
)

// Proxy is the chat relay server.
// The relay is transparent on the way back: upstream stream bytes reach the
// caller unchanged while a copy is decoded to reconstruct the assistant reply
// for the worker pool.
type Proxy struct {
	config        Config
	driver        storage.Driver
	verifier      identity.Verifier
	workerPool    *worker.Pool
	logger        *zap.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy.
// The driver is injected to handle async persistence of relayed turns and the
// verifier authenticates every caller before the upstream is contacted.
func New(config Config, driver storage.Driver, verifier identity.Verifier, logger *zap.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if verifier == nil {
		return nil, errors.New("identity verifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.applyDefaults()
	config.UpstreamURL = strings.TrimRight(config.UpstreamURL, "/")

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// No compression here: a compressing writer would buffer the event stream.
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.AllowOrigins,
		AllowMethods: strings.Join([]string{fiber.MethodPost, fiber.MethodOptions}, ","),
		AllowHeaders: "authorization, x-client-info, apikey, content-type",
	}))

	wp, err := worker.NewPool(&worker.Config{
		Driver:     driver,
		Publisher:  config.Publisher,
		NumWorkers: config.Workers,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	p := &Proxy{
		config:        config,
		driver:        driver,
		verifier:      verifier,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			Timeout: config.UpstreamTimeout,
		},
	}

	app.Get("/healthz", p.handleHealth)
	app.Post(config.Path, p.handleChat)
	if config.Path != AliasPath {
		app.Post(AliasPath, p.handleChat)
	}

	return p, nil
}

// Run starts the relay server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting relay server",
		zap.String("listen", p.config.ListenAddr),
		zap.String("upstream", p.config.UpstreamURL),
		zap.String("path", p.config.Path),
		zap.String("model", p.config.Model),
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting relay server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", p.config.UpstreamURL),
		zap.String("path", p.config.Path),
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the relay and waits for the worker pool to drain
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

// Stats returns the worker pool counters.
func (p *Proxy) Stats() worker.Stats {
	return p.workerPool.Stats()
}

func (p *Proxy) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleChat authenticates, validates and relays one chat request.
func (p *Proxy) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()
	// Fiber strings are only valid until the handler returns.
	path := strings.Clone(c.Path())

	who, err := p.authenticate(c)
	if err != nil {
		if errors.Is(err, identity.ErrMissingCredential) || errors.Is(err, identity.ErrInvalidCredential) {
			p.logger.Debug("rejected caller", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: ErrorUnauthorized})
		}
		p.logger.Error("identity verification failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: ErrorIdentityFailed})
	}

	var req llm.RelayRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		p.logger.Debug("invalid relay request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: ErrorInvalidBody})
	}
	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: ErrorNoMessages})
	}
	for _, m := range req.Messages {
		if !m.Role.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: ErrorInvalidRole})
		}
	}

	turn := &storage.Turn{
		ID:        uuid.NewString(),
		Subject:   who.Subject,
		Model:     p.config.Model,
		Messages:  llm.CloneMessages(req.Messages),
		CreatedAt: startTime.UTC(),
	}

	body, err := json.Marshal(p.upstreamRequest(req.Messages))
	if err != nil {
		p.logger.Error("failed to encode upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: ErrorGateway})
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but the streaming callback runs
	// asynchronously in a separate goroutine and needs the upstream connection
	// to remain open.
	upstreamURL := p.config.UpstreamURL + upstreamCompletionsPath
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, upstreamURL, bytes.NewReader(body))
	if err != nil {
		p.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: ErrorGateway})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq, p.config.UpstreamAPIKey)

	p.logger.Debug("forwarding chat to upstream",
		zap.String("turn_id", turn.ID),
		zap.String("subject", turn.Subject),
		zap.Int("message_count", len(req.Messages)),
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", zap.Error(err))
		return p.fail(c, path, turn, fiber.StatusInternalServerError, ErrorGateway, startTime)
	}

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
		httpResp.Body.Close()
		p.logger.Error("upstream returned error",
			zap.Int("status", httpResp.StatusCode),
			zap.String("body", string(respBody)),
		)

		switch httpResp.StatusCode {
		case http.StatusTooManyRequests:
			return p.fail(c, path, turn, fiber.StatusTooManyRequests, ErrorRateLimited, startTime)
		case http.StatusPaymentRequired:
			return p.fail(c, path, turn, fiber.StatusPaymentRequired, ErrorPaymentNeeded, startTime)
		default:
			return p.fail(c, path, turn, fiber.StatusInternalServerError, ErrorGateway, startTime)
		}
	}

	if httpResp.Body == nil || httpResp.Body == http.NoBody {
		if httpResp.Body != nil {
			httpResp.Body.Close()
		}
		p.logger.Error("upstream returned no body")
		return p.fail(c, path, turn, fiber.StatusInternalServerError, ErrorGateway, startTime)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	p.headerHandler.SetEventStreamHeaders(c)
	turn.Status = fiber.StatusOK

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter.
	// SetBodyStreamWriter uses an internal PipeConns with a buffered channel
	// (capacity 4) and two bufio.Writers, which means Flush() in the callback
	// only pushes data into the pipe, NOT to the TCP socket. This causes all
	// chunks to buffer in memory before being sent to the client.
	//
	// With io.Pipe, pw.Write blocks until the reader consumes the data, and
	// the reader is fasthttp's writeBodyChunked which flushes to TCP after
	// every chunk. This gives direct backpressure and true per-chunk streaming.
	pr, pw := io.Pipe()
	go p.relayStream(httpResp, pw, turn, path, startTime)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Status(fiber.StatusOK)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// authenticate resolves the caller from the Authorization header.
func (p *Proxy) authenticate(c *fiber.Ctx) (*identity.Identity, error) {
	token, err := identity.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return nil, err
	}
	return p.verifier.Verify(c.UserContext(), token)
}

// upstreamRequest builds the streaming completion request, system prompt first.
func (p *Proxy) upstreamRequest(messages []llm.Message) llm.ChatRequest {
	out := make([]llm.Message, 0, len(messages)+1)
	if p.config.SystemPrompt != "" {
		out = append(out, llm.NewTextMessage(llm.RoleSystem, p.config.SystemPrompt))
	}
	out = append(out, messages...)

	return llm.ChatRequest{
		Model:    p.config.Model,
		Messages: out,
		Stream:   true,
	}
}

// fail answers the caller with a JSON error and records the failed turn.
func (p *Proxy) fail(c *fiber.Ctx, path string, turn *storage.Turn, status int, msg string, startTime time.Time) error {
	turn.Status = status
	turn.Duration = time.Since(startTime)
	p.workerPool.Enqueue(worker.Job{Path: path, Turn: turn})

	return c.Status(status).JSON(llm.ErrorResponse{Error: msg})
}

// relayStream forwards the upstream event stream to the pipe writer while
// decoding the same frames to reconstruct the assistant reply.
func (p *Proxy) relayStream(httpResp *http.Response, pw *io.PipeWriter, turn *storage.Turn, path string, startTime time.Time) {
	// Close the upstream response body once streaming is complete.
	defer httpResp.Body.Close()
	defer pw.Close()

	tr := sse.NewTeeReader(httpResp.Body, pw)
	asm := stream.NewAssembler(nil, p.logger)

	var streamErr error
	for {
		f, err := tr.Next()
		if err != nil {
			streamErr = err
			break
		}
		if f == nil {
			streamErr = asm.Finish()
			break
		}

		// Keep forwarding after the sentinel; the assembler ignores the rest.
		if _, _, err := asm.FeedFrame(*f); err != nil {
			p.logger.Warn("could not assemble relayed frame",
				zap.String("turn_id", turn.ID),
				zap.Error(err),
			)
		}
	}

	if streamErr != nil {
		p.logger.Error("error relaying stream",
			zap.String("turn_id", turn.ID),
			zap.Error(streamErr),
		)
	}

	turn.Response = asm.Text()
	turn.Frames = asm.Frames()
	turn.Complete = asm.Done()
	turn.Duration = time.Since(startTime)

	p.logger.Debug("streaming complete",
		zap.String("turn_id", turn.ID),
		zap.Int("frames", turn.Frames),
		zap.Int("deltas", asm.Deltas()),
		zap.Bool("complete", turn.Complete),
		zap.Duration("duration", turn.Duration),
	)

	p.workerPool.Enqueue(worker.Job{Path: path, Turn: turn})
}
