// Package relayclient is the client side HTTP transport to the chat relay.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// DefaultPath is the relay route used when Config.Path is empty.
const DefaultPath = "/functions/v1/chat"

// ErrMissingBody is returned when the relay accepts a request but sends no body.
var ErrMissingBody = errors.New("relay response has no body")

// StatusError is returned for any non-2xx relay response.
type StatusError struct {
	Code int

	// Message is the relay's {"error": ...} text, or the raw body when it is
	// not JSON.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned status %d", e.Code)
	}
	return fmt.Sprintf("relay returned status %d: %s", e.Code, e.Message)
}

// Config is the relay client configuration.
type Config struct {
	// Target is the relay base URL, e.g. "http://localhost:8080".
	Target string

	// Path is the relay route. Defaults to DefaultPath.
	Path string

	// PublishableKey is sent as the "apikey" header when set.
	PublishableKey string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client streams assistant replies from the relay.
type Client struct {
	url            string
	publishableKey string
	httpClient     *http.Client
}

// New creates a new relay Client.
func New(config Config) *Client {
	path := config.Path
	if path == "" {
		path = DefaultPath
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// Streams are bounded by the caller's context. A client-wide
			// timeout would cut long replies off mid-stream.
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: 2 * time.Minute,
			},
		}
	}

	return &Client{
		url:            strings.TrimRight(config.Target, "/") + path,
		publishableKey: config.PublishableKey,
		httpClient:     httpClient,
	}
}

// URL returns the relay endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Stream posts messages to the relay and returns the streamed response body.
// The caller must close it. Cancelling ctx aborts the read.
func (c *Client) Stream(ctx context.Context, credential string, messages []llm.Message) (io.ReadCloser, error) {
	body, err := json.Marshal(llm.RelayRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	if c.publishableKey != "" {
		req.Header.Set("apikey", c.publishableKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to relay: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrMissingBody
	}
	return resp.Body, nil
}

func statusError(resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var body llm.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return &StatusError{Code: resp.StatusCode, Message: body.Error}
	}
	return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}
