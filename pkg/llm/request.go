package llm

// RelayRequest is the body a client sends to the relay: the full transcript,
// newest user turn last.
type RelayRequest struct {
	Messages []Message `json:"messages"`
}

// ChatRequest is the chat completion request the relay sends upstream.
type ChatRequest struct {
	// Model name (e.g., "google/gemini-2.5-flash")
	Model string `json:"model"`

	// Conversation messages, system prompt first when configured
	Messages []Message `json:"messages"`

	// Whether to stream the response. The relay always streams.
	Stream bool `json:"stream"`
}
