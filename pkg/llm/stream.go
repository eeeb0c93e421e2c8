package llm

// StreamChunk is one decoded "data:" payload of an OpenAI-compatible chat
// completion stream. It holds only the path to choices[0].delta.content.
// Fields such as id, model, index or finish_reason are left to the decoder to
// skip, whatever their type.
type StreamChunk struct {
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice is a single choice within a StreamChunk.
type StreamChoice struct {
	Delta *StreamDelta `json:"delta,omitempty"`
}

// StreamDelta carries the incremental content of a choice.
type StreamDelta struct {
	Content *string `json:"content,omitempty"`
}

// DeltaContent returns choices[0].delta.content, or "" when any part of the
// path is missing.
func (c *StreamChunk) DeltaContent() string {
	if c == nil || len(c.Choices) == 0 {
		return ""
	}
	d := c.Choices[0].Delta
	if d == nil || d.Content == nil {
		return ""
	}
	return *d.Content
}

// DoneSentinel is the payload that logically terminates a stream.
const DoneSentinel = "[DONE]"
