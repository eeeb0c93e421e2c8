package llm

// ErrorResponse is the JSON error body returned by the relay and the API server.
type ErrorResponse struct {
	Error string `json:"error"`
}
