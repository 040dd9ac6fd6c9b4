package providers

import "context"

// CompletionRequest describes one call to the text-generation capability.
type CompletionRequest struct {
	SystemPrompt string
	UserContent  string
	JSONMode     bool
	Temperature  float64
	MaxTokens    int
}

// CompletionProvider is the text-generation capability. Empty content is
// reported as a malformed-response error, never retried by the provider
// itself; retry policy is the caller's concern.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
