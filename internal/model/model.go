package model

import ctxpkg "github.com/stupiduntilnot/relaybot/internal/context"

// CompletionResponse is the common response model for completion providers.
// Token counters are observational; the relay logs them and nothing more.
type CompletionResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is the completion provider abstraction used by the engine.
type Provider interface {
	ChatCompletion(messages []ctxpkg.Message) (CompletionResponse, error)
}
