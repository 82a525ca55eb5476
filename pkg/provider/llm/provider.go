// Package llm defines the Client interface for remote correction model
// backends.
//
// A client wraps an LLM API (e.g. OpenAI, Anthropic, or a local Ollama
// instance) and exposes a single operation: send one transcript segment,
// receive a corrected segment plus token usage. The orchestrator treats the
// client as an external collaborator: it never retries, and any failure is
// absorbed by falling back to the rule-only correction.
//
// Implementations must be safe for concurrent use and must return within a
// bounded time: either by honouring ctx deadlines or via an internal request
// timeout.
package llm

import (
	"context"
	"fmt"
)

// Default inference parameters for correction calls. Low temperature keeps
// the model close to the input text; corrections should be minimal edits,
// not rewrites.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 1000
)

// Usage holds token accounting for one correction call. Counts are in the
// model's native token unit and feed the cost ledger.
type Usage struct {
	// InputTokens is the number of tokens consumed by the prompt.
	InputTokens int

	// OutputTokens is the number of tokens generated in the response.
	OutputTokens int
}

// Result is the outcome of one successful correction call.
type Result struct {
	// Text is the model's corrected segment text, trimmed. It may equal the
	// input when the model found nothing to fix.
	Text string

	// Usage contains token accounting for this call.
	Usage Usage
}

// Client is the abstraction over any remote correction backend.
//
// Implementations must be safe for concurrent use and must fail with a
// [*RemoteError] (not panic) on network, auth, throttling, or
// malformed-response faults so that the orchestrator can apply its fallback.
type Client interface {
	// Correct sends text to the model and returns the corrected version
	// with token usage. At most one outstanding call per segment; the
	// caller never retries.
	Correct(ctx context.Context, text string) (*Result, error)
}

// RemoteError is the typed failure returned by [Client] implementations.
// It wraps the underlying transport or API error.
type RemoteError struct {
	// Provider names the backend, e.g. "openai" or "anyllm/ollama".
	Provider string

	// Op is the failed operation, e.g. "completion" or "parse".
	Op string

	// Err is the underlying error. May be nil for faults with no cause,
	// such as an empty response body.
	Err error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Provider, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
