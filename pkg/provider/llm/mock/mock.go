// Package mock provides a test double for the llm.Client interface.
package mock

import (
	"context"
	"sync"

	"github.com/hokomura/kousei/pkg/provider/llm"
)

// CorrectCall records a single invocation of [Client.Correct].
type CorrectCall struct {
	Ctx  context.Context
	Text string
}

// Client is a configurable mock implementation of [llm.Client]. The zero
// value returns the input text unchanged with zero usage. Set Result or Err
// to control behaviour, or CorrectFunc for per-call logic. Safe for
// concurrent use.
type Client struct {
	mu sync.Mutex

	// Result is returned from Correct when CorrectFunc is nil. When both
	// are nil, Correct echoes the input text.
	Result *llm.Result

	// Err, when non-nil, is returned from Correct instead of a result.
	Err error

	// CorrectFunc, when non-nil, takes precedence over Result and Err.
	CorrectFunc func(ctx context.Context, text string) (*llm.Result, error)

	// CorrectCalls records every invocation in order.
	CorrectCalls []CorrectCall
}

// Compile-time interface assertion.
var _ llm.Client = (*Client)(nil)

// Correct implements [llm.Client].
func (c *Client) Correct(ctx context.Context, text string) (*llm.Result, error) {
	c.mu.Lock()
	c.CorrectCalls = append(c.CorrectCalls, CorrectCall{Ctx: ctx, Text: text})
	fn := c.CorrectFunc
	result := c.Result
	err := c.Err
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	if result != nil {
		cp := *result
		return &cp, nil
	}
	return &llm.Result{Text: text}, nil
}

// Calls returns a copy of the recorded invocations.
func (c *Client) Calls() []CorrectCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CorrectCall, len(c.CorrectCalls))
	copy(out, c.CorrectCalls)
	return out
}

// Reset clears all recorded calls and configured behaviour.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Result = nil
	c.Err = nil
	c.CorrectFunc = nil
	c.CorrectCalls = nil
}
