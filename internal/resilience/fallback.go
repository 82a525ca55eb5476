package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hokomura/kousei/pkg/provider/llm"
)

// ErrAllFailed is returned by [LLMFallback.Correct] when no backend produced
// a result: every backend either failed or had an open breaker.
var ErrAllFailed = errors.New("resilience: all correction backends failed")

// FallbackConfig configures the breaker created for each backend in an
// [LLMFallback]. The Name field is set per backend and may be left empty.
type FallbackConfig struct {
	Breaker BreakerConfig
}

// backend pairs a correction client with its dedicated breaker.
type backend struct {
	name    string
	client  llm.Client
	breaker *Breaker
}

// LLMFallback implements [llm.Client] with automatic failover across several
// correction backends. Backends are tried in registration order, primary
// first; a backend whose breaker is open is skipped without a call.
//
// Correct is safe for concurrent use. AddFallback is not; register all
// backends before the first call.
type LLMFallback struct {
	backends []backend
	cfg      FallbackConfig
}

var _ llm.Client = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Client, primaryName string, cfg FallbackConfig) *LLMFallback {
	f := &LLMFallback{cfg: cfg}
	f.add(primaryName, primary)
	return f
}

// AddFallback registers an additional backend, tried after all previously
// registered ones.
func (f *LLMFallback) AddFallback(name string, client llm.Client) {
	f.add(name, client)
}

func (f *LLMFallback) add(name string, client llm.Client) {
	bc := f.cfg.Breaker
	bc.Name = name
	f.backends = append(f.backends, backend{
		name:    name,
		client:  client,
		breaker: NewBreaker(bc),
	})
}

// Correct sends text to the first healthy backend and returns its result.
// A failing backend feeds its breaker and the next backend is tried; when
// every backend fails or is suspended the last error is wrapped in
// [ErrAllFailed].
func (f *LLMFallback) Correct(ctx context.Context, text string) (*llm.Result, error) {
	var lastErr error
	for i := range f.backends {
		be := &f.backends[i]
		if !be.breaker.Allow() {
			slog.Debug("correction backend skipped, breaker open", "backend", be.name)
			continue
		}

		result, err := be.client.Correct(ctx, text)
		if err == nil {
			be.breaker.Success()
			return result, nil
		}
		be.breaker.Failure()
		lastErr = err
		slog.Warn("correction backend failed, trying next",
			"backend", be.name, "error", err)
	}

	if lastErr == nil {
		return nil, fmt.Errorf("%w: every breaker open", ErrAllFailed)
	}
	return nil, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
