// Package anyllm provides a universal correction client backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	c, err := anyllm.New("ollama", "qwen2.5:7b", anyllm.WithBaseURL("http://localhost:11434"))
//	result, err := c.Correct(ctx, segmentText)
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/hokomura/kousei/pkg/provider/llm"
)

// Client implements [llm.Client] by wrapping github.com/mozilla-ai/any-llm-go.
type Client struct {
	backend      anyllmlib.Provider
	providerName string
	model        string
	temperature  float64
	maxTokens    int
}

// Compile-time interface assertion.
var _ llm.Client = (*Client)(nil)

// config holds optional construction parameters.
type config struct {
	temperature float64
	maxTokens   int
	libOpts     []anyllmlib.Option
}

// Option is a functional option for [New].
type Option func(*config)

// WithTemperature overrides [llm.DefaultTemperature] for correction calls.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithMaxTokens overrides [llm.DefaultMaxTokens] for correction calls.
func WithMaxTokens(n int) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// WithAPIKey sets the backend API key. When absent, the backend falls back to
// its provider-specific environment variable (OPENAI_API_KEY, etc.).
func WithAPIKey(key string) Option {
	return func(c *config) {
		c.libOpts = append(c.libOpts, anyllmlib.WithAPIKey(key))
	}
}

// WithBaseURL overrides the backend's default API endpoint. Required for
// local servers such as Ollama on a non-default address.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.libOpts = append(c.libOpts, anyllmlib.WithBaseURL(url))
	}
}

// New creates a correction client backed by the given LLM provider.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile".
//
// model is the specific model to use (e.g., "gpt-4o-mini", "qwen2.5:7b").
func New(providerName, model string, opts ...Option) (*Client, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	cfg := &config{
		temperature: llm.DefaultTemperature,
		maxTokens:   llm.DefaultMaxTokens,
	}
	for _, o := range opts {
		o(cfg)
	}

	backend, err := createBackend(providerName, cfg.libOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Client{
		backend:      backend,
		providerName: strings.ToLower(providerName),
		model:        model,
		temperature:  cfg.temperature,
		maxTokens:    cfg.maxTokens,
	}, nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Correct implements [llm.Client].
func (c *Client) Correct(ctx context.Context, text string) (*llm.Result, error) {
	temperature := c.temperature
	maxTokens := c.maxTokens

	params := anyllmlib.CompletionParams{
		Model: c.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: llm.SystemPrompt},
			{Role: anyllmlib.RoleUser, Content: llm.UserPrompt(text)},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	resp, err := c.backend.Completion(ctx, params)
	if err != nil {
		return nil, &llm.RemoteError{Provider: c.name(), Op: "completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &llm.RemoteError{Provider: c.name(), Op: "parse", Err: fmt.Errorf("empty choices in response")}
	}

	corrected := strings.TrimSpace(resp.Choices[0].Message.ContentString())
	if corrected == "" {
		return nil, &llm.RemoteError{Provider: c.name(), Op: "parse", Err: fmt.Errorf("empty completion text")}
	}

	result := &llm.Result{Text: corrected}
	if resp.Usage != nil {
		result.Usage = llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return result, nil
}

// name returns the provider label used in errors and logs.
func (c *Client) name() string {
	return "anyllm/" + c.providerName
}
