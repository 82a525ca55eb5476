// Package config provides the configuration schema, loader, and file watcher
// for the kousei transcript correction system.
package config

// LogLevel controls log verbosity for the kousei commands and server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for kousei.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Policy  PolicyConfig  `yaml:"policy"`
	Remote  RemoteConfig  `yaml:"remote"`
	Cost    CostConfig    `yaml:"cost"`
	History HistoryConfig `yaml:"history"`

	// CustomTerms maps misrecognised forms to their correct spelling. Entries
	// are applied as additional technical-term rules before the built-in ones.
	CustomTerms map[string]string `yaml:"custom_terms"`
}

// ServerConfig holds network and logging settings for the kousei web server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// PolicyConfig tunes the correction pipeline's rule passes and the decision
// of when a segment is escalated to the remote model.
type PolicyConfig struct {
	// CorrectionThreshold is the minimum quality score for a segment to count
	// as acceptable in run statistics. Range [0, 1].
	CorrectionThreshold float64 `yaml:"correction_threshold"`

	// LLMUsageThreshold is the quality score below which a segment is
	// escalated to the remote model. Range [0, 1]. Segments at or above the
	// threshold keep their rule-based correction.
	LLMUsageThreshold float64 `yaml:"llm_usage_threshold"`

	// PreserveTechnicalTerms enables the technical-term replacement pass.
	PreserveTechnicalTerms bool `yaml:"preserve_technical_terms"`

	// AggressiveFillerRemoval additionally strips hesitation markers that the
	// conservative pass keeps (えっと, ちょっと, まあ).
	AggressiveFillerRemoval bool `yaml:"aggressive_filler_removal"`

	// SmartPunctuation enables sentence-final punctuation insertion.
	SmartPunctuation bool `yaml:"smart_punctuation"`

	// Workers bounds how many segments are corrected concurrently.
	Workers int `yaml:"workers"`
}

// RemoteBackend identifies one LLM endpoint usable for escalation.
type RemoteBackend struct {
	// Provider selects the backend implementation. "openai" uses the official
	// SDK; everything else is routed through any-llm-go (anthropic, gemini,
	// ollama, deepseek, mistral, groq, llamacpp, llamafile).
	Provider string `yaml:"provider"`

	// Model is the model identifier within the provider (e.g., "gpt-4o-mini").
	Model string `yaml:"model"`

	// APIKey is the authentication key if the provider requires one. Leave
	// empty to fall back to the provider's environment variable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`
}

// RemoteConfig configures LLM escalation for low-quality segments.
type RemoteConfig struct {
	// Enabled turns escalation on. When false the pipeline is rule-only and
	// no network calls are made.
	Enabled bool `yaml:"enabled"`

	RemoteBackend `yaml:",inline"`

	// Temperature is the sampling temperature for correction calls.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens bounds the completion length per segment.
	MaxTokens int `yaml:"max_tokens"`

	// RequestTimeoutSeconds is the per-request timeout for remote calls.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	// Fallbacks lists additional backends tried in order when the primary
	// fails or its circuit breaker is open.
	Fallbacks []RemoteBackend `yaml:"fallbacks"`
}

// CostConfig holds token pricing used by the cost ledger.
type CostConfig struct {
	// InputUSDPerMTok is the price in USD per million input tokens.
	InputUSDPerMTok float64 `yaml:"input_usd_per_mtok"`

	// OutputUSDPerMTok is the price in USD per million output tokens.
	OutputUSDPerMTok float64 `yaml:"output_usd_per_mtok"`

	// MaxUSDPerRun stops further escalations once the estimated spend for a
	// run reaches this amount. Zero means no budget cap.
	MaxUSDPerRun float64 `yaml:"max_usd_per_run"`
}

// HistoryConfig configures the SQLite run-history store.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history recording.
	Path string `yaml:"path"`
}

// Default returns a [Config] populated with the defaults used when a field is
// absent from the YAML file. [LoadFromReader] decodes on top of this value so
// that booleans that default to true survive an empty config.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Policy: PolicyConfig{
			CorrectionThreshold:     0.7,
			LLMUsageThreshold:       0.5,
			PreserveTechnicalTerms:  true,
			AggressiveFillerRemoval: false,
			SmartPunctuation:        true,
			Workers:                 4,
		},
		Remote: RemoteConfig{
			Enabled:               false,
			Temperature:           0.1,
			MaxTokens:             1000,
			RequestTimeoutSeconds: 30,
		},
		Cost: CostConfig{
			InputUSDPerMTok:  0.035,
			OutputUSDPerMTok: 0.14,
		},
	}
}
