package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidRemoteProviders lists the provider names [Validate] recognises for
// remote backends. Unknown names only produce a warning so that third-party
// OpenAI-compatible gateways keep working.
var ValidRemoteProviders = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Policy
	if cfg.Policy.CorrectionThreshold < 0 || cfg.Policy.CorrectionThreshold > 1 {
		errs = append(errs, fmt.Errorf("policy.correction_threshold %.2f is out of range [0, 1]", cfg.Policy.CorrectionThreshold))
	}
	if cfg.Policy.LLMUsageThreshold < 0 || cfg.Policy.LLMUsageThreshold > 1 {
		errs = append(errs, fmt.Errorf("policy.llm_usage_threshold %.2f is out of range [0, 1]", cfg.Policy.LLMUsageThreshold))
	}
	if cfg.Policy.Workers < 1 {
		errs = append(errs, fmt.Errorf("policy.workers %d must be at least 1", cfg.Policy.Workers))
	}

	// Remote
	if cfg.Remote.Enabled {
		if cfg.Remote.Provider == "" {
			errs = append(errs, fmt.Errorf("remote.provider is required when remote.enabled is true"))
		}
		if cfg.Remote.Model == "" {
			errs = append(errs, fmt.Errorf("remote.model is required when remote.enabled is true"))
		}
		for i, fb := range cfg.Remote.Fallbacks {
			prefix := fmt.Sprintf("remote.fallbacks[%d]", i)
			if fb.Provider == "" {
				errs = append(errs, fmt.Errorf("%s.provider is required", prefix))
			}
			if fb.Model == "" {
				errs = append(errs, fmt.Errorf("%s.model is required", prefix))
			}
			validateProviderName(prefix+".provider", fb.Provider)
		}
	}
	validateProviderName("remote.provider", cfg.Remote.Provider)
	if cfg.Remote.Temperature < 0 || cfg.Remote.Temperature > 2 {
		errs = append(errs, fmt.Errorf("remote.temperature %.2f is out of range [0, 2]", cfg.Remote.Temperature))
	}
	if cfg.Remote.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("remote.max_tokens %d must be positive", cfg.Remote.MaxTokens))
	}
	if cfg.Remote.RequestTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("remote.request_timeout_seconds %d must be positive", cfg.Remote.RequestTimeoutSeconds))
	}

	// Cost
	if cfg.Cost.InputUSDPerMTok < 0 {
		errs = append(errs, fmt.Errorf("cost.input_usd_per_mtok %.6f must not be negative", cfg.Cost.InputUSDPerMTok))
	}
	if cfg.Cost.OutputUSDPerMTok < 0 {
		errs = append(errs, fmt.Errorf("cost.output_usd_per_mtok %.6f must not be negative", cfg.Cost.OutputUSDPerMTok))
	}
	if cfg.Cost.MaxUSDPerRun < 0 {
		errs = append(errs, fmt.Errorf("cost.max_usd_per_run %.6f must not be negative", cfg.Cost.MaxUSDPerRun))
	}

	// Custom terms
	for from, to := range cfg.CustomTerms {
		if from == "" {
			errs = append(errs, fmt.Errorf("custom_terms contains an empty key"))
			continue
		}
		if to == "" {
			errs = append(errs, fmt.Errorf("custom_terms[%q] has an empty replacement", from))
		}
		if from == to {
			slog.Warn("custom term maps to itself and will be ignored", "term", from)
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidRemoteProviders].
func validateProviderName(field, name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidRemoteProviders, name) {
		return
	}
	slog.Warn("unknown remote provider name; may be a typo or third-party gateway",
		"field", field,
		"name", name,
		"known", ValidRemoteProviders,
	)
}
