package config

import "maps"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PolicyChanged covers threshold and pass switches. A changed policy
	// requires rebuilding the rule rewriter.
	PolicyChanged bool

	// CustomTermsChanged is set when the custom term table differs. Like a
	// policy change, this requires a rewriter rebuild.
	CustomTermsChanged bool

	// CostChanged covers token pricing and the per-run budget.
	CostChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.PolicyChanged || d.CustomTermsChanged || d.CostChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; server address
// and remote backend changes still require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Policy != new.Policy {
		d.PolicyChanged = true
	}
	if !maps.Equal(old.CustomTerms, new.CustomTerms) {
		d.CustomTermsChanged = true
	}
	if old.Cost != new.Cost {
		d.CostChanged = true
	}

	return d
}
