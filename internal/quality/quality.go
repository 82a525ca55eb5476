// Package quality maps a segment's correction activity to a bounded quality
// estimate.
//
// The live-pipeline score is a deliberately coarse proxy: it rewards
// correction activity (how many rule categories fired), not linguistic
// correctness. Keeping it behind this package lets the heuristic be replaced
// without touching the orchestrator. The richer before/after analysis used
// for offline reports lives in the evaluate package.
package quality

const (
	// base is the floor assigned to a segment even when no rule fired.
	base = 0.3

	// saturationCategories is the number of fired categories at which the
	// score reaches its cap. Whether this should scale with segment length
	// is an open policy choice; it is kept fixed here.
	saturationCategories = 5

	// EscalationBonus is added to a segment's score when the remote model's
	// output is accepted.
	EscalationBonus = 0.3
)

// Score returns the heuristic quality estimate for a segment whose rewrite
// fired the given categories. The result is always in [0, 1].
func Score(categories []string) float64 {
	return clamp(float64(len(categories))/saturationCategories + base)
}

// Boost raises q by [EscalationBonus], capped at 1. Applied when a remote
// model correction is accepted.
func Boost(q float64) float64 {
	return clamp(q + EscalationBonus)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
