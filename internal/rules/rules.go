// Package rules implements the deterministic rule-based rewriter for lecture
// transcript text.
//
// Correction happens in a fixed sequence of category passes: technical terms,
// sentence-ending fixes, repetition removal, filler removal, naturalness
// rewrites, punctuation insertion, and a terminal whitespace cleanup. Each
// pass is an ordered table of pattern→replacement rules; the pass order is an
// invariant because filler removal can create adjacent-clause boundaries that
// the punctuation pass must see.
//
// The rewriter is pure: no side effects, no network access, identical output
// for identical input.
package rules

import (
	"regexp"
	"sort"
	"strings"
)

// Correction category labels recorded per segment when a pass fires.
const (
	CategoryTechnicalTerm = "technical-term"
	CategoryEndingFix     = "ending-fix"
	CategoryRepetition    = "repetition-removal"
	CategoryFiller        = "filler-removal"
	CategoryNaturalness   = "naturalness"
	CategoryPunctuation   = "punctuation"
)

// Rule is one pattern-substitution entry within a pass.
//
// Exactly one of Replacement or Transform is used. Replacement is a plain
// regexp expansion string ($1 etc.). Transform covers rewrites that regular
// Go regexp replacement cannot express, such as backreference-style
// duplicate collapsing; it returns the rewritten text and whether it changed
// anything.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
	Transform   func(string) (string, bool)
}

// apply runs the rule against text and reports whether it fired.
func (r Rule) apply(text string) (string, bool) {
	if r.Transform != nil {
		return r.Transform(text)
	}
	if !r.Pattern.MatchString(text) {
		return text, false
	}
	return r.Pattern.ReplaceAllString(text, r.Replacement), true
}

// Pass is an ordered set of rules sharing one correction category.
// The pass fires (and its category is recorded once) when at least one of
// its rules matched.
type Pass struct {
	Category string
	Rules    []Rule
}

// Option configures a [Rewriter].
type Option func(*Rewriter)

// WithoutTechnicalTerms removes the technical-term pass. Used when the
// correction policy disables technical term preservation.
func WithoutTechnicalTerms() Option {
	return func(rw *Rewriter) {
		rw.skipTech = true
	}
}

// WithoutPunctuation removes the punctuation insertion pass.
func WithoutPunctuation() Option {
	return func(rw *Rewriter) {
		rw.skipPunctuation = true
	}
}

// WithAggressiveFillers widens the filler pass to also strip hedge words
// (ちょっと, まあ, えっと) that conservative mode leaves untouched.
func WithAggressiveFillers() Option {
	return func(rw *Rewriter) {
		rw.aggressiveFillers = true
	}
}

// WithCustomTerms appends user-supplied term corrections to the end of the
// technical-term pass. Keys are matched literally; a key that is a prefix of
// its own replacement (e.g. 松尾研 → 松尾研究室) is guarded so already-correct
// text is left alone.
func WithCustomTerms(terms map[string]string) Option {
	return func(rw *Rewriter) {
		for _, from := range sortedKeys(terms) {
			to := terms[from]
			if from == to {
				continue
			}
			rw.customTerms = append(rw.customTerms, termRule(from, to))
		}
	}
}

// Rewriter applies the full category pass pipeline to transcript text.
// It is immutable after construction and safe for concurrent use.
type Rewriter struct {
	skipTech          bool
	skipPunctuation   bool
	aggressiveFillers bool
	customTerms       []Rule

	passes []Pass
}

// NewRewriter builds a [Rewriter] with the built-in Japanese lecture rule
// tables, adjusted by the supplied options.
func NewRewriter(opts ...Option) *Rewriter {
	rw := &Rewriter{}
	for _, o := range opts {
		o(rw)
	}

	if !rw.skipTech {
		tech := Pass{Category: CategoryTechnicalTerm}
		tech.Rules = append(tech.Rules, technicalTermRules...)
		tech.Rules = append(tech.Rules, rw.customTerms...)
		rw.passes = append(rw.passes, tech)
	}

	rw.passes = append(rw.passes,
		Pass{Category: CategoryEndingFix, Rules: endingFixRules},
		Pass{Category: CategoryRepetition, Rules: repetitionRules},
	)

	filler := Pass{Category: CategoryFiller}
	filler.Rules = append(filler.Rules, fillerRules...)
	if rw.aggressiveFillers {
		filler.Rules = append(filler.Rules, aggressiveFillerRules...)
	}
	rw.passes = append(rw.passes, filler)

	rw.passes = append(rw.passes,
		Pass{Category: CategoryNaturalness, Rules: naturalnessRules},
	)
	if !rw.skipPunctuation {
		rw.passes = append(rw.passes,
			Pass{Category: CategoryPunctuation, Rules: punctuationRules},
		)
	}

	return rw
}

// Rewrite runs every configured pass over text in order and returns the
// corrected text plus the ordered list of categories that fired. Empty input
// is returned unchanged with no categories.
func (rw *Rewriter) Rewrite(text string) (string, []string) {
	if text == "" {
		return text, nil
	}

	corrected := text
	var categories []string

	for _, pass := range rw.passes {
		fired := false
		for _, rule := range pass.Rules {
			var changed bool
			corrected, changed = rule.apply(corrected)
			fired = fired || changed
		}
		if fired {
			categories = append(categories, pass.Category)
		}
	}

	return Cleanup(corrected), categories
}

var (
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	prePunctRe    = regexp.MustCompile(`\s+([。、！？])`)
	doublePunctRe = regexp.MustCompile(`。{2,}`)
)

// Cleanup is the terminal whitespace and punctuation-spacing normalisation:
// repeated whitespace collapses to a single space, whitespace before sentence
// punctuation is removed, doubled 。 collapse, and the result is trimmed.
// Cleanup is idempotent: running it on its own output yields no change.
func Cleanup(text string) string {
	out := multiSpaceRe.ReplaceAllString(text, " ")
	out = prePunctRe.ReplaceAllString(out, "$1")
	out = doublePunctRe.ReplaceAllString(out, "。")
	return strings.TrimSpace(out)
}

// sortedKeys returns the map keys in sorted order so that custom term rules
// are applied deterministically regardless of map iteration order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
