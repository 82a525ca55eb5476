// Package corrector orchestrates the transcript correction pipeline: rule
// rewriting, quality scoring, and selective escalation of low-quality
// segments to a remote model, with per-run cost accounting.
package corrector

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hokomura/kousei/internal/observe"
	"github.com/hokomura/kousei/internal/quality"
	"github.com/hokomura/kousei/internal/rules"
	"github.com/hokomura/kousei/internal/segment"
	"github.com/hokomura/kousei/pkg/provider/llm"
)

// Policy tunes the rule passes and the escalation decision.
type Policy struct {
	// CorrectionThreshold classifies segments as acceptable in run reports.
	CorrectionThreshold float64

	// LLMUsageThreshold is the quality score below which a segment is sent
	// to the remote model.
	LLMUsageThreshold float64

	// PreserveTechnicalTerms enables the technical-term replacement pass.
	PreserveTechnicalTerms bool

	// AggressiveFillerRemoval additionally strips hesitation markers that the
	// conservative pass keeps.
	AggressiveFillerRemoval bool

	// SmartPunctuation enables sentence-final punctuation insertion.
	SmartPunctuation bool
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		CorrectionThreshold:    0.7,
		LLMUsageThreshold:      0.5,
		PreserveTechnicalTerms: true,
		SmartPunctuation:       true,
	}
}

// Orchestrator corrects transcript segments. Rule rewriting always runs;
// segments whose quality stays below the usage threshold are escalated to the
// remote client when one is configured. Remote failures never fail a segment;
// the rule-based correction is kept instead.
type Orchestrator struct {
	rewriter *rules.Rewriter
	client   llm.Client
	policy   Policy
	ledger   *Ledger
	metrics  *observe.Metrics
	workers  int
	source   string
}

// Option is a functional option for [New].
type Option func(*Orchestrator)

// WithClient sets the remote correction client used for escalation. Without
// one, the orchestrator is rule-only.
func WithClient(c llm.Client) Option {
	return func(o *Orchestrator) {
		o.client = c
	}
}

// WithWorkers bounds how many segments are corrected concurrently. Default 4.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithSource labels recorded metrics with the processing source
// ("file", "batch", "web"). Default "file".
func WithSource(s string) Option {
	return func(o *Orchestrator) {
		if s != "" {
			o.source = s
		}
	}
}

// New creates an orchestrator with the given policy, pricing, custom term
// table, and options. maxCostUSD of zero disables the escalation budget cap.
func New(policy Policy, rates Rates, maxCostUSD float64, customTerms map[string]string, opts ...Option) *Orchestrator {
	var ruleOpts []rules.Option
	if !policy.PreserveTechnicalTerms {
		ruleOpts = append(ruleOpts, rules.WithoutTechnicalTerms())
	}
	if policy.AggressiveFillerRemoval {
		ruleOpts = append(ruleOpts, rules.WithAggressiveFillers())
	}
	if !policy.SmartPunctuation {
		ruleOpts = append(ruleOpts, rules.WithoutPunctuation())
	}
	if len(customTerms) > 0 {
		ruleOpts = append(ruleOpts, rules.WithCustomTerms(customTerms))
	}

	o := &Orchestrator{
		rewriter: rules.NewRewriter(ruleOpts...),
		policy:   policy,
		ledger:   NewLedger(rates, policy.CorrectionThreshold, maxCostUSD),
		workers:  4,
		source:   "file",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Ledger returns the orchestrator's run ledger.
func (o *Orchestrator) Ledger() *Ledger {
	return o.ledger
}

// Process corrects a single segment in place. The segment's CorrectedText,
// AppliedCorrections, Quality, and ModelUsed fields are updated.
func (o *Orchestrator) Process(ctx context.Context, seg *segment.Segment) {
	start := time.Now()

	corrected, categories := o.rewriter.Rewrite(seg.OriginalText)
	seg.CorrectedText = corrected
	seg.AppliedCorrections = categories
	seg.Quality = quality.Score(categories)
	seg.ModelUsed = false

	if o.client != nil && seg.Quality < o.policy.LLMUsageThreshold {
		o.escalate(ctx, seg)
	}

	o.ledger.AddSegment(seg.Quality, seg.ModelUsed)
	o.metrics.RecordSegment(ctx, o.source, time.Since(start).Seconds())
}

// escalate sends the segment's rule-corrected text to the remote model and
// accepts the result only when it differs from the rule output.
func (o *Orchestrator) escalate(ctx context.Context, seg *segment.Segment) {
	if o.ledger.BudgetExhausted() {
		slog.Debug("escalation skipped, budget exhausted", "segment", seg.ID)
		o.metrics.RecordEscalation(ctx, "skipped")
		return
	}

	o.ledger.AddEscalation()

	remoteStart := time.Now()
	result, err := o.client.Correct(ctx, seg.CorrectedText)
	o.metrics.RemoteDuration.Record(ctx, time.Since(remoteStart).Seconds())

	if err != nil {
		var remoteErr *llm.RemoteError
		provider := "unknown"
		if errors.As(err, &remoteErr) {
			provider = remoteErr.Provider
		}
		slog.Warn("remote correction failed, keeping rule output",
			"segment", seg.ID,
			"provider", provider,
			"error", err)
		o.metrics.RecordRemoteError(ctx, provider)
		o.metrics.RecordEscalation(ctx, "failed")
		return
	}

	cost := o.ledger.AddUsage(result.Usage.InputTokens, result.Usage.OutputTokens)
	o.metrics.RecordUsage(ctx, result.Usage.InputTokens, result.Usage.OutputTokens, cost)

	text := strings.TrimSpace(result.Text)
	if text == "" || text == seg.CorrectedText {
		o.metrics.RecordEscalation(ctx, "unchanged")
		return
	}

	seg.CorrectedText = text
	seg.AppliedCorrections = append(seg.AppliedCorrections, "LLM")
	seg.ModelUsed = true
	seg.Quality = quality.Boost(seg.Quality)
	o.metrics.RecordEscalation(ctx, "accepted")
}

// ProcessSegments corrects all segments in place, at most workers at a time.
// Segment order is preserved. Returns the first context error encountered.
func (o *Orchestrator) ProcessSegments(ctx context.Context, segments []segment.Segment) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i := range segments {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.Process(ctx, &segments[i])
			return nil
		})
	}
	return g.Wait()
}

// CorrectTranscript splits a timestamped transcript, corrects every segment,
// and renders the result in the same timestamped format.
func (o *Orchestrator) CorrectTranscript(ctx context.Context, text string) (string, []segment.Segment, error) {
	segments, err := segment.Split(text)
	if err != nil {
		return "", nil, err
	}
	if err := o.ProcessSegments(ctx, segments); err != nil {
		return "", nil, err
	}
	return segment.Render(segments), segments, nil
}
