package corrector

import "sync"

// Rates holds the token pricing used to estimate remote spend.
type Rates struct {
	// InputUSDPerMTok is the price in USD per million input tokens.
	InputUSDPerMTok float64

	// OutputUSDPerMTok is the price in USD per million output tokens.
	OutputUSDPerMTok float64
}

// Cost returns the estimated USD cost for the given token counts.
func (r Rates) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*r.InputUSDPerMTok +
		float64(outputTokens)/1e6*r.OutputUSDPerMTok
}

// Report is a snapshot of a correction run's accumulated statistics.
type Report struct {
	Segments           int     `json:"segments"`
	Escalated          int     `json:"escalated"`
	ModelUsed          int     `json:"model_used"`
	AcceptableSegments int     `json:"acceptable_segments"`
	SuccessRate        float64 `json:"success_rate"`
	AverageQuality     float64 `json:"average_quality"`
	InputTokens        int     `json:"input_tokens"`
	OutputTokens       int     `json:"output_tokens"`
	EstimatedCostUSD   float64 `json:"estimated_cost_usd"`
}

// Merge adds the counts of other into r. Average quality and success rate
// are re-derived from the combined counts, so callers must merge full
// reports rather than averaging averages.
func (r *Report) merge(other Report) {
	totalQuality := r.AverageQuality*float64(r.Segments) + other.AverageQuality*float64(other.Segments)
	r.Segments += other.Segments
	r.Escalated += other.Escalated
	r.ModelUsed += other.ModelUsed
	r.AcceptableSegments += other.AcceptableSegments
	r.InputTokens += other.InputTokens
	r.OutputTokens += other.OutputTokens
	r.EstimatedCostUSD += other.EstimatedCostUSD
	r.SuccessRate = 0
	if r.Segments > 0 {
		r.AverageQuality = totalQuality / float64(r.Segments)
		r.SuccessRate = float64(r.AcceptableSegments) / float64(r.Segments)
	}
}

// Ledger accumulates per-run statistics: segment counts, quality, token usage,
// and estimated spend. It also enforces an optional budget cap on escalations.
// Safe for concurrent use.
type Ledger struct {
	rates               Rates
	correctionThreshold float64
	maxCostUSD          float64

	mu           sync.Mutex
	segments     int
	escalated    int
	modelUsed    int
	acceptable   int
	qualitySum   float64
	inputTokens  int
	outputTokens int
	costUSD      float64
}

// NewLedger creates a ledger. correctionThreshold classifies segments as
// acceptable for reporting. maxCostUSD of zero disables the budget cap.
func NewLedger(rates Rates, correctionThreshold, maxCostUSD float64) *Ledger {
	return &Ledger{
		rates:               rates,
		correctionThreshold: correctionThreshold,
		maxCostUSD:          maxCostUSD,
	}
}

// AddSegment records one finished segment.
func (l *Ledger) AddSegment(quality float64, modelUsed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.segments++
	l.qualitySum += quality
	if quality >= l.correctionThreshold {
		l.acceptable++
	}
	if modelUsed {
		l.modelUsed++
	}
}

// AddEscalation records that a segment was sent to the remote model,
// regardless of whether the result was accepted.
func (l *Ledger) AddEscalation() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.escalated++
}

// AddUsage records token consumption from one remote call and returns the
// estimated cost of that call.
func (l *Ledger) AddUsage(inputTokens, outputTokens int) float64 {
	cost := l.rates.Cost(inputTokens, outputTokens)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inputTokens += inputTokens
	l.outputTokens += outputTokens
	l.costUSD += cost
	return cost
}

// BudgetExhausted reports whether the accumulated spend has reached the
// configured cap. Always false when no cap is set.
func (l *Ledger) BudgetExhausted() bool {
	if l.maxCostUSD <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.costUSD >= l.maxCostUSD
}

// Report returns a snapshot of the accumulated statistics.
func (l *Ledger) Report() Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	r := Report{
		Segments:           l.segments,
		Escalated:          l.escalated,
		ModelUsed:          l.modelUsed,
		AcceptableSegments: l.acceptable,
		InputTokens:        l.inputTokens,
		OutputTokens:       l.outputTokens,
		EstimatedCostUSD:   l.costUSD,
	}
	if l.segments > 0 {
		r.AverageQuality = l.qualitySum / float64(l.segments)
		r.SuccessRate = float64(l.acceptable) / float64(l.segments)
	}
	return r
}
