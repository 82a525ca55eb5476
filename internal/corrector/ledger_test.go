package corrector_test

import (
	"math"
	"sync"
	"testing"

	"github.com/hokomura/kousei/internal/corrector"
)

func TestRatesCost(t *testing.T) {
	t.Parallel()
	r := corrector.Rates{InputUSDPerMTok: 0.035, OutputUSDPerMTok: 0.14}

	got := r.Cost(1000, 1000)
	want := 0.000035 + 0.00014
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Cost(1000, 1000) = %v, want %v", got, want)
	}
	if r.Cost(0, 0) != 0 {
		t.Error("zero tokens should cost nothing")
	}
}

func TestLedgerReport(t *testing.T) {
	t.Parallel()
	l := corrector.NewLedger(testRates, 0.7, 0)

	l.AddSegment(0.9, false)
	l.AddSegment(0.5, false)
	l.AddEscalation()
	l.AddSegment(0.8, true)
	l.AddUsage(1000, 500)

	r := l.Report()
	if r.Segments != 3 {
		t.Errorf("Segments = %d, want 3", r.Segments)
	}
	if r.AcceptableSegments != 2 {
		t.Errorf("AcceptableSegments = %d, want 2", r.AcceptableSegments)
	}
	if r.Escalated != 1 || r.ModelUsed != 1 {
		t.Errorf("Escalated/ModelUsed = %d/%d, want 1/1", r.Escalated, r.ModelUsed)
	}
	wantAvg := (0.9 + 0.5 + 0.8) / 3
	if math.Abs(r.AverageQuality-wantAvg) > 1e-9 {
		t.Errorf("AverageQuality = %v, want %v", r.AverageQuality, wantAvg)
	}
	if r.InputTokens != 1000 || r.OutputTokens != 500 {
		t.Errorf("tokens = %d/%d, want 1000/500", r.InputTokens, r.OutputTokens)
	}
	wantRate := 2.0 / 3.0
	if math.Abs(r.SuccessRate-wantRate) > 1e-9 {
		t.Errorf("SuccessRate = %v, want %v", r.SuccessRate, wantRate)
	}
}

func TestLedgerSuccessRate(t *testing.T) {
	t.Parallel()

	empty := corrector.NewLedger(testRates, 0.7, 0)
	if got := empty.Report().SuccessRate; got != 0 {
		t.Errorf("empty ledger SuccessRate = %v, want 0", got)
	}

	allBelow := corrector.NewLedger(testRates, 0.7, 0)
	allBelow.AddSegment(0.2, false)
	allBelow.AddSegment(0.6, false)
	if got := allBelow.Report().SuccessRate; got != 0 {
		t.Errorf("SuccessRate with no acceptable segments = %v, want 0", got)
	}

	atThreshold := corrector.NewLedger(testRates, 0.7, 0)
	atThreshold.AddSegment(0.7, false)
	if got := atThreshold.Report().SuccessRate; got != 1 {
		t.Errorf("SuccessRate at exactly the threshold = %v, want 1", got)
	}
}

func TestLedgerBudget(t *testing.T) {
	t.Parallel()

	uncapped := corrector.NewLedger(testRates, 0.7, 0)
	uncapped.AddUsage(10_000_000, 10_000_000)
	if uncapped.BudgetExhausted() {
		t.Error("ledger without a cap should never exhaust")
	}

	capped := corrector.NewLedger(testRates, 0.7, 0.001)
	if capped.BudgetExhausted() {
		t.Error("fresh ledger should not be exhausted")
	}
	capped.AddUsage(100_000, 0) // 0.0035 USD
	if !capped.BudgetExhausted() {
		t.Error("ledger should be exhausted after exceeding the cap")
	}
}

func TestLedgerConcurrentUpdates(t *testing.T) {
	t.Parallel()
	l := corrector.NewLedger(testRates, 0.7, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.AddSegment(1.0, true)
			l.AddEscalation()
			l.AddUsage(100, 10)
		}()
	}
	wg.Wait()

	r := l.Report()
	if r.Segments != 50 || r.Escalated != 50 || r.ModelUsed != 50 {
		t.Errorf("counts = %+v, want 50 each", r)
	}
	if r.InputTokens != 5000 || r.OutputTokens != 500 {
		t.Errorf("tokens = %d/%d, want 5000/500", r.InputTokens, r.OutputTokens)
	}
}
