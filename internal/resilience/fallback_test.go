package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hokomura/kousei/internal/resilience"
	"github.com/hokomura/kousei/pkg/provider/llm"
	"github.com/hokomura/kousei/pkg/provider/llm/mock"
)

func TestLLMFallback_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &mock.Client{Result: &llm.Result{
		Text:  "今日の講座を始めます。",
		Usage: llm.Usage{InputTokens: 12, OutputTokens: 10},
	}}
	secondary := &mock.Client{}

	group := resilience.NewLLMFallback(primary, "openai", resilience.FallbackConfig{})
	group.AddFallback("anyllm/ollama", secondary)

	result, err := group.Correct(context.Background(), "今日の講座じゃあじゃあ始めます。")
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if result.Text != "今日の講座を始めます。" {
		t.Errorf("Correct() text = %q, want primary's result", result.Text)
	}
	if got := len(primary.Calls()); got != 1 {
		t.Errorf("primary called %d times, want 1", got)
	}
	if got := len(secondary.Calls()); got != 0 {
		t.Errorf("secondary called %d times, want 0", got)
	}
}

func TestLLMFallback_FailsOverToSecondary(t *testing.T) {
	t.Parallel()

	primary := &mock.Client{Err: &llm.RemoteError{Provider: "openai", Op: "completion"}}
	secondary := &mock.Client{Result: &llm.Result{Text: "直しました。"}}

	group := resilience.NewLLMFallback(primary, "openai", resilience.FallbackConfig{})
	group.AddFallback("anyllm/ollama", secondary)

	result, err := group.Correct(context.Background(), "なおしました。")
	if err != nil {
		t.Fatalf("Correct() error = %v", err)
	}
	if result.Text != "直しました。" {
		t.Errorf("Correct() text = %q, want secondary's result", result.Text)
	}
	if got := len(primary.Calls()); got != 1 {
		t.Errorf("primary called %d times, want 1", got)
	}
	if got := len(secondary.Calls()); got != 1 {
		t.Errorf("secondary called %d times, want 1", got)
	}
}

func TestLLMFallback_AllBackendsFail(t *testing.T) {
	t.Parallel()

	primary := &mock.Client{Err: errors.New("primary down")}
	secondary := &mock.Client{Err: errors.New("secondary down")}

	group := resilience.NewLLMFallback(primary, "openai", resilience.FallbackConfig{})
	group.AddFallback("anyllm/ollama", secondary)

	_, err := group.Correct(context.Background(), "テスト")
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("Correct() error = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_SkipsBackendWithOpenBreaker(t *testing.T) {
	t.Parallel()

	primary := &mock.Client{Err: errors.New("primary down")}
	secondary := &mock.Client{Result: &llm.Result{Text: "訂正済み"}}

	group := resilience.NewLLMFallback(primary, "openai", resilience.FallbackConfig{
		Breaker: resilience.BreakerConfig{FailureThreshold: 2, Cooldown: time.Hour},
	})
	group.AddFallback("anyllm/ollama", secondary)

	for i := 0; i < 3; i++ {
		result, err := group.Correct(context.Background(), "テスト")
		if err != nil {
			t.Fatalf("Correct() call %d error = %v", i+1, err)
		}
		if result.Text != "訂正済み" {
			t.Fatalf("Correct() call %d text = %q, want secondary's result", i+1, result.Text)
		}
	}

	// The primary trips after its second failure; the third round must go
	// straight to the secondary.
	if got := len(primary.Calls()); got != 2 {
		t.Errorf("primary called %d times, want 2", got)
	}
	if got := len(secondary.Calls()); got != 3 {
		t.Errorf("secondary called %d times, want 3", got)
	}
}

func TestLLMFallback_AllBreakersOpen(t *testing.T) {
	t.Parallel()

	primary := &mock.Client{Err: errors.New("down")}

	group := resilience.NewLLMFallback(primary, "openai", resilience.FallbackConfig{
		Breaker: resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour},
	})

	if _, err := group.Correct(context.Background(), "テスト"); err == nil {
		t.Fatal("Correct() error = nil, want failure that trips the breaker")
	}

	_, err := group.Correct(context.Background(), "テスト")
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("Correct() error = %v, want ErrAllFailed", err)
	}
	if got := len(primary.Calls()); got != 1 {
		t.Errorf("primary called %d times, want 1: second round must be skipped", got)
	}
}

func TestLLMFallback_RecoversAfterCooldown(t *testing.T) {
	t.Parallel()

	primary := &mock.Client{Err: errors.New("down")}
	secondary := &mock.Client{Result: &llm.Result{Text: "代替"}}

	group := resilience.NewLLMFallback(primary, "openai", resilience.FallbackConfig{
		Breaker: resilience.BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Millisecond},
	})
	group.AddFallback("anyllm/ollama", secondary)

	if _, err := group.Correct(context.Background(), "テスト"); err != nil {
		t.Fatalf("Correct() error = %v", err)
	}

	primary.Reset()
	primary.Result = &llm.Result{Text: "復旧"}
	time.Sleep(20 * time.Millisecond)

	result, err := group.Correct(context.Background(), "テスト")
	if err != nil {
		t.Fatalf("Correct() after cooldown error = %v", err)
	}
	if result.Text != "復旧" {
		t.Errorf("Correct() text = %q, want recovered primary's result", result.Text)
	}
}
