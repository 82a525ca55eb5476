package quality_test

import (
	"math"
	"testing"

	"github.com/hokomura/kousei/internal/quality"
)

func TestScoreValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		categories int
		want       float64
	}{
		{0, 0.3},
		{1, 0.5},
		{2, 0.7},
		{3, 0.9},
		{4, 1.0},
		{5, 1.0},
		{12, 1.0},
	}
	for _, tc := range cases {
		got := quality.Score(make([]string, tc.categories))
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Score with %d categories = %v, want %v", tc.categories, got, tc.want)
		}
	}
}

func TestScoreBounded(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 50; n++ {
		got := quality.Score(make([]string, n))
		if got < 0 || got > 1 {
			t.Fatalf("Score with %d categories = %v, out of [0,1]", n, got)
		}
	}
}

func TestBoost(t *testing.T) {
	t.Parallel()

	if got := quality.Boost(0.5); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("Boost(0.5) = %v, want 0.8", got)
	}
	if got := quality.Boost(0.9); got != 1.0 {
		t.Errorf("Boost(0.9) = %v, want cap at 1.0", got)
	}
	if got := quality.Boost(1.0); got != 1.0 {
		t.Errorf("Boost(1.0) = %v, want 1.0", got)
	}
}
