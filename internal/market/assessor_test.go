package market_test

import (
	"errors"
	"math/big"
	"testing"

	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/market"
)

func TestRequiredRatioNoScore(t *testing.T) {
	low := fixedpoint.MustParse("1.1")
	high := fixedpoint.MustParse("2.0")
	maxScore := fixedpoint.MustParse("1000")

	got, err := market.RequiredRatio(nil, low, high, maxScore)
	if err != nil {
		t.Fatalf("RequiredRatio: %v", err)
	}
	if got.Cmp(high) != 0 {
		t.Errorf("no score: ratio = %s, want high (2.0)", fixedpoint.FormatDecimal(got))
	}
}

func TestRequiredRatioInterpolation(t *testing.T) {
	low := fixedpoint.MustParse("1.1")
	high := fixedpoint.MustParse("2.0")
	maxScore := fixedpoint.MustParse("1000")

	cases := []struct {
		score string
		want  string
	}{
		{"0", "2.0"},
		{"1000", "1.1"},  // maximal score earns the permissive end
		{"1500", "1.1"},  // clamped at maxScore
		{"500", "1.55"},  // midpoint
		{"250", "1.775"},
	}

	for _, tc := range cases {
		got, err := market.RequiredRatio(fixedpoint.MustParse(tc.score), low, high, maxScore)
		if err != nil {
			t.Fatalf("score %s: %v", tc.score, err)
		}
		want := fixedpoint.MustParse(tc.want)
		if got.Cmp(want) != 0 {
			t.Errorf("score %s: ratio = %s, want %s",
				tc.score, fixedpoint.FormatDecimal(got), tc.want)
		}
	}
}

// Raising the score never raises the required ratio.
func TestRequiredRatioMonotoneInScore(t *testing.T) {
	low := fixedpoint.MustParse("1.3")
	high := fixedpoint.MustParse("1.9")
	maxScore := fixedpoint.MustParse("1000")

	prev := (*big.Int)(nil)
	for s := int64(0); s <= 1000; s += 37 {
		scoreVal := new(big.Int).Mul(big.NewInt(s), fixedpoint.Base)
		got, err := market.RequiredRatio(scoreVal, low, high, maxScore)
		if err != nil {
			t.Fatalf("score %d: %v", s, err)
		}
		if prev != nil && got.Cmp(prev) > 0 {
			t.Fatalf("required ratio increased from %s to %s at score %d",
				fixedpoint.FormatDecimal(prev), fixedpoint.FormatDecimal(got), s)
		}
		prev = got
	}
}

func TestRequiredRatioInvalidRange(t *testing.T) {
	low := fixedpoint.MustParse("2.0")
	high := fixedpoint.MustParse("1.5")

	_, err := market.RequiredRatio(nil, low, high, fixedpoint.MustParse("1000"))
	if !errors.Is(err, market.ErrInvalidRange) {
		t.Errorf("high < low: err = %v, want ErrInvalidRange", err)
	}
}
