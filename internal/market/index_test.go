package market_test

import (
	"math/big"
	"testing"

	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/market"
)

// rate such that one year of simple interest is easy to read:
// 1e9 per second => 1e9 * 31_536_000 = 3.1536e16 = 3.1536% over a year.
var testRate = big.NewInt(1_000_000_000)

func TestIndexStartsAtOne(t *testing.T) {
	e := market.NewIndexEngine(testRate, 0)
	if e.BorrowIndex().Cmp(fixedpoint.Base) != 0 {
		t.Fatalf("initial index = %s, want 1.0", fixedpoint.FormatDecimal(e.BorrowIndex()))
	}
}

func TestIndexOneYearSimpleInterest(t *testing.T) {
	const secondsPerYear = 31_536_000

	e := market.NewIndexEngine(testRate, 0)
	e.UpdateIndex(secondsPerYear)

	want := new(big.Int).Add(fixedpoint.Base,
		new(big.Int).Mul(testRate, big.NewInt(secondsPerYear)))
	if e.BorrowIndex().Cmp(want) != 0 {
		t.Errorf("index after one year = %s, want Base + rate*31536000 = %s",
			e.BorrowIndex(), want)
	}
}

func TestIndexMonotoneAndIdempotent(t *testing.T) {
	e := market.NewIndexEngine(testRate, 0)

	prev := e.BorrowIndex()
	for _, now := range []int64{10, 10, 500, 500, 501, 86_400} {
		e.UpdateIndex(now)
		cur := e.BorrowIndex()
		if cur.Cmp(prev) < 0 {
			t.Fatalf("index decreased: %s -> %s at t=%d", prev, cur, now)
		}
		prev = cur
	}

	// Same-timestamp update is a no-op
	e.UpdateIndex(86_400)
	before := e.BorrowIndex()
	e.UpdateIndex(86_400)
	if e.BorrowIndex().Cmp(before) != 0 {
		t.Errorf("same-timestamp UpdateIndex changed the index")
	}

	// Clock regression accrues nothing
	e.UpdateIndex(100)
	if e.BorrowIndex().Cmp(before) != 0 {
		t.Errorf("clock regression changed the index")
	}
}

// Interest compounds across checkpoints: two checkpoints accrue at least as
// much as one checkpoint over the same span.
func TestIndexCompoundsAcrossCheckpoints(t *testing.T) {
	single := market.NewIndexEngine(testRate, 0)
	single.UpdateIndex(2_000_000)

	split := market.NewIndexEngine(testRate, 0)
	split.UpdateIndex(1_000_000)
	split.UpdateIndex(2_000_000)

	if split.BorrowIndex().Cmp(single.BorrowIndex()) < 0 {
		t.Errorf("checkpointed accrual %s below single accrual %s",
			split.BorrowIndex(), single.BorrowIndex())
	}
}

func TestSetRateAccruesAtOldRateFirst(t *testing.T) {
	e := market.NewIndexEngine(testRate, 0)
	e.SetRate(new(big.Int), 1000) // rate -> 0 at t=1000

	// The first 1000 seconds accrued at the old rate
	want := new(big.Int).Add(fixedpoint.Base,
		new(big.Int).Mul(testRate, big.NewInt(1000)))
	if e.BorrowIndex().Cmp(want) != 0 {
		t.Fatalf("index after SetRate = %s, want %s", e.BorrowIndex(), want)
	}

	// Nothing accrues afterwards at rate 0
	e.UpdateIndex(1_000_000)
	if e.BorrowIndex().Cmp(want) != 0 {
		t.Errorf("index accrued at zero rate")
	}
}

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	e := market.NewIndexEngine(testRate, 0)
	e.UpdateIndex(5_000_000)

	amount := fixedpoint.MustParse("500")
	normalized := e.Normalize(amount)
	back := e.Denormalize(normalized)

	if back.Cmp(amount) < 0 {
		t.Errorf("denormalize(normalize(500)) = %s, understates the debt",
			fixedpoint.FormatDecimal(back))
	}

	// Payout-side conversion never exceeds the debt-side one
	down := e.DenormalizeDown(normalized)
	if down.Cmp(back) > 0 {
		t.Errorf("DenormalizeDown above Denormalize")
	}
}
