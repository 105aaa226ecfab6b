package liquidation_test

import (
	"errors"
	"math/big"
	"testing"

	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/liquidation"
)

func params(price string) liquidation.Params {
	return liquidation.Params{
		Price:         fixedpoint.MustParse(price),
		RequiredRatio: fixedpoint.MustParse("1.5"),
		UserFeeRatio:  fixedpoint.MustParse("0.05"),
		ArcFeeRatio:   fixedpoint.MustParse("0.1"),
	}
}

// Worked bad-debt scenario: 1000 collateral, 500 debt, price halves from 1.0
// to 0.5. Ratio 1.0 < 1.5, so the vault is liquidatable; the whole collateral
// is seized, repaying 475 and leaving 25 of residual debt.
func TestQuoteBadDebtScenario(t *testing.T) {
	collateral := fixedpoint.MustParse("1000")
	debt := fixedpoint.MustParse("500")

	out, err := liquidation.Quote(collateral, debt, params("0.5"))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	checks := []struct {
		name string
		got  *big.Int
		want string
	}{
		{"LiquidationPrice", out.LiquidationPrice, "0.475"},
		{"CollateralSeized", out.CollateralSeized, "1000"},
		{"DebtRepaid", out.DebtRepaid, "475"},
		{"CollateralToFeeSink", out.CollateralToFeeSink, "5.263157894736842105"},
		{"CollateralToLiquidator", out.CollateralToLiquidator, "994.736842105263157895"},
	}
	for _, c := range checks {
		if c.got.Cmp(fixedpoint.MustParse(c.want)) != 0 {
			t.Errorf("%s = %s, want %s", c.name, fixedpoint.FormatDecimal(c.got), c.want)
		}
	}
	if !out.BadDebt {
		t.Errorf("BadDebt = false for a capped seizure")
	}

	// Seized collateral is split exactly between the two recipients
	sum := new(big.Int).Add(out.CollateralToLiquidator, out.CollateralToFeeSink)
	if sum.Cmp(out.CollateralSeized) != 0 {
		t.Errorf("liquidator + fee sink = %s, want %s",
			fixedpoint.FormatDecimal(sum), fixedpoint.FormatDecimal(out.CollateralSeized))
	}
}

func TestQuoteStillCollateralized(t *testing.T) {
	collateral := fixedpoint.MustParse("1000")
	debt := fixedpoint.MustParse("500")

	// At price 1.0 the ratio is 2.0 >= 1.5
	_, err := liquidation.Quote(collateral, debt, params("1.0"))
	if !errors.Is(err, liquidation.ErrStillCollateralized) {
		t.Errorf("healthy vault: err = %v, want ErrStillCollateralized", err)
	}

	// Exactly at the threshold is not liquidatable
	_, err = liquidation.Quote(collateral, debt, params("0.75")) // ratio = 1.5
	if !errors.Is(err, liquidation.ErrStillCollateralized) {
		t.Errorf("at-threshold vault: err = %v, want ErrStillCollateralized", err)
	}
}

func TestQuoteNoDebt(t *testing.T) {
	_, err := liquidation.Quote(fixedpoint.MustParse("1000"), new(big.Int), params("0.5"))
	if !errors.Is(err, liquidation.ErrNoDebtToLiquidate) {
		t.Errorf("zero debt: err = %v, want ErrNoDebtToLiquidate", err)
	}

	// Residual bad debt with an empty vault: nothing to seize
	_, err = liquidation.Quote(new(big.Int), fixedpoint.MustParse("25"), params("0.5"))
	if !errors.Is(err, liquidation.ErrNoDebtToLiquidate) {
		t.Errorf("empty vault: err = %v, want ErrNoDebtToLiquidate", err)
	}
}

// Partial liquidation: enough collateral that seizure is not capped. The debt
// is fully repaid and the vault keeps the remainder.
func TestQuotePartialSeizure(t *testing.T) {
	collateral := fixedpoint.MustParse("2000")
	debt := fixedpoint.MustParse("1500")

	// value = 2000*0.9 = 1800, ratio = 1.2 < 1.5
	out, err := liquidation.Quote(collateral, debt, params("0.9"))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if out.BadDebt {
		t.Errorf("BadDebt set on uncapped seizure")
	}
	if out.CollateralSeized.Cmp(collateral) >= 0 {
		t.Errorf("seized %s, expected less than the full collateral",
			fixedpoint.FormatDecimal(out.CollateralSeized))
	}

	// Everything repaid, within one rounding unit of the full debt
	diff := new(big.Int).Sub(debt, out.DebtRepaid)
	if diff.Sign() < 0 || diff.Cmp(fixedpoint.MustParse("0.000000000000000002")) > 0 {
		t.Errorf("DebtRepaid = %s, want ~%s",
			fixedpoint.FormatDecimal(out.DebtRepaid), fixedpoint.FormatDecimal(debt))
	}
}

func TestQuoteSafetyMarginLowersThreshold(t *testing.T) {
	collateral := fixedpoint.MustParse("1000")
	debt := fixedpoint.MustParse("500")

	p := params("0.7") // ratio = 1.4, below the 1.5 requirement
	if _, err := liquidation.Quote(collateral, debt, p); err != nil {
		t.Fatalf("without margin the vault should be liquidatable: %v", err)
	}

	// A 0.2 margin lowers the effective threshold to 1.3, sparing the vault
	p.SafetyMarginRatio = fixedpoint.MustParse("0.2")
	_, err := liquidation.Quote(collateral, debt, p)
	if !errors.Is(err, liquidation.ErrStillCollateralized) {
		t.Errorf("with margin: err = %v, want ErrStillCollateralized", err)
	}
}
