package liquidation

import (
	"errors"
	"math/big"

	"ArcVault/internal/fixedpoint"
)

var (
	ErrStillCollateralized = errors.New("vault still meets its required collateral ratio")
	ErrNoDebtToLiquidate   = errors.New("vault has no liquidatable debt")
)

// Params are the market inputs to a liquidation quote.
type Params struct {
	Price             *big.Int // true collateral price
	RequiredRatio     *big.Int // score-adjusted minimum ratio
	SafetyMarginRatio *big.Int // grace buffer subtracted from the ratio, may be zero
	UserFeeRatio      *big.Int // liquidator discount off the true price
	ArcFeeRatio       *big.Int // protocol's cut of the liquidator's profit
}

// Outcome is the exact transfer set for one liquidation.
type Outcome struct {
	LiquidationPrice       *big.Int
	CollateralSeized       *big.Int
	CollateralToLiquidator *big.Int
	CollateralToFeeSink    *big.Int
	DebtRepaid             *big.Int // real (index-inclusive) units
	BadDebt                bool     // collateral exhausted with debt left over
}

// Quote computes eligibility and the transfer amounts for liquidating a vault
// holding collateral against realDebt. Pure: no state is read or written.
//
// The liquidator buys collateral at price*(1-userFee) and repays the seized
// collateral's value at that discounted price. The protocol's fee comes out
// of the liquidator's profit: profit measured in debt units, converted back
// to collateral at the liquidation price, times the protocol fee ratio.
// Seizure is capped at the vault's collateral; the cap is the bad-debt path,
// leaving residual debt against an empty vault.
func Quote(collateral, realDebt *big.Int, p Params) (*Outcome, error) {
	if realDebt.Sign() == 0 {
		return nil, ErrNoDebtToLiquidate
	}

	threshold := new(big.Int).Set(p.RequiredRatio)
	if p.SafetyMarginRatio != nil && p.SafetyMarginRatio.Sign() > 0 {
		threshold.Sub(threshold, p.SafetyMarginRatio)
		if threshold.Sign() < 0 {
			threshold.SetInt64(0)
		}
	}

	collateralValue := fixedpoint.MulDown(collateral, p.Price)
	ratio := fixedpoint.DivDown(collateralValue, realDebt)
	if ratio.Cmp(threshold) >= 0 {
		return nil, ErrStillCollateralized
	}

	discount := new(big.Int).Sub(fixedpoint.Base, p.UserFeeRatio)
	liquidationPrice := fixedpoint.MulDown(p.Price, discount)
	if liquidationPrice.Sign() <= 0 {
		return nil, ErrNoDebtToLiquidate
	}

	// Seize the collateral needed to cover the debt at the discounted price,
	// capped at what the vault holds.
	seized := fixedpoint.Min(collateral, fixedpoint.DivUp(realDebt, liquidationPrice))
	if seized.Sign() == 0 {
		// Residual bad debt against an empty vault: nothing to take.
		return nil, ErrNoDebtToLiquidate
	}

	debtRepaid := fixedpoint.MulDown(seized, liquidationPrice)
	if debtRepaid.Cmp(realDebt) > 0 {
		debtRepaid = fixedpoint.Clone(realDebt)
	}

	// profit = seized collateral valued at true price, minus what was repaid
	profit := fixedpoint.MulDown(seized, p.Price)
	profit.Sub(profit, debtRepaid)
	if profit.Sign() < 0 {
		profit.SetInt64(0)
	}

	arcCollateral := fixedpoint.MulDown(fixedpoint.DivDown(profit, liquidationPrice), p.ArcFeeRatio)
	if arcCollateral.Cmp(seized) > 0 {
		arcCollateral = fixedpoint.Clone(seized)
	}

	toLiquidator := new(big.Int).Sub(seized, arcCollateral)

	return &Outcome{
		LiquidationPrice:       liquidationPrice,
		CollateralSeized:       seized,
		CollateralToLiquidator: toLiquidator,
		CollateralToFeeSink:    arcCollateral,
		DebtRepaid:             debtRepaid,
		BadDebt:                seized.Cmp(collateral) == 0 && debtRepaid.Cmp(realDebt) < 0,
	}, nil
}
