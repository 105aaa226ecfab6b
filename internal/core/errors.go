package core

import (
	"errors"

	"ArcVault/internal/liquidation"
	"ArcVault/internal/market"
	"ArcVault/internal/oracle"
	"ArcVault/internal/score"
)

// Action rejection reasons. Every rejected action aborts with no partial
// state change; the reason is surfaced to the caller and counted in metrics.
var (
	ErrPaused                  = errors.New("market is paused")
	ErrZeroAmount              = errors.New("amount must be positive")
	ErrUndercollateralized     = errors.New("vault would fall below its required collateral ratio")
	ErrBelowMinimumPosition    = errors.New("resulting debt below the vault borrow minimum")
	ErrAboveMaximumPosition    = errors.New("resulting debt above the vault borrow maximum")
	ErrInsufficientCollateral  = errors.New("withdrawal exceeds vault collateral")
	ErrInsufficientDebtToRepay = errors.New("repayment exceeds outstanding debt")
	ErrInvalidScoreProof       = errors.New("score proof invalid or for a different account")

	// Shared with the packages that detect them.
	ErrStillCollateralized = liquidation.ErrStillCollateralized
	ErrNoDebtToLiquidate   = liquidation.ErrNoDebtToLiquidate
	ErrInvalidRange        = market.ErrInvalidRange
	ErrUnauthorized        = market.ErrUnauthorized
)

// RejectReason maps a rejection error onto its metric label.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ErrUndercollateralized):
		return "undercollateralized"
	case errors.Is(err, ErrBelowMinimumPosition):
		return "below_minimum_position"
	case errors.Is(err, ErrAboveMaximumPosition):
		return "above_maximum_position"
	case errors.Is(err, ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ErrInsufficientDebtToRepay):
		return "insufficient_debt_to_repay"
	case errors.Is(err, ErrStillCollateralized):
		return "still_collateralized"
	case errors.Is(err, ErrNoDebtToLiquidate):
		return "no_debt_to_liquidate"
	case errors.Is(err, ErrInvalidScoreProof):
		return "invalid_score_proof"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrUnauthorized), errors.Is(err, score.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, oracle.ErrNoPrice):
		return "no_price"
	default:
		return "other"
	}
}
