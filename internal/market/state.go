package market

import (
	"errors"
	"fmt"
	"math/big"

	"ArcVault/internal/fixedpoint"

	"github.com/google/uuid"
)

var ErrUnauthorized = errors.New("caller may not change market parameters")

// Market is the global mutable state for one market: parameters, the borrow
// index, the aggregate totals and the pause flag. Owned exclusively by the
// single-threaded action engine.
type Market struct {
	Config Config
	Index  *IndexEngine

	TotalCollateral         *big.Int
	TotalNormalizedBorrowed *big.Int
	Paused                  bool
}

func New(cfg Config, now int64) (*Market, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Market{
		Config:                  cfg,
		Index:                   NewIndexEngine(cfg.InterestRatePerSecond, now),
		TotalCollateral:         new(big.Int),
		TotalNormalizedBorrowed: new(big.Int),
	}, nil
}

// RequiredRatio resolves the minimum collateralization ratio for a verified
// score (nil for no score) under this market's band.
func (m *Market) RequiredRatio(verifiedScore *big.Int) (*big.Int, error) {
	return RequiredRatio(verifiedScore,
		m.Config.LowCollateralRatio, m.Config.HighCollateralRatio, m.Config.MaxScore)
}

// SetPaused toggles the market pause flag. Admin only.
func (m *Market) SetPaused(caller uuid.UUID, paused bool) error {
	if caller != m.Config.Admin {
		return ErrUnauthorized
	}
	m.Paused = paused
	return nil
}

// ApplyParamUpdate validates and commits one parameter change, accruing
// interest at the old rate first when the rate itself changes.
func (m *Market) ApplyParamUpdate(update ParamUpdate, now int64) error {
	if update.Caller != m.Config.Admin {
		return ErrUnauthorized
	}
	if update.Value == nil || update.Value.Sign() < 0 {
		return fmt.Errorf("%w: %s must be non-negative", ErrInvalidRange, update.Field)
	}

	next := m.Config
	switch update.Field {
	case ParamInterestRate:
		next.InterestRatePerSecond = update.Value
	case ParamLowRatio:
		next.LowCollateralRatio = update.Value
	case ParamHighRatio:
		next.HighCollateralRatio = update.Value
	case ParamBorrowMinimum:
		next.VaultBorrowMinimum = update.Value
	case ParamBorrowMaximum:
		next.VaultBorrowMaximum = update.Value
	case ParamSafetyMargin:
		next.LiquidationSafetyMarginRatio = update.Value
	case ParamLiquidationUserFee:
		next.LiquidationUserFeeRatio = update.Value
	case ParamLiquidationArcFee:
		next.LiquidationArcFeeRatio = update.Value
	default:
		return fmt.Errorf("unknown market parameter %q", update.Field)
	}

	if err := next.Validate(); err != nil {
		return err
	}

	if update.Field == ParamInterestRate {
		m.Index.SetRate(update.Value, now)
	}
	m.Config = next
	return nil
}

// AddCollateral adjusts TotalCollateral by delta (positive or negative).
func (m *Market) AddCollateral(delta *big.Int) {
	m.TotalCollateral = new(big.Int).Add(m.TotalCollateral, delta)
}

// SubNormalizedBorrowedFloored decreases the normalized total, flooring at
// zero so a final repay rounded up by one unit cannot drive it negative.
func (m *Market) SubNormalizedBorrowedFloored(amount *big.Int) {
	next := new(big.Int).Sub(m.TotalNormalizedBorrowed, amount)
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	m.TotalNormalizedBorrowed = next
}

// AddNormalizedBorrowed increases the normalized total.
func (m *Market) AddNormalizedBorrowed(amount *big.Int) {
	m.TotalNormalizedBorrowed = new(big.Int).Add(m.TotalNormalizedBorrowed, amount)
}

// Snapshot-facing accessors.

func (m *Market) TotalCollateralValue() *big.Int {
	return fixedpoint.Clone(m.TotalCollateral)
}

func (m *Market) TotalNormalizedBorrowedValue() *big.Int {
	return fixedpoint.Clone(m.TotalNormalizedBorrowed)
}
