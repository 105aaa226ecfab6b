package market

import (
	"fmt"
	"math/big"

	"ArcVault/internal/fixedpoint"

	"github.com/google/uuid"
)

// Config holds the mutable market parameters. A single copy per market is
// owned by the engine; every change goes through ApplyParamUpdate so the role
// check and validation cannot be bypassed.
type Config struct {
	MarketID string
	Admin    uuid.UUID

	CollateralAssetID       string
	CollateralNativeDecimal int
	SyntheticAssetID        string
	FeeSinkAccount          uuid.UUID

	InterestRatePerSecond *big.Int

	LowCollateralRatio  *big.Int
	HighCollateralRatio *big.Int
	MaxScore            *big.Int

	VaultBorrowMinimum *big.Int // zero disables the bound
	VaultBorrowMaximum *big.Int // zero disables the bound

	LiquidationSafetyMarginRatio *big.Int
	LiquidationUserFeeRatio      *big.Int
	LiquidationArcFeeRatio       *big.Int
}

func (c *Config) Validate() error {
	if c.MarketID == "" {
		return fmt.Errorf("market id required")
	}
	if c.LowCollateralRatio == nil || c.LowCollateralRatio.Sign() <= 0 {
		return fmt.Errorf("%w: low ratio must be positive", ErrInvalidRange)
	}
	if c.HighCollateralRatio == nil || c.HighCollateralRatio.Cmp(c.LowCollateralRatio) < 0 {
		return fmt.Errorf("%w: high ratio below low ratio", ErrInvalidRange)
	}
	if c.InterestRatePerSecond == nil || c.InterestRatePerSecond.Sign() < 0 {
		return fmt.Errorf("%w: negative interest rate", ErrInvalidRange)
	}
	if c.LiquidationUserFeeRatio == nil || c.LiquidationUserFeeRatio.Sign() <= 0 {
		return fmt.Errorf("%w: liquidation user fee must be positive", ErrInvalidRange)
	}
	if c.LiquidationArcFeeRatio == nil || c.LiquidationArcFeeRatio.Sign() < 0 {
		return fmt.Errorf("%w: negative liquidation protocol fee", ErrInvalidRange)
	}

	// The liquidator's discount must leave a positive liquidation price.
	discount := new(big.Int).Add(c.LiquidationUserFeeRatio, c.LiquidationArcFeeRatio)
	if discount.Cmp(fixedpoint.Base) >= 0 {
		return fmt.Errorf("%w: liquidation fees consume the full collateral price", ErrInvalidRange)
	}

	if c.VaultBorrowMinimum != nil && c.VaultBorrowMaximum != nil &&
		c.VaultBorrowMaximum.Sign() > 0 && c.VaultBorrowMinimum.Cmp(c.VaultBorrowMaximum) > 0 {
		return fmt.Errorf("%w: borrow minimum above maximum", ErrInvalidRange)
	}
	return nil
}

// ParamField names a mutable parameter in wire and event payloads.
type ParamField string

const (
	ParamInterestRate       ParamField = "interest_rate_per_second"
	ParamLowRatio           ParamField = "low_collateral_ratio"
	ParamHighRatio          ParamField = "high_collateral_ratio"
	ParamBorrowMinimum      ParamField = "vault_borrow_minimum"
	ParamBorrowMaximum      ParamField = "vault_borrow_maximum"
	ParamSafetyMargin       ParamField = "liquidation_safety_margin_ratio"
	ParamLiquidationUserFee ParamField = "liquidation_user_fee_ratio"
	ParamLiquidationArcFee  ParamField = "liquidation_arc_fee_ratio"
)

// ParamUpdate is a single admin-issued parameter change.
type ParamUpdate struct {
	Caller uuid.UUID
	Field  ParamField
	Value  *big.Int
}
