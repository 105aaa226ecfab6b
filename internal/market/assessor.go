package market

import (
	"errors"
	"math/big"
)

var ErrInvalidRange = errors.New("invalid collateral ratio range")

// RequiredRatio maps a verified credit score onto the minimum collateralization
// ratio inside [low, high]. No score means the conservative end of the band.
// A maximal score earns low, a zero score highs out at high, and the
// interpolation term is truncated so the result rounds toward more collateral.
func RequiredRatio(score, low, high, maxScore *big.Int) (*big.Int, error) {
	if high.Cmp(low) < 0 {
		return nil, ErrInvalidRange
	}
	if score == nil || maxScore == nil || maxScore.Sign() <= 0 {
		return new(big.Int).Set(high), nil
	}

	clamped := score
	if score.Cmp(maxScore) > 0 {
		clamped = maxScore
	}

	// reduction = (high - low) * clamped / maxScore, rounded down
	reduction := new(big.Int).Sub(high, low)
	reduction.Mul(reduction, clamped)
	reduction.Quo(reduction, maxScore)

	return new(big.Int).Sub(high, reduction), nil
}
