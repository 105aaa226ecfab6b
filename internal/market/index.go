package market

import (
	"math/big"

	"ArcVault/internal/fixedpoint"
)

// IndexEngine advances the global borrow index for one market. The index
// starts at 1.0 and grows by simple interest between checkpoints; folding an
// accrual into the stored index at UpdateIndex makes subsequent accruals
// compound across checkpoints.
//
// All timestamps are event time in epoch seconds. The engine never reads the
// wall clock.
type IndexEngine struct {
	borrowIndex   *big.Int
	lastUpdate    int64
	ratePerSecond *big.Int
}

func NewIndexEngine(ratePerSecond *big.Int, now int64) *IndexEngine {
	return &IndexEngine{
		borrowIndex:   fixedpoint.Clone(fixedpoint.Base),
		lastUpdate:    now,
		ratePerSecond: fixedpoint.Clone(ratePerSecond),
	}
}

// CurrentIndex returns borrowIndex + borrowIndex·rate·Δt/Base without
// mutating state. Clock regressions accrue nothing.
func (e *IndexEngine) CurrentIndex(now int64) *big.Int {
	elapsed := now - e.lastUpdate
	if elapsed <= 0 || e.ratePerSecond.Sign() == 0 {
		return fixedpoint.Clone(e.borrowIndex)
	}

	rateOverPeriod := new(big.Int).Mul(e.ratePerSecond, big.NewInt(elapsed))
	accrued := fixedpoint.MulDown(e.borrowIndex, rateOverPeriod)

	return accrued.Add(accrued, e.borrowIndex)
}

// UpdateIndex commits the accrual since the last checkpoint. Idempotent at
// the same timestamp.
func (e *IndexEngine) UpdateIndex(now int64) {
	if now <= e.lastUpdate {
		return
	}
	e.borrowIndex = e.CurrentIndex(now)
	e.lastUpdate = now
}

// SetRate accrues at the old rate up to now, then switches to the new rate.
func (e *IndexEngine) SetRate(ratePerSecond *big.Int, now int64) {
	e.UpdateIndex(now)
	e.ratePerSecond = fixedpoint.Clone(ratePerSecond)
}

// Normalize converts a real (index-inclusive) amount to normalized debt
// units, rounding up so debt is never understated.
func (e *IndexEngine) Normalize(amount *big.Int) *big.Int {
	return fixedpoint.DivUp(amount, e.borrowIndex)
}

// Denormalize converts normalized debt to the real amount owed, rounding up.
func (e *IndexEngine) Denormalize(normalized *big.Int) *big.Int {
	return fixedpoint.MulUp(normalized, e.borrowIndex)
}

// DenormalizeDown is the payout-side conversion: rounds down so amounts
// leaving the protocol never exceed what the normalized balance represents.
func (e *IndexEngine) DenormalizeDown(normalized *big.Int) *big.Int {
	return fixedpoint.MulDown(normalized, e.borrowIndex)
}

func (e *IndexEngine) BorrowIndex() *big.Int {
	return fixedpoint.Clone(e.borrowIndex)
}

func (e *IndexEngine) RatePerSecond() *big.Int {
	return fixedpoint.Clone(e.ratePerSecond)
}

func (e *IndexEngine) LastUpdate() int64 {
	return e.lastUpdate
}

// Restore rehydrates engine state from a snapshot.
func (e *IndexEngine) Restore(borrowIndex *big.Int, lastUpdate int64, ratePerSecond *big.Int) {
	e.borrowIndex = fixedpoint.Clone(borrowIndex)
	e.lastUpdate = lastUpdate
	e.ratePerSecond = fixedpoint.Clone(ratePerSecond)
}
