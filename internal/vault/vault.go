package vault

import (
	"math/big"

	"ArcVault/internal/fixedpoint"

	"github.com/google/uuid"
)

// Vault is the per-account collateral/debt record for one market. All amounts
// are 18-decimal fixed-point and non-negative.
//
// Principal tracks cumulative minted debt minus nominal repayments (a
// bookkeeping figure for reward systems); NormalizedBorrowedAmount is what is
// actually owed: real debt = normalized * borrowIndex / Base.
type Vault struct {
	Account                  uuid.UUID
	CollateralAmount         *big.Int
	Principal                *big.Int
	NormalizedBorrowedAmount *big.Int
}

func newVault(account uuid.UUID) *Vault {
	return &Vault{
		Account:                  account,
		CollateralAmount:         new(big.Int),
		Principal:                new(big.Int),
		NormalizedBorrowedAmount: new(big.Int),
	}
}

// AddCollateral increases the collateral balance.
func (v *Vault) AddCollateral(amount *big.Int) {
	v.CollateralAmount = new(big.Int).Add(v.CollateralAmount, amount)
}

// SubCollateral decreases the collateral balance. Callers check sufficiency
// first; this floors at zero as a backstop against rounding residue.
func (v *Vault) SubCollateral(amount *big.Int) {
	next := new(big.Int).Sub(v.CollateralAmount, amount)
	if next.Sign() < 0 {
		next.SetInt64(0)
	}
	v.CollateralAmount = next
}

// AddDebt increases principal and normalized debt by their respective deltas.
func (v *Vault) AddDebt(principal, normalized *big.Int) {
	v.Principal = new(big.Int).Add(v.Principal, principal)
	v.NormalizedBorrowedAmount = new(big.Int).Add(v.NormalizedBorrowedAmount, normalized)
}

// ReduceDebt decreases normalized debt and principal, each floored at zero.
// The floors diverge on purpose: an interest-only repayment retires
// normalized debt while principal has already reached its floor.
func (v *Vault) ReduceDebt(nominal, normalized *big.Int) {
	nextNorm := new(big.Int).Sub(v.NormalizedBorrowedAmount, normalized)
	if nextNorm.Sign() < 0 {
		nextNorm.SetInt64(0)
	}
	v.NormalizedBorrowedAmount = nextNorm

	nextPrincipal := new(big.Int).Sub(v.Principal, nominal)
	if nextPrincipal.Sign() < 0 {
		nextPrincipal.SetInt64(0)
	}
	v.Principal = nextPrincipal
}

func (v *Vault) HasDebt() bool {
	return v.NormalizedBorrowedAmount.Sign() > 0
}

// Clone returns an independent copy for snapshots and projections.
func (v *Vault) Clone() *Vault {
	return &Vault{
		Account:                  v.Account,
		CollateralAmount:         fixedpoint.Clone(v.CollateralAmount),
		Principal:                fixedpoint.Clone(v.Principal),
		NormalizedBorrowedAmount: fixedpoint.Clone(v.NormalizedBorrowedAmount),
	}
}
