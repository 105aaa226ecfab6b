package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// BalanceTracker maintains in-memory account balances.
// Not thread-safe — only accessed from the single-threaded action engine.
type BalanceTracker struct {
	balances map[AccountKey]*big.Int
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]*big.Int),
	}
}

func (bt *BalanceTracker) delta(key AccountKey, amount *big.Int) {
	cur, ok := bt.balances[key]
	if !ok {
		cur = new(big.Int)
		bt.balances[key] = cur
	}
	cur.Add(cur, amount)
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.delta(j.DebitAccount, j.Amount)
	bt.delta(j.CreditAccount, new(big.Int).Neg(j.Amount))
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account (zero if unseen)
func (bt *BalanceTracker) GetBalance(key AccountKey) *big.Int {
	if cur, ok := bt.balances[key]; ok {
		return new(big.Int).Set(cur)
	}
	return new(big.Int)
}

// GetUserCollateral returns the collateral held for a user in the vault
func (bt *BalanceTracker) GetUserCollateral(userID uuid.UUID, assetID AssetID) *big.Int {
	return bt.GetBalance(NewUserAccountKey(userID, SubTypeCollateral, assetID))
}

// GetUserSynthetic returns the synthetic balance minted to a user
func (bt *BalanceTracker) GetUserSynthetic(userID uuid.UUID, assetID AssetID) *big.Int {
	return bt.GetBalance(NewUserAccountKey(userID, SubTypeSynthetic, assetID))
}

// GetFeeSinkBalance returns the protocol's accumulated liquidation fees
func (bt *BalanceTracker) GetFeeSinkBalance(marketID string, assetID AssetID) *big.Int {
	return bt.GetBalance(NewSystemAccountKey(marketID, SubTypeSystemFeeSink, assetID))
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	if balance, ok := bt.balances[key]; ok && balance.Sign() < 0 {
		return fmt.Errorf("account %s has negative balance: %s", key.AccountPath(), balance)
	}
	return nil
}

// ValidateSufficient checks that an account holds at least the required amount
func (bt *BalanceTracker) ValidateSufficient(key AccountKey, required *big.Int) error {
	balance := bt.GetBalance(key)
	if balance.Cmp(required) < 0 {
		return fmt.Errorf("insufficient balance on %s: have=%s, need=%s",
			key.AccountPath(), balance, required)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances per asset (should be all
// zero for a zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]*big.Int {
	totals := make(map[AssetID]*big.Int)

	for key, balance := range bt.balances {
		cur, ok := totals[key.AssetID]
		if !ok {
			cur = new(big.Int)
			totals[key.AssetID] = cur
		}
		cur.Add(cur, balance)
	}

	return totals
}

// Snapshot returns a copy of all balances (for state hashing and snapshots)
func (bt *BalanceTracker) Snapshot() map[AccountKey]*big.Int {
	snapshot := make(map[AccountKey]*big.Int, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = new(big.Int).Set(v)
	}
	return snapshot
}

// Restore replaces all balances from a snapshot
func (bt *BalanceTracker) Restore(balances map[AccountKey]*big.Int) {
	bt.balances = make(map[AccountKey]*big.Int, len(balances))
	for k, v := range balances {
		bt.balances[k] = new(big.Int).Set(v)
	}
}
