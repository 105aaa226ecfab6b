package vault

import (
	"math/big"
	"sort"

	"github.com/google/uuid"
)

// Store holds every vault for one market. Vaults are created implicitly on
// first use and never deleted; a (0, 0, 0) vault is a valid resting state.
// Not thread-safe — only accessed from the single-threaded action engine.
type Store struct {
	vaults map[uuid.UUID]*Vault
}

func NewStore() *Store {
	return &Store{
		vaults: make(map[uuid.UUID]*Vault),
	}
}

// GetOrCreate returns the vault for an account, creating an empty one on
// first reference.
func (s *Store) GetOrCreate(account uuid.UUID) *Vault {
	v, ok := s.vaults[account]
	if !ok {
		v = newVault(account)
		s.vaults[account] = v
	}
	return v
}

// Get returns the vault if it exists.
func (s *Store) Get(account uuid.UUID) (*Vault, bool) {
	v, ok := s.vaults[account]
	return v, ok
}

func (s *Store) Len() int {
	return len(s.vaults)
}

// SumCollateral totals collateral across all vaults.
func (s *Store) SumCollateral() *big.Int {
	total := new(big.Int)
	for _, v := range s.vaults {
		total.Add(total, v.CollateralAmount)
	}
	return total
}

// SumNormalizedDebt totals normalized debt across all vaults.
func (s *Store) SumNormalizedDebt() *big.Int {
	total := new(big.Int)
	for _, v := range s.vaults {
		total.Add(total, v.NormalizedBorrowedAmount)
	}
	return total
}

// All returns clones of every vault in deterministic account order, for
// snapshots and state digests.
func (s *Store) All() []*Vault {
	out := make([]*Vault, 0, len(s.vaults))
	for _, v := range s.vaults {
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Account.String() < out[j].Account.String()
	})
	return out
}

// Restore rehydrates a vault from a snapshot, replacing any existing entry.
func (s *Store) Restore(v *Vault) {
	s.vaults[v.Account] = v.Clone()
}
