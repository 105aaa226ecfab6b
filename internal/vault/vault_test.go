package vault_test

import (
	"testing"

	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/vault"

	"github.com/google/uuid"
)

func TestGetOrCreateImplicitVault(t *testing.T) {
	store := vault.NewStore()
	account := uuid.New()

	v := store.GetOrCreate(account)
	if v.CollateralAmount.Sign() != 0 || v.Principal.Sign() != 0 || v.NormalizedBorrowedAmount.Sign() != 0 {
		t.Fatalf("fresh vault not zeroed")
	}

	// Second lookup returns the same vault
	v.AddCollateral(fixedpoint.MustParse("100"))
	again := store.GetOrCreate(account)
	if again.CollateralAmount.Cmp(fixedpoint.MustParse("100")) != 0 {
		t.Errorf("GetOrCreate returned a different vault")
	}
	if store.Len() != 1 {
		t.Errorf("store has %d vaults, want 1", store.Len())
	}
}

func TestReduceDebtFloors(t *testing.T) {
	store := vault.NewStore()
	v := store.GetOrCreate(uuid.New())

	v.AddDebt(fixedpoint.MustParse("100"), fixedpoint.MustParse("95"))

	// Normalized over-repay floors at zero; principal floors independently
	v.ReduceDebt(fixedpoint.MustParse("120"), fixedpoint.MustParse("100"))
	if v.NormalizedBorrowedAmount.Sign() != 0 {
		t.Errorf("normalized debt = %s, want 0", v.NormalizedBorrowedAmount)
	}
	if v.Principal.Sign() != 0 {
		t.Errorf("principal = %s, want 0", v.Principal)
	}

	// Interest-only repayment: normalized shrinks, principal already floored
	v.AddDebt(fixedpoint.MustParse("50"), fixedpoint.MustParse("48"))
	v.ReduceDebt(fixedpoint.MustParse("60"), fixedpoint.MustParse("10"))
	if v.NormalizedBorrowedAmount.Cmp(fixedpoint.MustParse("38")) != 0 {
		t.Errorf("normalized debt = %s, want 38", fixedpoint.FormatDecimal(v.NormalizedBorrowedAmount))
	}
	if v.Principal.Sign() != 0 {
		t.Errorf("principal went below its floor")
	}
}

func TestStoreSums(t *testing.T) {
	store := vault.NewStore()

	a := store.GetOrCreate(uuid.New())
	b := store.GetOrCreate(uuid.New())

	a.AddCollateral(fixedpoint.MustParse("1000"))
	a.AddDebt(fixedpoint.MustParse("500"), fixedpoint.MustParse("490"))
	b.AddCollateral(fixedpoint.MustParse("250"))
	b.AddDebt(fixedpoint.MustParse("25"), fixedpoint.MustParse("25"))

	if store.SumCollateral().Cmp(fixedpoint.MustParse("1250")) != 0 {
		t.Errorf("SumCollateral = %s", fixedpoint.FormatDecimal(store.SumCollateral()))
	}
	if store.SumNormalizedDebt().Cmp(fixedpoint.MustParse("515")) != 0 {
		t.Errorf("SumNormalizedDebt = %s", fixedpoint.FormatDecimal(store.SumNormalizedDebt()))
	}
}

func TestAllIsDeterministicAndDetached(t *testing.T) {
	store := vault.NewStore()
	for i := 0; i < 8; i++ {
		store.GetOrCreate(uuid.New()).AddCollateral(fixedpoint.MustParse("1"))
	}

	first := store.All()
	second := store.All()
	for i := range first {
		if first[i].Account != second[i].Account {
			t.Fatalf("All() ordering not deterministic")
		}
	}

	// Mutating a clone must not touch the store
	first[0].AddCollateral(fixedpoint.MustParse("999"))
	v, _ := store.Get(first[0].Account)
	if v.CollateralAmount.Cmp(fixedpoint.MustParse("1")) != 0 {
		t.Errorf("All() returned live vaults")
	}
}
