package oracle_test

import (
	"errors"
	"testing"

	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/oracle"
)

func TestCurrentPriceBeforeAnyUpdate(t *testing.T) {
	c := oracle.NewCache()
	if _, err := c.CurrentPrice("arc-usd"); !errors.Is(err, oracle.ErrNoPrice) {
		t.Errorf("err = %v, want ErrNoPrice", err)
	}
}

func TestObserveOrdering(t *testing.T) {
	c := oracle.NewCache()

	if !c.Observe("arc-usd", fixedpoint.MustParse("1.0"), 5, 100) {
		t.Fatal("first observation rejected")
	}

	// Stale sequence dropped
	if c.Observe("arc-usd", fixedpoint.MustParse("0.9"), 5, 101) {
		t.Error("duplicate sequence accepted")
	}
	if c.Observe("arc-usd", fixedpoint.MustParse("0.9"), 3, 101) {
		t.Error("stale sequence accepted")
	}

	// Gap tolerated
	if !c.Observe("arc-usd", fixedpoint.MustParse("0.5"), 9, 102) {
		t.Error("gapped sequence rejected")
	}

	price, err := c.CurrentPrice("arc-usd")
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if price.Cmp(fixedpoint.MustParse("0.5")) != 0 {
		t.Errorf("price = %s, want 0.5", fixedpoint.FormatDecimal(price))
	}
}

func TestObserveRejectsNonPositive(t *testing.T) {
	c := oracle.NewCache()
	if c.Observe("arc-usd", fixedpoint.MustParse("0"), 1, 100) {
		t.Error("zero price accepted")
	}
}

func TestSnapshotRestore(t *testing.T) {
	c := oracle.NewCache()
	c.Observe("arc-usd", fixedpoint.MustParse("0.5"), 9, 102)

	restored := oracle.NewCache()
	restored.Restore(c.Snapshot())

	price, err := restored.CurrentPrice("arc-usd")
	if err != nil || price.Cmp(fixedpoint.MustParse("0.5")) != 0 {
		t.Errorf("restored price = %v (%v)", price, err)
	}

	// Sequence ordering survives restore
	if restored.Observe("arc-usd", fixedpoint.MustParse("1.0"), 9, 103) {
		t.Error("restored cache accepted a stale sequence")
	}
}
