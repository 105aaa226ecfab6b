package score_test

import (
	"errors"
	"math/big"
	"testing"

	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/score"

	"github.com/google/uuid"
)

const testProtocol = "arc.credit"

func buildStore(t *testing.T, admin uuid.UUID, delay int64, entries map[uuid.UUID]*big.Int) (*score.MerkleStore, [][32]byte, []uuid.UUID) {
	t.Helper()

	store := score.NewMerkleStore(admin, fixedpoint.MustParse("1000"), delay)

	accounts := make([]uuid.UUID, 0, len(entries))
	for account := range entries {
		accounts = append(accounts, account)
	}

	leaves := make([][32]byte, len(accounts))
	for i, account := range accounts {
		leaves[i] = score.LeafHash(account, testProtocol, entries[account])
	}

	root := score.BuildRoot(leaves)
	if err := store.StageRoot(admin, testProtocol, root, 0); err != nil {
		t.Fatalf("StageRoot: %v", err)
	}
	return store, leaves, accounts
}

// ============================================================
// Proof verification
// ============================================================

func TestVerifyValidProof(t *testing.T) {
	admin := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()

	entries := map[uuid.UUID]*big.Int{
		alice: fixedpoint.MustParse("750"),
		bob:   fixedpoint.MustParse("200"),
		carol: fixedpoint.MustParse("999"),
	}
	store, leaves, accounts := buildStore(t, admin, 0, entries)

	for i, account := range accounts {
		proof := &score.Proof{
			Account:     account,
			Protocol:    testProtocol,
			Score:       entries[account],
			MerkleProof: score.BuildProof(leaves, i),
		}
		got, err := store.Verify(proof, 100)
		if err != nil {
			t.Fatalf("Verify(%s): %v", account, err)
		}
		if got.Cmp(entries[account]) != 0 {
			t.Errorf("Verify(%s) = %s, want %s", account,
				fixedpoint.FormatDecimal(got), fixedpoint.FormatDecimal(entries[account]))
		}
	}
}

func TestVerifyRejectsTamperedScore(t *testing.T) {
	admin := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	entries := map[uuid.UUID]*big.Int{
		alice: fixedpoint.MustParse("100"),
		bob:   fixedpoint.MustParse("900"),
	}
	store, leaves, accounts := buildStore(t, admin, 0, entries)

	proof := &score.Proof{
		Account:     accounts[0],
		Protocol:    testProtocol,
		Score:       fixedpoint.MustParse("1000"), // inflated
		MerkleProof: score.BuildProof(leaves, 0),
	}
	if _, err := store.Verify(proof, 100); !errors.Is(err, score.ErrInvalidProof) {
		t.Errorf("tampered score: err = %v, want ErrInvalidProof", err)
	}
}

func TestVerifyRejectsWrongAccount(t *testing.T) {
	admin := uuid.New()
	alice := uuid.New()
	bob := uuid.New()

	entries := map[uuid.UUID]*big.Int{
		alice: fixedpoint.MustParse("100"),
		bob:   fixedpoint.MustParse("900"),
	}
	store, leaves, accounts := buildStore(t, admin, 0, entries)

	// accounts[1]'s score presented under accounts[0]'s identity
	proof := &score.Proof{
		Account:     accounts[0],
		Protocol:    testProtocol,
		Score:       entries[accounts[1]],
		MerkleProof: score.BuildProof(leaves, 1),
	}
	if _, err := store.Verify(proof, 100); !errors.Is(err, score.ErrInvalidProof) {
		t.Errorf("wrong account: err = %v, want ErrInvalidProof", err)
	}
}

func TestVerifyUnknownProtocol(t *testing.T) {
	admin := uuid.New()
	store := score.NewMerkleStore(admin, fixedpoint.MustParse("1000"), 0)

	proof := &score.Proof{
		Account:  uuid.New(),
		Protocol: "unknown",
		Score:    fixedpoint.MustParse("10"),
	}
	if _, err := store.Verify(proof, 100); !errors.Is(err, score.ErrNoRoot) {
		t.Errorf("unknown protocol: err = %v, want ErrNoRoot", err)
	}
}

// ============================================================
// Root rotation roles and delay
// ============================================================

func TestStageRootUnauthorized(t *testing.T) {
	admin := uuid.New()
	store := score.NewMerkleStore(admin, fixedpoint.MustParse("1000"), 0)

	err := store.StageRoot(uuid.New(), testProtocol, [32]byte{1}, 0)
	if !errors.Is(err, score.ErrUnauthorized) {
		t.Errorf("stranger StageRoot: err = %v, want ErrUnauthorized", err)
	}
}

func TestUpdaterMayStageAdminMaySetUpdater(t *testing.T) {
	admin := uuid.New()
	updater := uuid.New()
	store := score.NewMerkleStore(admin, fixedpoint.MustParse("1000"), 0)

	if err := store.SetUpdater(updater, updater); !errors.Is(err, score.ErrUnauthorized) {
		t.Fatalf("non-admin SetUpdater: err = %v, want ErrUnauthorized", err)
	}
	if err := store.SetUpdater(admin, updater); err != nil {
		t.Fatalf("admin SetUpdater: %v", err)
	}
	if err := store.StageRoot(updater, testProtocol, [32]byte{2}, 0); err != nil {
		t.Errorf("updater StageRoot: %v", err)
	}
}

func TestPendingRootActivatesAfterDelay(t *testing.T) {
	admin := uuid.New()
	const delay = 604800 // 7 days

	store := score.NewMerkleStore(admin, fixedpoint.MustParse("1000"), delay)

	first := [32]byte{1}
	if err := store.StageRoot(admin, testProtocol, first, 1000); err != nil {
		t.Fatalf("StageRoot: %v", err)
	}

	if _, ok := store.ActiveRoot(testProtocol, 1000); ok {
		t.Fatal("root active before delay elapsed")
	}
	if _, ok := store.ActiveRoot(testProtocol, 1000+delay-1); ok {
		t.Fatal("root active one second early")
	}

	root, ok := store.ActiveRoot(testProtocol, 1000+delay)
	if !ok || root != first {
		t.Fatalf("root not active after delay")
	}

	// A replacement staged later does not displace the active root until its
	// own delay elapses.
	second := [32]byte{2}
	if err := store.StageRoot(admin, testProtocol, second, 1000+delay); err != nil {
		t.Fatalf("StageRoot: %v", err)
	}
	root, _ = store.ActiveRoot(testProtocol, 1000+delay+1)
	if root != first {
		t.Errorf("active root replaced before second delay elapsed")
	}
	root, _ = store.ActiveRoot(testProtocol, 1000+2*delay)
	if root != second {
		t.Errorf("second root never activated")
	}
}
