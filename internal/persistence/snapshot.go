package persistence

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"ArcVault/internal/core"
	"ArcVault/internal/ledger"
	"ArcVault/internal/oracle"
	"ArcVault/internal/vault"

	"github.com/google/uuid"
)

// SnapshotManager creates and loads state snapshots for recovery. A snapshot
// captures the borrow index, totals, every vault, every ledger balance, the
// price cache, sequence counters, and recent idempotency keys. On warm
// restart the engine restores from the latest verified snapshot and replays
// the event log forward.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serialized form of the engine state. Amounts are
// decimal strings since JSON numbers cannot hold 18-decimal fixed-point
// values without loss.
type SnapshotData struct {
	Sequence                int64                    `json:"sequence"`
	StateHash               []byte                   `json:"state_hash"`
	BorrowIndex             string                   `json:"borrow_index"`
	IndexLastUpdate         int64                    `json:"index_last_update"`
	RatePerSecond           string                   `json:"rate_per_second"`
	TotalCollateral         string                   `json:"total_collateral"`
	TotalNormalizedBorrowed string                   `json:"total_normalized_borrowed"`
	Paused                  bool                     `json:"paused"`
	Vaults                  []VaultSnapshot          `json:"vaults"`
	Balances                []BalanceSnapshot        `json:"balances"`
	Prices                  map[string]PriceSnapshot `json:"prices"`
	SequenceState           map[string]int64         `json:"sequence_state"`
	IdempotencyKeys         []string                 `json:"idempotency_keys"`
	CreatedAt               time.Time                `json:"created_at"`
}

// VaultSnapshot is a serializable vault.
type VaultSnapshot struct {
	Account    string `json:"account"`
	Collateral string `json:"collateral"`
	Principal  string `json:"principal"`
	Normalized string `json:"normalized"`
}

// BalanceSnapshot is a serializable ledger balance. The account key is stored
// structurally rather than as a path because paths are not parseable back.
type BalanceSnapshot struct {
	Scope    uint8  `json:"scope"`
	EntityID string `json:"entity_id"` // hex
	SubType  uint8  `json:"sub_type"`
	AssetID  uint16 `json:"asset_id"`
	Balance  string `json:"balance"`
}

// PriceSnapshot is a serializable price cache entry.
type PriceSnapshot struct {
	Price         string `json:"price"`
	PriceSequence int64  `json:"price_sequence"`
	Timestamp     int64  `json:"timestamp"`
}

// EncodeSnapshot converts engine state into its serialized form.
func EncodeSnapshot(snap *core.SnapshotState) *SnapshotData {
	sd := &SnapshotData{
		Sequence:                snap.Sequence,
		StateHash:               snap.StateHash[:],
		BorrowIndex:             snap.BorrowIndex.String(),
		IndexLastUpdate:         snap.IndexLastUpdate,
		RatePerSecond:           snap.RatePerSecond.String(),
		TotalCollateral:         snap.TotalCollateral.String(),
		TotalNormalizedBorrowed: snap.TotalNormalizedBorrowed.String(),
		Paused:                  snap.Paused,
		Prices:                  make(map[string]PriceSnapshot, len(snap.Prices)),
		SequenceState:           snap.SequenceState,
		IdempotencyKeys:         snap.IdempotencyKeys,
		CreatedAt:               time.Now().UTC(),
	}

	for _, v := range snap.Vaults {
		sd.Vaults = append(sd.Vaults, VaultSnapshot{
			Account:    v.Account.String(),
			Collateral: v.CollateralAmount.String(),
			Principal:  v.Principal.String(),
			Normalized: v.NormalizedBorrowedAmount.String(),
		})
	}

	for key, bal := range snap.Balances {
		sd.Balances = append(sd.Balances, BalanceSnapshot{
			Scope:    uint8(key.Scope),
			EntityID: hex.EncodeToString(key.EntityID[:]),
			SubType:  uint8(key.SubType),
			AssetID:  uint16(key.AssetID),
			Balance:  bal.String(),
		})
	}

	for marketID, p := range snap.Prices {
		sd.Prices[marketID] = PriceSnapshot{
			Price:         p.Price.String(),
			PriceSequence: p.PriceSequence,
			Timestamp:     p.Timestamp,
		}
	}

	return sd
}

// DecodeSnapshot converts serialized state back into the engine's shape.
func DecodeSnapshot(sd *SnapshotData) (*core.SnapshotState, error) {
	snap := &core.SnapshotState{
		Sequence:        sd.Sequence,
		IndexLastUpdate: sd.IndexLastUpdate,
		Paused:          sd.Paused,
		Balances:        make(map[ledger.AccountKey]*big.Int, len(sd.Balances)),
		Prices:          make(map[string]oracle.MarketPrice, len(sd.Prices)),
		SequenceState:   sd.SequenceState,
		IdempotencyKeys: sd.IdempotencyKeys,
	}
	copy(snap.StateHash[:], sd.StateHash)

	var err error
	if snap.BorrowIndex, err = parseBig(sd.BorrowIndex, "borrow_index"); err != nil {
		return nil, err
	}
	if snap.RatePerSecond, err = parseBig(sd.RatePerSecond, "rate_per_second"); err != nil {
		return nil, err
	}
	if snap.TotalCollateral, err = parseBig(sd.TotalCollateral, "total_collateral"); err != nil {
		return nil, err
	}
	if snap.TotalNormalizedBorrowed, err = parseBig(sd.TotalNormalizedBorrowed, "total_normalized_borrowed"); err != nil {
		return nil, err
	}

	for _, vs := range sd.Vaults {
		account, err := uuid.Parse(vs.Account)
		if err != nil {
			return nil, fmt.Errorf("snapshot vault account: %w", err)
		}
		v := &vault.Vault{Account: account}
		if v.CollateralAmount, err = parseBig(vs.Collateral, "vault collateral"); err != nil {
			return nil, err
		}
		if v.Principal, err = parseBig(vs.Principal, "vault principal"); err != nil {
			return nil, err
		}
		if v.NormalizedBorrowedAmount, err = parseBig(vs.Normalized, "vault normalized"); err != nil {
			return nil, err
		}
		snap.Vaults = append(snap.Vaults, v)
	}

	for _, bs := range sd.Balances {
		rawEntity, err := hex.DecodeString(bs.EntityID)
		if err != nil || len(rawEntity) != 16 {
			return nil, fmt.Errorf("snapshot balance entity_id: not a 16-byte hex string")
		}
		key := ledger.AccountKey{
			Scope:   ledger.AccountScope(bs.Scope),
			SubType: ledger.AccountSubType(bs.SubType),
			AssetID: ledger.AssetID(bs.AssetID),
		}
		copy(key.EntityID[:], rawEntity)
		bal, err := parseBig(bs.Balance, "balance")
		if err != nil {
			return nil, err
		}
		snap.Balances[key] = bal
	}

	for marketID, ps := range sd.Prices {
		price, err := parseBig(ps.Price, "price")
		if err != nil {
			return nil, err
		}
		snap.Prices[marketID] = oracle.MarketPrice{
			Price:         price,
			PriceSequence: ps.PriceSequence,
			Timestamp:     ps.Timestamp,
		}
	}

	return snap, nil
}

func parseBig(s, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %q is not a decimal integer", field, s)
	}
	return v, nil
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot. Snapshots are written unverified; the
// caller marks them verified after replaying forward and matching the state
// hash.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, snapshotID, snap.Sequence, data, snap.StateHash, formatVersion, len(data), snap.CreatedAt)

	return len(data), err
}

// LoadLatestSnapshot loads the most recent verified snapshot, or nil on a
// cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as verified after integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events from a given sequence for replay.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, market_id, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.MarketID,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
