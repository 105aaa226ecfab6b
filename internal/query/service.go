package query

import (
	"context"
	"database/sql"
	"fmt"

	"ArcVault/internal/ledger"

	"github.com/google/uuid"
)

// Service provides read-only access to projection tables. Responses carry
// as_of_sequence so callers can tell how far behind the engine the data is.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetVaultBalances returns all ledger balances for an account: vault
// collateral plus the net synthetic position.
func (qs *Service) GetVaultBalances(ctx context.Context, account uuid.UUID) (*VaultBalancesResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	prefix := fmt.Sprintf("user:%s:%%", account)
	rows, err := qs.db.QueryContext(ctx, `
		SELECT account_path, asset_id, balance::text
		FROM projections.balances
		WHERE account_path LIKE $1
		ORDER BY account_path
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &VaultBalancesResponse{
		Account:      account,
		AsOfSequence: asOfSeq,
	}
	for rows.Next() {
		var b AssetBalance
		if err := rows.Scan(&b.AccountPath, &b.AssetID, &b.Balance); err != nil {
			return nil, err
		}
		if name, ok := ledger.GetAssetName(ledger.AssetID(b.AssetID)); ok {
			b.Asset = name
		}
		resp.Balances = append(resp.Balances, b)
	}

	return resp, rows.Err()
}

// GetJournalHistory returns journal entries touching an account, newest
// first, with cursor-based pagination on sequence.
func (qs *Service) GetJournalHistory(
	ctx context.Context,
	account uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("user:%s:%%", account)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount::text, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetLiquidationHistory returns completed liquidations, optionally filtered
// by market or target account, newest first.
func (qs *Service) GetLiquidationHistory(
	ctx context.Context,
	marketID *string,
	target *uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]LiquidationHistoryEntry, error) {
	query := `
		SELECT sequence, market_id, target, liquidator,
		       collateral_seized::text, fee_collateral::text, debt_repaid::text, timestamp::text
		FROM projections.liquidation_history
		WHERE TRUE
	`
	var args []interface{}
	argIdx := 1

	if marketID != nil {
		query += fmt.Sprintf(" AND market_id = $%d", argIdx)
		args = append(args, *marketID)
		argIdx++
	}
	if target != nil {
		query += fmt.Sprintf(" AND target = $%d", argIdx)
		args = append(args, *target)
		argIdx++
	}
	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LiquidationHistoryEntry
	for rows.Next() {
		var r LiquidationHistoryEntry
		if err := rows.Scan(
			&r.Sequence, &r.MarketID, &r.Target, &r.Liquidator,
			&r.CollateralSeized, &r.FeeCollateral, &r.DebtRepaid, &r.Timestamp,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// GetParamHistory returns applied admin changes for a market, newest first.
func (qs *Service) GetParamHistory(ctx context.Context, marketID string, limit int) ([]ParamHistoryEntry, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT sequence, market_id, caller, field, value, timestamp::text
		FROM projections.param_history
		WHERE market_id = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, marketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ParamHistoryEntry
	for rows.Next() {
		var r ParamHistoryEntry
		if err := rows.Scan(&r.Sequence, &r.MarketID, &r.Caller, &r.Field, &r.Value, &r.Timestamp); err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// VerifyIntegrity checks hash chain continuity and the global zero-sum
// invariant over the projected balances.
func (qs *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance)::text AS total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint16
		var total string
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// Watermark exposes the projection watermark for readiness checks.
func (qs *Service) Watermark(ctx context.Context) (int64, error) {
	return qs.getWatermark(ctx)
}

func (qs *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
