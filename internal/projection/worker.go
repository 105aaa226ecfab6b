package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"

	"ArcVault/internal/core"
	"ArcVault/internal/ledger"
	"ArcVault/internal/observability"

	"github.com/rs/zerolog"
)

// Worker updates projection tables from committed events. The projection
// channel is non-blocking with drop: if this worker falls behind, dropped
// updates are recovered by rebuilding from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan core.CoreOutput
	lastSeq   int64
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan core.CoreOutput) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		log:       observability.NewLogger("projection"),
	}
}

// Run starts the projection loop.
func (pw *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				// Projections are eventually consistent and rebuildable
				pw.log.Warn().Int64("sequence", output.Envelope.Sequence).Err(err).Msg("projection update failed")
			}

			pw.lastSeq = output.Envelope.Sequence
		}
	}
}

func (pw *Worker) processOutput(ctx context.Context, output core.CoreOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	seq := output.Envelope.Sequence

	if output.Batch != nil {
		for _, j := range output.Batch.Journals {
			if err := pw.updateBalance(ctx, tx, j, seq); err != nil {
				return fmt.Errorf("balance projection: %w", err)
			}
		}
	}

	switch output.Envelope.EventType.String() {
	case "LiquidateRequested":
		if err := pw.recordLiquidation(ctx, tx, output); err != nil {
			return fmt.Errorf("liquidation history: %w", err)
		}
	case "MarketParamUpdated", "PauseToggled":
		if err := pw.recordParamChange(ctx, tx, output); err != nil {
			return fmt.Errorf("param history: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, seq); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// updateBalance applies one journal entry to the balances table. Debit
// accounts increase and credit accounts decrease, matching the in-memory
// ledger's convention.
func (pw *Worker) updateBalance(ctx context.Context, tx *sql.Tx, j ledger.Journal, seq int64) error {
	amount := j.Amount.String()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3::numeric, last_sequence = $4
	`, j.DebitAccount.AccountPath(), int16(j.AssetID), amount, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -($3::numeric), $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3::numeric, last_sequence = $4
	`, j.CreditAccount.AccountPath(), int16(j.AssetID), amount, seq); err != nil {
		return err
	}

	return nil
}

// recordLiquidation derives the outcome amounts from the batch journals:
// seizure entries carry collateral moved off the target, the fee entry the
// protocol's cut, and the burn entry the synthetic debt repaid.
func (pw *Worker) recordLiquidation(ctx context.Context, tx *sql.Tx, output core.CoreOutput) error {
	var payload struct {
		Target     string `json:"target"`
		Liquidator string `json:"liquidator"`
	}
	if err := json.Unmarshal(output.Envelope.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	seized := new(big.Int)
	feeCollateral := new(big.Int)
	debtRepaid := new(big.Int)
	if output.Batch != nil {
		for _, j := range output.Batch.Journals {
			switch j.JournalType {
			case ledger.JournalTypeLiquidationSeizure:
				seized.Add(seized, j.Amount)
			case ledger.JournalTypeLiquidationFee:
				seized.Add(seized, j.Amount)
				feeCollateral.Set(j.Amount)
			case ledger.JournalTypeLiquidationBurn:
				debtRepaid.Set(j.Amount)
			}
		}
	}

	marketID := ""
	if output.Envelope.MarketID != nil {
		marketID = *output.Envelope.MarketID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.liquidation_history
			(sequence, market_id, target, liquidator, collateral_seized, fee_collateral, debt_repaid, timestamp)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8)
		ON CONFLICT (sequence) DO NOTHING
	`, output.Envelope.Sequence, marketID, payload.Target, payload.Liquidator,
		seized.String(), feeCollateral.String(), debtRepaid.String(), output.Envelope.Timestamp)
	return err
}

func (pw *Worker) recordParamChange(ctx context.Context, tx *sql.Tx, output core.CoreOutput) error {
	var payload struct {
		Caller string `json:"caller"`
		Field  string `json:"field"`
		Value  string `json:"value"`
		Paused *bool  `json:"paused"`
	}
	if err := json.Unmarshal(output.Envelope.Payload, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	field := payload.Field
	value := payload.Value
	if payload.Paused != nil {
		field = "paused"
		value = fmt.Sprintf("%t", *payload.Paused)
	}

	marketID := ""
	if output.Envelope.MarketID != nil {
		marketID = *output.Envelope.MarketID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.param_history
			(sequence, market_id, caller, field, value, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sequence) DO NOTHING
	`, output.Envelope.Sequence, marketID, payload.Caller, field, value, output.Envelope.Timestamp)
	return err
}

// RebuildProjections rebuilds the balances table from the event log. History
// tables are truncated and refill as the event log is replayed through the
// engine.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	log := observability.NewLogger("projection")

	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.liquidation_history`,
		`TRUNCATE projections.param_history`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Debits increase balances
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			asset_id,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY debit_account, asset_id
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	// Credits decrease balances
	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			asset_id,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY credit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	log.Info().Msg("projection rebuild complete")
	return nil
}
