package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// JournalGenerator creates balanced journal batches from committed actions
type JournalGenerator struct {
	sequence       int64
	balanceTracker *BalanceTracker // reference for pre-checks
}

func NewJournalGenerator(startSequence int64, tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		sequence:       startSequence,
		balanceTracker: tracker,
	}
}

// SetSequence re-aligns the generator after snapshot recovery.
func (jg *JournalGenerator) SetSequence(seq int64) {
	jg.sequence = seq
}

// GenerateDeposit moves collateral in: external:collateral_pool → user:collateral
func (jg *JournalGenerator) GenerateDeposit(
	userID uuid.UUID,
	actionRef string,
	amount *big.Int,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  actionRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      actionRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewUserAccountKey(userID, SubTypeCollateral, assetID),
		CreditAccount: NewExternalAccountKey(SubTypeExternalCollateralPool, assetID),
		AssetID:       assetID,
		Amount:        new(big.Int).Set(amount),
		JournalType:   JournalTypeCollateralDeposit,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateWithdrawal moves collateral out: user:collateral → external:collateral_pool.
// Pre-check: the user's collateral account must cover the amount.
func (jg *JournalGenerator) GenerateWithdrawal(
	userID uuid.UUID,
	actionRef string,
	amount *big.Int,
	assetID AssetID,
	timestamp int64,
) (*Batch, error) {
	key := NewUserAccountKey(userID, SubTypeCollateral, assetID)
	if err := jg.balanceTracker.ValidateSufficient(key, amount); err != nil {
		return nil, fmt.Errorf("withdrawal pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  actionRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      actionRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewExternalAccountKey(SubTypeExternalCollateralPool, assetID),
		CreditAccount: key,
		AssetID:       assetID,
		Amount:        new(big.Int).Set(amount),
		JournalType:   JournalTypeCollateralWithdrawal,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateMint issues synthetic to a borrower against the supply
// counter-account: external:synthetic_pool → user:synthetic
func (jg *JournalGenerator) GenerateMint(
	userID uuid.UUID,
	actionRef string,
	amount *big.Int,
	syntheticID AssetID,
	timestamp int64,
) (*Batch, error) {
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  actionRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      actionRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewUserAccountKey(userID, SubTypeSynthetic, syntheticID),
		CreditAccount: NewExternalAccountKey(SubTypeExternalSyntheticPool, syntheticID),
		AssetID:       syntheticID,
		Amount:        new(big.Int).Set(amount),
		JournalType:   JournalTypeSyntheticMint,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateBurn retires synthetic from a repayer: user:synthetic → external:synthetic_pool.
// The user's synthetic account is a net minted-minus-burned position and may
// go negative: interest means a borrower repays more than they ever minted,
// sourcing the difference outside the protocol.
func (jg *JournalGenerator) GenerateBurn(
	userID uuid.UUID,
	actionRef string,
	amount *big.Int,
	syntheticID AssetID,
	timestamp int64,
) (*Batch, error) {
	key := NewUserAccountKey(userID, SubTypeSynthetic, syntheticID)
	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  actionRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 1),
	}

	journal := Journal{
		JournalID:     uuid.New(),
		BatchID:       batchID,
		EventRef:      actionRef,
		Sequence:      jg.sequence,
		DebitAccount:  NewExternalAccountKey(SubTypeExternalSyntheticPool, syntheticID),
		CreditAccount: key,
		AssetID:       syntheticID,
		Amount:        new(big.Int).Set(amount),
		JournalType:   JournalTypeSyntheticBurn,
		Timestamp:     timestamp,
	}

	batch.Journals = append(batch.Journals, journal)
	jg.sequence++

	return batch, nil
}

// GenerateLiquidation emits the multi-leg batch for one liquidation:
// seized collateral to the liquidator, the protocol's fee share to the fee
// sink, and the repaid synthetic burned from the liquidator.
func (jg *JournalGenerator) GenerateLiquidation(
	targetID uuid.UUID,
	liquidatorID uuid.UUID,
	actionRef string,
	marketID string,
	collateralToLiquidator *big.Int,
	collateralToFeeSink *big.Int,
	debtRepaid *big.Int,
	collateralAssetID AssetID,
	syntheticID AssetID,
	timestamp int64,
) (*Batch, error) {
	targetKey := NewUserAccountKey(targetID, SubTypeCollateral, collateralAssetID)

	seized := new(big.Int).Add(collateralToLiquidator, collateralToFeeSink)
	if err := jg.balanceTracker.ValidateSufficient(targetKey, seized); err != nil {
		return nil, fmt.Errorf("liquidation pre-check failed: %w", err)
	}

	batchID := uuid.New()

	batch := &Batch{
		BatchID:   batchID,
		EventRef:  actionRef,
		Sequence:  jg.sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, 3),
	}

	if collateralToLiquidator.Sign() > 0 {
		batch.Journals = append(batch.Journals, Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      actionRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewUserAccountKey(liquidatorID, SubTypeCollateral, collateralAssetID),
			CreditAccount: targetKey,
			AssetID:       collateralAssetID,
			Amount:        new(big.Int).Set(collateralToLiquidator),
			JournalType:   JournalTypeLiquidationSeizure,
			Timestamp:     timestamp,
		})
	}

	if collateralToFeeSink.Sign() > 0 {
		batch.Journals = append(batch.Journals, Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      actionRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewSystemAccountKey(marketID, SubTypeSystemFeeSink, collateralAssetID),
			CreditAccount: targetKey,
			AssetID:       collateralAssetID,
			Amount:        new(big.Int).Set(collateralToFeeSink),
			JournalType:   JournalTypeLiquidationFee,
			Timestamp:     timestamp,
		})
	}

	if debtRepaid.Sign() > 0 {
		batch.Journals = append(batch.Journals, Journal{
			JournalID:     uuid.New(),
			BatchID:       batchID,
			EventRef:      actionRef,
			Sequence:      jg.sequence,
			DebitAccount:  NewExternalAccountKey(SubTypeExternalSyntheticPool, syntheticID),
			CreditAccount: NewUserAccountKey(liquidatorID, SubTypeSynthetic, syntheticID),
			AssetID:       syntheticID,
			Amount:        new(big.Int).Set(debtRepaid),
			JournalType:   JournalTypeLiquidationBurn,
			Timestamp:     timestamp,
		})
	}

	jg.sequence++
	return batch, nil
}
