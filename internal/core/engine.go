package core

import (
	"fmt"
	"math/big"
	"time"

	"ArcVault/internal/event"
	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/ledger"
	"ArcVault/internal/liquidation"
	"ArcVault/internal/market"
	"ArcVault/internal/observability"
	"ArcVault/internal/oracle"
	"ArcVault/internal/score"
	"ArcVault/internal/vault"

	"github.com/google/uuid"
)

// ActionEngine is the single-threaded event processor. It owns every mutable
// piece of protocol state: the market, the vaults, the ledger balances, the
// price cache and the score roots. Events arrive in stream order; each one is
// deduplicated, sequence-checked, dispatched to a handler and committed
// atomically (guards run before any write, so a rejection touches nothing).
type ActionEngine struct {
	sequence          int64
	hasher            *StateHasher
	market            *market.Market
	vaults            *vault.Store
	prices            *oracle.Cache
	scores            *score.MerkleStore
	balanceTracker    *ledger.BalanceTracker
	journalGen        *ledger.JournalGenerator
	validator         *ledger.InvariantValidator
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	collateralAsset ledger.AssetID
	syntheticAsset  ledger.AssetID

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput carries one committed event downstream.
type CoreOutput struct {
	Envelope   *event.EventEnvelope
	Batch      *ledger.Batch
	StateDelta []byte
}

func NewActionEngine(
	startSequence int64,
	mkt *market.Market,
	scores *score.MerkleStore,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) (*ActionEngine, error) {
	collateralAsset, ok := ledger.GetAssetID(mkt.Config.CollateralAssetID)
	if !ok {
		return nil, fmt.Errorf("unknown collateral asset: %s", mkt.Config.CollateralAssetID)
	}
	syntheticAsset, ok := ledger.GetAssetID(mkt.Config.SyntheticAssetID)
	if !ok {
		return nil, fmt.Errorf("unknown synthetic asset: %s", mkt.Config.SyntheticAssetID)
	}

	balanceTracker := ledger.NewBalanceTracker()

	return &ActionEngine{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		market:            mkt,
		vaults:            vault.NewStore(),
		prices:            oracle.NewCache(),
		scores:            scores,
		balanceTracker:    balanceTracker,
		journalGen:        ledger.NewJournalGenerator(startSequence, balanceTracker),
		validator:         ledger.NewInvariantValidator(balanceTracker),
		idempotency:       NewIdempotencyChecker(1_000_000, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		collateralAsset:   collateralAsset,
		syntheticAsset:    syntheticAsset,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}, nil
}

// ProcessEvent is the main processing pipeline. rawPayload is the original
// wire bytes of the event, stored in the envelope so replay re-parses the
// exact input.
func (c *ActionEngine) ProcessEvent(evt event.Event, rawPayload []byte) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Price updates dedup by price sequence, not idempotency key.
	if priceEvt, ok := evt.(*event.PriceUpdated); ok {
		return c.processPriceUpdate(priceEvt, rawPayload, start)
	}

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(eventType, idempotencyKey)

	// Step 2: Sequence validation. On a gap or out-of-order delivery the
	// event is NOT marked processed, so redelivery in order succeeds.
	partition := c.getPartition(evt)
	if err := c.sequenceValidator.ValidateSequence(partition, evt.SourceSequence(), idempotencyKey, isDuplicate); err != nil {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "sequence").Inc()
		}
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch. A handler rejection is final: the action id is
	// marked processed so a replayed duplicate is not re-evaluated against
	// later state.
	batch, err := c.dispatchEvent(evt)
	if err != nil {
		c.idempotency.MarkProcessed(eventType, idempotencyKey)
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, RejectReason(err)).Inc()
		}
		return err
	}

	// Step 4: Apply the journal batch. Admin events (param updates, pause,
	// score roots) mutate state without journals and return a nil batch.
	if batch != nil && len(batch.Journals) > 0 {
		if err := c.validator.ValidateBatchBalance(batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}
		if err := c.balanceTracker.ApplyBatch(batch); err != nil {
			panic(fmt.Sprintf("FATAL: batch application failed after guards: %v", err))
		}
		if c.metrics != nil {
			for _, j := range batch.Journals {
				c.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
			}
		}
	}

	// Step 5: Post-commit invariants. A violation here is a bug, not a
	// recoverable rejection: the engine halts rather than persist a
	// corrupted state.
	c.postCheckInvariants()

	// Step 6: Hash chain and envelope
	c.commit(evt.EventType(), idempotencyKey, evt.MarketID(), evt.EventTime(), evt.SourceSequence(), rawPayload, batch)

	// Step 7: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	c.recordApplied(eventType, start)
	return nil
}

// processPriceUpdate is the price-feed path: gap-tolerant sequencing, stale
// observations skipped silently, no journals.
func (c *ActionEngine) processPriceUpdate(evt *event.PriceUpdated, rawPayload []byte, start time.Time) error {
	eventType := evt.EventType().String()

	if err := c.sequenceValidator.ValidatePriceSequence(evt.Market, evt.PriceSequence); err != nil {
		return err
	}

	if !c.prices.Observe(evt.Market, evt.Price, evt.PriceSequence, evt.Timestamp.Unix()) {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "stale_price").Inc()
		}
		return nil
	}

	// Price time is event time; fold accrued interest at each observation.
	c.market.Index.UpdateIndex(evt.Timestamp.Unix())

	key := fmt.Sprintf("price:%s:%d", evt.Market, evt.PriceSequence)
	c.commit(evt.EventType(), key, evt.MarketID(), evt.Timestamp, evt.PriceSequence, rawPayload, nil)

	c.recordApplied(eventType, start)
	return nil
}

// commit computes the state hash, builds the envelope and emits the output.
func (c *ActionEngine) commit(
	eventType event.EventType,
	idempotencyKey string,
	marketID *string,
	timestamp time.Time,
	sourceSequence int64,
	rawPayload []byte,
	batch *ledger.Batch,
) {
	stateDigest := computeStateDigest(c.market, c.vaults, c.balanceTracker, c.prices)
	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	envelope := &event.EventEnvelope{
		Sequence:       c.sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      eventType,
		MarketID:       marketID,
		Timestamp:      timestamp,
		SourceSequence: sourceSequence,
		Payload:        rawPayload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := CoreOutput{
		Envelope:   envelope,
		Batch:      batch,
		StateDelta: stateDigest,
	}

	// Persistence: blocking send. The engine stalls until the persistence
	// worker drains, guaranteeing no committed event is lost.
	select {
	case c.persistChan <- output:
	default:
		if c.metrics != nil {
			c.metrics.PersistBackpressure.Inc()
		}
		c.persistChan <- output
	}

	// Projections: non-blocking send, drop on full. Projection workers
	// rebuild from the event log when they fall behind.
	select {
	case c.projectionChan <- output:
	default:
		if c.metrics != nil {
			c.metrics.ProjectionDrops.Inc()
		}
	}

	c.sequence++
}

func (c *ActionEngine) recordApplied(eventType string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
	c.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	c.metrics.CoreSequence.Set(float64(c.sequence))

	id := c.market.Config.MarketID
	observability.SetAmountGauge(c.metrics.BorrowIndex.WithLabelValues(id), c.market.Index.BorrowIndex())
	observability.SetAmountGauge(c.metrics.TotalCollateral.WithLabelValues(id), c.market.TotalCollateral)
	observability.SetAmountGauge(c.metrics.TotalNormalizedBorrowed.WithLabelValues(id), c.market.TotalNormalizedBorrowed)
	c.metrics.VaultCount.WithLabelValues(id).Set(float64(c.vaults.Len()))
	if c.market.Paused {
		c.metrics.MarketPaused.WithLabelValues(id).Set(1)
	} else {
		c.metrics.MarketPaused.WithLabelValues(id).Set(0)
	}
}

// getPartition determines the partition key for sequence validation. Admin
// events ride a separate partition from user actions so a stalled admin
// stream cannot block deposits.
func (c *ActionEngine) getPartition(evt event.Event) string {
	switch evt.(type) {
	case *event.MarketParamUpdated, *event.PauseToggled, *event.ScoreRootUpdated:
		if id := evt.MarketID(); id != nil {
			return "admin:" + *id
		}
		return "admin:global"
	default:
		if id := evt.MarketID(); id != nil {
			return "actions:" + *id
		}
		return "actions:global"
	}
}

// postCheckInvariants verifies the cross-cutting conservation invariants
// after every committed action.
func (c *ActionEngine) postCheckInvariants() {
	if c.market.TotalCollateral.Cmp(c.vaults.SumCollateral()) != 0 {
		panic(fmt.Sprintf("FATAL: total collateral %s diverged from vault sum %s at seq %d",
			c.market.TotalCollateral, c.vaults.SumCollateral(), c.sequence))
	}
	if c.market.TotalNormalizedBorrowed.Cmp(c.vaults.SumNormalizedDebt()) != 0 {
		panic(fmt.Sprintf("FATAL: total normalized debt %s diverged from vault sum %s at seq %d",
			c.market.TotalNormalizedBorrowed, c.vaults.SumNormalizedDebt(), c.sequence))
	}

	// Periodic full zero-sum check across all ledger accounts.
	if c.sequence > 0 && c.sequence%1000 == 0 {
		if err := c.validator.ValidateGlobalBalance(); err != nil {
			panic(fmt.Sprintf("FATAL: ledger zero-sum violated at seq %d: %v", c.sequence, err))
		}
	}
}

func (c *ActionEngine) dispatchEvent(evt event.Event) (*ledger.Batch, error) {
	switch e := evt.(type) {
	case *event.DepositRequested:
		return c.handleDeposit(e)
	case *event.BorrowRequested:
		return c.handleBorrow(e)
	case *event.RepayRequested:
		return c.handleRepay(e)
	case *event.WithdrawRequested:
		return c.handleWithdraw(e)
	case *event.LiquidateRequested:
		return c.handleLiquidate(e)
	case *event.MarketParamUpdated:
		return c.handleParamUpdate(e)
	case *event.PauseToggled:
		return c.handlePauseToggled(e)
	case *event.ScoreRootUpdated:
		return c.handleScoreRootUpdated(e)
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// resolveScore validates an optional proof against the active root. A proof
// for a different account is rejected rather than silently ignored.
func (c *ActionEngine) resolveScore(account uuid.UUID, proof *score.Proof, now int64) (*big.Int, error) {
	if proof == nil {
		return nil, nil
	}
	if proof.Account != account {
		return nil, ErrInvalidScoreProof
	}
	verified, err := c.scores.Verify(proof, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScoreProof, err)
	}
	return verified, nil
}

// quantizeCollateral truncates an 18-decimal amount to the collateral
// asset's native grid. Sub-native dust is dropped, never rounded up.
func (c *ActionEngine) quantizeCollateral(amount *big.Int) *big.Int {
	d := c.market.Config.CollateralNativeDecimal
	return fixedpoint.FromNativeDecimals(fixedpoint.ToNativeDecimals(amount, d), d)
}

func (c *ActionEngine) handleDeposit(evt *event.DepositRequested) (*ledger.Batch, error) {
	if c.market.Paused {
		return nil, ErrPaused
	}
	if evt.Amount == nil || evt.Amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	// Wire amounts are 18-decimal protocol units, but the transfer itself
	// happens at the collateral's native precision. Truncate to the native
	// grid so the vault is never credited more than was transferred in.
	amount := c.quantizeCollateral(evt.Amount)
	if amount.Sign() == 0 {
		return nil, ErrZeroAmount
	}

	c.market.Index.UpdateIndex(evt.Timestamp.Unix())

	batch, err := c.journalGen.GenerateDeposit(
		evt.Account, evt.IdempotencyKey(), amount, c.collateralAsset, evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, err
	}

	v := c.vaults.GetOrCreate(evt.Account)
	v.AddCollateral(amount)
	c.market.AddCollateral(amount)

	return batch, nil
}

func (c *ActionEngine) handleBorrow(evt *event.BorrowRequested) (*ledger.Batch, error) {
	if c.market.Paused {
		return nil, ErrPaused
	}
	if evt.Amount == nil || evt.Amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	now := evt.Timestamp.Unix()
	c.market.Index.UpdateIndex(now)

	verifiedScore, err := c.resolveScore(evt.Account, evt.ScoreProof, now)
	if err != nil {
		return nil, err
	}

	price, err := c.prices.CurrentPrice(evt.Market)
	if err != nil {
		return nil, err
	}

	v := c.vaults.GetOrCreate(evt.Account)

	// Prospective debt after this borrow, at the current index.
	normalized := c.market.Index.Normalize(evt.Amount)
	newNormalized := new(big.Int).Add(v.NormalizedBorrowedAmount, normalized)
	realDebt := c.market.Index.Denormalize(newNormalized)

	cfg := c.market.Config
	if cfg.VaultBorrowMinimum != nil && cfg.VaultBorrowMinimum.Sign() > 0 &&
		realDebt.Cmp(cfg.VaultBorrowMinimum) < 0 {
		return nil, ErrBelowMinimumPosition
	}
	if cfg.VaultBorrowMaximum != nil && cfg.VaultBorrowMaximum.Sign() > 0 &&
		realDebt.Cmp(cfg.VaultBorrowMaximum) > 0 {
		return nil, ErrAboveMaximumPosition
	}

	required, err := c.market.RequiredRatio(verifiedScore)
	if err != nil {
		return nil, err
	}
	collateralValue := fixedpoint.MulDown(v.CollateralAmount, price)
	ratio := fixedpoint.DivDown(collateralValue, realDebt)
	if ratio.Cmp(required) < 0 {
		return nil, ErrUndercollateralized
	}

	batch, err := c.journalGen.GenerateMint(
		evt.Account, evt.IdempotencyKey(), evt.Amount, c.syntheticAsset, evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, err
	}

	v.AddDebt(evt.Amount, normalized)
	c.market.AddNormalizedBorrowed(normalized)

	return batch, nil
}

func (c *ActionEngine) handleRepay(evt *event.RepayRequested) (*ledger.Batch, error) {
	if c.market.Paused {
		return nil, ErrPaused
	}
	if evt.Amount == nil || evt.Amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	c.market.Index.UpdateIndex(evt.Timestamp.Unix())

	v := c.vaults.GetOrCreate(evt.Account)
	realDebt := c.market.Index.Denormalize(v.NormalizedBorrowedAmount)
	if evt.Amount.Cmp(realDebt) > 0 {
		return nil, ErrInsufficientDebtToRepay
	}

	// Normalize rounds up, and realDebt was itself rounded up, so repaying
	// the exact real debt can overshoot the vault's normalized balance by
	// one unit. Clamp to the balance and retire the SAME delta from the
	// vault and the global total, or the two drift apart.
	normalized := fixedpoint.Min(c.market.Index.Normalize(evt.Amount), v.NormalizedBorrowedAmount)

	batch, err := c.journalGen.GenerateBurn(
		evt.Account, evt.IdempotencyKey(), evt.Amount, c.syntheticAsset, evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, err
	}

	// Normalized debt and principal floor independently: an interest-only
	// repayment retires normalized units against an already-zero principal.
	v.ReduceDebt(evt.Amount, normalized)
	c.market.SubNormalizedBorrowedFloored(normalized)

	return batch, nil
}

func (c *ActionEngine) handleWithdraw(evt *event.WithdrawRequested) (*ledger.Batch, error) {
	if c.market.Paused {
		return nil, ErrPaused
	}
	if evt.Amount == nil || evt.Amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}

	// Withdrawals pay out at native precision; truncate to the grid like
	// deposits so the two paths agree.
	amount := c.quantizeCollateral(evt.Amount)
	if amount.Sign() == 0 {
		return nil, ErrZeroAmount
	}

	now := evt.Timestamp.Unix()
	c.market.Index.UpdateIndex(now)

	v := c.vaults.GetOrCreate(evt.Account)
	if amount.Cmp(v.CollateralAmount) > 0 {
		return nil, ErrInsufficientCollateral
	}

	verifiedScore, err := c.resolveScore(evt.Account, evt.ScoreProof, now)
	if err != nil {
		return nil, err
	}

	if v.HasDebt() {
		price, err := c.prices.CurrentPrice(evt.Market)
		if err != nil {
			return nil, err
		}
		realDebt := c.market.Index.Denormalize(v.NormalizedBorrowedAmount)
		remaining := new(big.Int).Sub(v.CollateralAmount, amount)

		required, err := c.market.RequiredRatio(verifiedScore)
		if err != nil {
			return nil, err
		}
		ratio := fixedpoint.DivDown(fixedpoint.MulDown(remaining, price), realDebt)
		if ratio.Cmp(required) < 0 {
			return nil, ErrUndercollateralized
		}
	}

	batch, err := c.journalGen.GenerateWithdrawal(
		evt.Account, evt.IdempotencyKey(), amount, c.collateralAsset, evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, err
	}

	v.SubCollateral(amount)
	c.market.AddCollateral(new(big.Int).Neg(amount))

	return batch, nil
}

func (c *ActionEngine) handleLiquidate(evt *event.LiquidateRequested) (*ledger.Batch, error) {
	if c.market.Paused {
		return nil, ErrPaused
	}

	now := evt.Timestamp.Unix()
	c.market.Index.UpdateIndex(now)

	target := c.vaults.GetOrCreate(evt.Target)
	realDebt := c.market.Index.Denormalize(target.NormalizedBorrowedAmount)

	price, err := c.prices.CurrentPrice(evt.Market)
	if err != nil {
		return nil, err
	}

	// The optional proof attests the TARGET's score: a higher score lowers
	// the required ratio and can make the vault ineligible.
	verifiedScore, err := c.resolveScore(evt.Target, evt.ScoreProof, now)
	if err != nil {
		return nil, err
	}
	required, err := c.market.RequiredRatio(verifiedScore)
	if err != nil {
		return nil, err
	}

	cfg := c.market.Config
	outcome, err := liquidation.Quote(target.CollateralAmount, realDebt, liquidation.Params{
		Price:             price,
		RequiredRatio:     required,
		SafetyMarginRatio: cfg.LiquidationSafetyMarginRatio,
		UserFeeRatio:      cfg.LiquidationUserFeeRatio,
		ArcFeeRatio:       cfg.LiquidationArcFeeRatio,
	})
	if err != nil {
		return nil, err
	}

	batch, err := c.journalGen.GenerateLiquidation(
		evt.Target, evt.Liquidator, evt.IdempotencyKey(), evt.Market,
		outcome.CollateralToLiquidator, outcome.CollateralToFeeSink, outcome.DebtRepaid,
		c.collateralAsset, c.syntheticAsset, evt.Timestamp.UnixMicro())
	if err != nil {
		return nil, err
	}

	// Same clamp as repay: DebtRepaid is capped at the rounded-up real
	// debt, so its normalization can exceed the vault's balance by one.
	normalizedRepaid := fixedpoint.Min(
		c.market.Index.Normalize(outcome.DebtRepaid), target.NormalizedBorrowedAmount)
	target.ReduceDebt(outcome.DebtRepaid, normalizedRepaid)
	target.SubCollateral(outcome.CollateralSeized)
	c.market.SubNormalizedBorrowedFloored(normalizedRepaid)
	c.market.AddCollateral(new(big.Int).Neg(outcome.CollateralSeized))

	if c.metrics != nil {
		c.metrics.LiquidationsCompleted.WithLabelValues(evt.Market).Inc()
		c.metrics.CollateralSeized.WithLabelValues(evt.Market).
			Add(observability.AmountFloat(outcome.CollateralSeized))
		if outcome.BadDebt {
			c.metrics.BadDebtLiquidations.WithLabelValues(evt.Market).Inc()
		}
	}

	return batch, nil
}

func (c *ActionEngine) handleParamUpdate(evt *event.MarketParamUpdated) (*ledger.Batch, error) {
	update := market.ParamUpdate{
		Caller: evt.Caller,
		Field:  market.ParamField(evt.Field),
		Value:  evt.Value,
	}
	if err := c.market.ApplyParamUpdate(update, evt.Timestamp.Unix()); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *ActionEngine) handlePauseToggled(evt *event.PauseToggled) (*ledger.Batch, error) {
	if err := c.market.SetPaused(evt.Caller, evt.Paused); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *ActionEngine) handleScoreRootUpdated(evt *event.ScoreRootUpdated) (*ledger.Batch, error) {
	if err := c.scores.StageRoot(evt.Caller, evt.Protocol, evt.Root, evt.Timestamp.Unix()); err != nil {
		return nil, err
	}
	return nil, nil
}

// --- Snapshot Restore & Startup Methods ---

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence                int64
	StateHash               [32]byte
	BorrowIndex             *big.Int
	IndexLastUpdate         int64
	RatePerSecond           *big.Int
	TotalCollateral         *big.Int
	TotalNormalizedBorrowed *big.Int
	Paused                  bool
	Vaults                  []*vault.Vault
	Balances                map[ledger.AccountKey]*big.Int
	Prices                  map[string]oracle.MarketPrice
	SequenceState           map[string]int64
	IdempotencyKeys         []string
}

// RestoreFromSnapshot rehydrates the engine's in-memory state. On warm
// restart the caller loads the latest snapshot, restores, then replays the
// event log forward from snapshot.Sequence + 1.
func (c *ActionEngine) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1
	c.hasher.SetPrevHash(snap.StateHash)

	c.market.Index.Restore(snap.BorrowIndex, snap.IndexLastUpdate, snap.RatePerSecond)
	c.market.TotalCollateral = fixedpoint.Clone(snap.TotalCollateral)
	c.market.TotalNormalizedBorrowed = fixedpoint.Clone(snap.TotalNormalizedBorrowed)
	c.market.Paused = snap.Paused

	for _, v := range snap.Vaults {
		c.vaults.Restore(v)
	}
	c.balanceTracker.Restore(snap.Balances)
	c.prices.Restore(snap.Prices)

	for partition, next := range snap.SequenceState {
		c.sequenceValidator.SetExpectedSequence(partition, next)
	}

	c.journalGen.SetSequence(snap.Sequence + 1)
	c.idempotency.WarmFromKeys(snap.IdempotencyKeys)
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *ActionEngine) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:                c.sequence - 1,
		StateHash:               c.hasher.GetPrevHash(),
		BorrowIndex:             c.market.Index.BorrowIndex(),
		IndexLastUpdate:         c.market.Index.LastUpdate(),
		RatePerSecond:           c.market.Index.RatePerSecond(),
		TotalCollateral:         c.market.TotalCollateralValue(),
		TotalNormalizedBorrowed: c.market.TotalNormalizedBorrowedValue(),
		Paused:                  c.market.Paused,
		Vaults:                  c.vaults.All(),
		Balances:                c.balanceTracker.Snapshot(),
		Prices:                  c.prices.Snapshot(),
		SequenceState:           c.sequenceValidator.Snapshot(),
		IdempotencyKeys:         c.idempotency.RecentKeys(),
	}
}

// Sequence returns the next global sequence the engine will assign.
func (c *ActionEngine) Sequence() int64 {
	return c.sequence
}

// StateHash returns the current chain tip.
func (c *ActionEngine) StateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// Read accessors for startup wiring and tests. All returned objects are
// owned by the engine goroutine; do not touch them concurrently.

func (c *ActionEngine) Market() *market.Market {
	return c.market
}

func (c *ActionEngine) Vaults() *vault.Store {
	return c.vaults
}

func (c *ActionEngine) Balances() *ledger.BalanceTracker {
	return c.balanceTracker
}

func (c *ActionEngine) Prices() *oracle.Cache {
	return c.prices
}
