package event

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// PriceUpdated carries a collateral price observation from the oracle feed.
// Price sequences are per-market and gap-tolerant.
type PriceUpdated struct {
	Market        string
	Price         *big.Int // 18 decimals, collateral priced in the synthetic
	PriceSequence int64
	Timestamp     time.Time
}

func (e *PriceUpdated) IdempotencyKey() string { return "" } // dedup by price sequence
func (e *PriceUpdated) EventType() EventType   { return EventTypePriceUpdated }
func (e *PriceUpdated) MarketID() *string      { return &e.Market }
func (e *PriceUpdated) SourceSequence() int64  { return e.PriceSequence }
func (e *PriceUpdated) EventTime() time.Time   { return e.Timestamp }

// MarketParamUpdated is an admin-issued parameter change.
type MarketParamUpdated struct {
	UpdateID  uuid.UUID
	Caller    uuid.UUID
	Market    string
	Field     string
	Value     *big.Int
	Sequence  int64
	Timestamp time.Time
}

func (e *MarketParamUpdated) IdempotencyKey() string { return e.UpdateID.String() }
func (e *MarketParamUpdated) EventType() EventType   { return EventTypeMarketParamUpdated }
func (e *MarketParamUpdated) MarketID() *string      { return &e.Market }
func (e *MarketParamUpdated) SourceSequence() int64  { return e.Sequence }
func (e *MarketParamUpdated) EventTime() time.Time   { return e.Timestamp }

// PauseToggled pauses or resumes all mutating actions on a market.
type PauseToggled struct {
	UpdateID  uuid.UUID
	Caller    uuid.UUID
	Market    string
	Paused    bool
	Sequence  int64
	Timestamp time.Time
}

func (e *PauseToggled) IdempotencyKey() string { return e.UpdateID.String() }
func (e *PauseToggled) EventType() EventType   { return EventTypePauseToggled }
func (e *PauseToggled) MarketID() *string      { return &e.Market }
func (e *PauseToggled) SourceSequence() int64  { return e.Sequence }
func (e *PauseToggled) EventTime() time.Time   { return e.Timestamp }

// ScoreRootUpdated stages a new merkle root for a score protocol.
type ScoreRootUpdated struct {
	UpdateID  uuid.UUID
	Caller    uuid.UUID
	Protocol  string
	Root      [32]byte
	Sequence  int64
	Timestamp time.Time
}

func (e *ScoreRootUpdated) IdempotencyKey() string { return e.UpdateID.String() }
func (e *ScoreRootUpdated) EventType() EventType   { return EventTypeScoreRootUpdated }
func (e *ScoreRootUpdated) MarketID() *string      { return nil } // global
func (e *ScoreRootUpdated) SourceSequence() int64  { return e.Sequence }
func (e *ScoreRootUpdated) EventTime() time.Time   { return e.Timestamp }
