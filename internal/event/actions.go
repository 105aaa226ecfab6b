package event

import (
	"math/big"
	"time"

	"ArcVault/internal/score"

	"github.com/google/uuid"
)

// The five vault actions. Amounts are 18-decimal fixed-point; ActionID is the
// upstream idempotency key. Timestamp is the versioned input time the engine
// uses for interest accrual.

type DepositRequested struct {
	ActionID  uuid.UUID
	Account   uuid.UUID
	Market    string
	Amount    *big.Int // collateral-asset native decimals
	Sequence  int64
	Timestamp time.Time
}

func (e *DepositRequested) IdempotencyKey() string { return e.ActionID.String() }
func (e *DepositRequested) EventType() EventType   { return EventTypeDepositRequested }
func (e *DepositRequested) MarketID() *string      { return &e.Market }
func (e *DepositRequested) SourceSequence() int64  { return e.Sequence }
func (e *DepositRequested) EventTime() time.Time   { return e.Timestamp }

type BorrowRequested struct {
	ActionID   uuid.UUID
	Account    uuid.UUID
	Market     string
	Amount     *big.Int // synthetic, 18 decimals
	ScoreProof *score.Proof
	Sequence   int64
	Timestamp  time.Time
}

func (e *BorrowRequested) IdempotencyKey() string { return e.ActionID.String() }
func (e *BorrowRequested) EventType() EventType   { return EventTypeBorrowRequested }
func (e *BorrowRequested) MarketID() *string      { return &e.Market }
func (e *BorrowRequested) SourceSequence() int64  { return e.Sequence }
func (e *BorrowRequested) EventTime() time.Time   { return e.Timestamp }

type RepayRequested struct {
	ActionID  uuid.UUID
	Account   uuid.UUID
	Market    string
	Amount    *big.Int
	Sequence  int64
	Timestamp time.Time
}

func (e *RepayRequested) IdempotencyKey() string { return e.ActionID.String() }
func (e *RepayRequested) EventType() EventType   { return EventTypeRepayRequested }
func (e *RepayRequested) MarketID() *string      { return &e.Market }
func (e *RepayRequested) SourceSequence() int64  { return e.Sequence }
func (e *RepayRequested) EventTime() time.Time   { return e.Timestamp }

type WithdrawRequested struct {
	ActionID   uuid.UUID
	Account    uuid.UUID
	Market     string
	Amount     *big.Int // 18 decimals
	ScoreProof *score.Proof
	Sequence   int64
	Timestamp  time.Time
}

func (e *WithdrawRequested) IdempotencyKey() string { return e.ActionID.String() }
func (e *WithdrawRequested) EventType() EventType   { return EventTypeWithdrawRequested }
func (e *WithdrawRequested) MarketID() *string      { return &e.Market }
func (e *WithdrawRequested) SourceSequence() int64  { return e.Sequence }
func (e *WithdrawRequested) EventTime() time.Time   { return e.Timestamp }

type LiquidateRequested struct {
	ActionID   uuid.UUID
	Target     uuid.UUID
	Liquidator uuid.UUID
	Market     string
	ScoreProof *score.Proof // optional proof for the target's score
	Sequence   int64
	Timestamp  time.Time
}

func (e *LiquidateRequested) IdempotencyKey() string { return e.ActionID.String() }
func (e *LiquidateRequested) EventType() EventType   { return EventTypeLiquidateRequested }
func (e *LiquidateRequested) MarketID() *string      { return &e.Market }
func (e *LiquidateRequested) SourceSequence() int64  { return e.Sequence }
func (e *LiquidateRequested) EventTime() time.Time   { return e.Timestamp }
