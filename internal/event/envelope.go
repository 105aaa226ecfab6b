package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeDepositRequested
	EventTypeBorrowRequested
	EventTypeRepayRequested
	EventTypeWithdrawRequested
	EventTypeLiquidateRequested
	EventTypePriceUpdated
	EventTypeMarketParamUpdated
	EventTypePauseToggled
	EventTypeScoreRootUpdated
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Market context (nullable for global events)
	MarketID *string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// MarketID returns the market context (nil for global events)
	MarketID() *string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64

	// EventTime returns the versioned input timestamp
	EventTime() time.Time
}

func (et EventType) String() string {
	switch et {
	case EventTypeDepositRequested:
		return "DepositRequested"
	case EventTypeBorrowRequested:
		return "BorrowRequested"
	case EventTypeRepayRequested:
		return "RepayRequested"
	case EventTypeWithdrawRequested:
		return "WithdrawRequested"
	case EventTypeLiquidateRequested:
		return "LiquidateRequested"
	case EventTypePriceUpdated:
		return "PriceUpdated"
	case EventTypeMarketParamUpdated:
		return "MarketParamUpdated"
	case EventTypePauseToggled:
		return "PauseToggled"
	case EventTypeScoreRootUpdated:
		return "ScoreRootUpdated"
	default:
		return "Unknown"
	}
}
