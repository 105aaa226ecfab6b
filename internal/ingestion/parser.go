package ingestion

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"ArcVault/internal/event"
	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/score"

	"github.com/google/uuid"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates and converts raw events
// before handing them to the action engine; the engine never sees wire bytes
// it did not parse here.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "DepositRequested":
		return parseDeposit(raw.Data)
	case "BorrowRequested":
		return parseBorrow(raw.Data)
	case "RepayRequested":
		return parseRepay(raw.Data)
	case "WithdrawRequested":
		return parseWithdraw(raw.Data)
	case "LiquidateRequested":
		return parseLiquidate(raw.Data)
	case "PriceUpdated":
		return parsePriceUpdate(raw.Data)
	case "MarketParamUpdated":
		return parseParamUpdate(raw.Data)
	case "PauseToggled":
		return parsePauseToggle(raw.Data)
	case "ScoreRootUpdated":
		return parseScoreRoot(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers. Amounts are
// 18-decimal strings; int64 would silently truncate protocol-scale values.

type scoreProofJSON struct {
	Account     string   `json:"account"`
	Protocol    string   `json:"protocol"`
	Score       string   `json:"score"`
	MerkleProof []string `json:"merkle_proof"`
}

func parseScoreProof(j *scoreProofJSON) (*score.Proof, error) {
	if j == nil {
		return nil, nil
	}
	account, err := uuid.Parse(j.Account)
	if err != nil {
		return nil, fmt.Errorf("parse score_proof.account: %w", err)
	}
	scoreVal, err := fixedpoint.ParseDecimal(j.Score)
	if err != nil {
		return nil, fmt.Errorf("parse score_proof.score: %w", err)
	}
	nodes := make([][32]byte, len(j.MerkleProof))
	for i, h := range j.MerkleProof {
		raw, err := hex.DecodeString(h)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("parse score_proof.merkle_proof[%d]: not a 32-byte hex string", i)
		}
		copy(nodes[i][:], raw)
	}
	return &score.Proof{
		Account:     account,
		Protocol:    j.Protocol,
		Score:       scoreVal,
		MerkleProof: nodes,
	}, nil
}

type depositJSON struct {
	ActionID    string `json:"action_id"`
	Account     string `json:"account"`
	Market      string `json:"market"`
	Amount      string `json:"amount"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDeposit(data []byte) (*event.DepositRequested, error) {
	var j depositJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DepositRequested: %w", err)
	}
	actionID, err := uuid.Parse(j.ActionID)
	if err != nil {
		return nil, fmt.Errorf("parse action_id: %w", err)
	}
	account, err := uuid.Parse(j.Account)
	if err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	amount, err := fixedpoint.ParseDecimal(j.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &event.DepositRequested{
		ActionID:  actionID,
		Account:   account,
		Market:    j.Market,
		Amount:    amount,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type borrowJSON struct {
	ActionID    string          `json:"action_id"`
	Account     string          `json:"account"`
	Market      string          `json:"market"`
	Amount      string          `json:"amount"`
	ScoreProof  *scoreProofJSON `json:"score_proof,omitempty"`
	Sequence    int64           `json:"sequence"`
	TimestampUs int64           `json:"timestamp_us"`
}

func parseBorrow(data []byte) (*event.BorrowRequested, error) {
	var j borrowJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BorrowRequested: %w", err)
	}
	actionID, err := uuid.Parse(j.ActionID)
	if err != nil {
		return nil, fmt.Errorf("parse action_id: %w", err)
	}
	account, err := uuid.Parse(j.Account)
	if err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	amount, err := fixedpoint.ParseDecimal(j.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	proof, err := parseScoreProof(j.ScoreProof)
	if err != nil {
		return nil, err
	}
	return &event.BorrowRequested{
		ActionID:   actionID,
		Account:    account,
		Market:     j.Market,
		Amount:     amount,
		ScoreProof: proof,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseRepay(data []byte) (*event.RepayRequested, error) {
	var j depositJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RepayRequested: %w", err)
	}
	actionID, err := uuid.Parse(j.ActionID)
	if err != nil {
		return nil, fmt.Errorf("parse action_id: %w", err)
	}
	account, err := uuid.Parse(j.Account)
	if err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	amount, err := fixedpoint.ParseDecimal(j.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return &event.RepayRequested{
		ActionID:  actionID,
		Account:   account,
		Market:    j.Market,
		Amount:    amount,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseWithdraw(data []byte) (*event.WithdrawRequested, error) {
	var j borrowJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawRequested: %w", err)
	}
	actionID, err := uuid.Parse(j.ActionID)
	if err != nil {
		return nil, fmt.Errorf("parse action_id: %w", err)
	}
	account, err := uuid.Parse(j.Account)
	if err != nil {
		return nil, fmt.Errorf("parse account: %w", err)
	}
	amount, err := fixedpoint.ParseDecimal(j.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	proof, err := parseScoreProof(j.ScoreProof)
	if err != nil {
		return nil, err
	}
	return &event.WithdrawRequested{
		ActionID:   actionID,
		Account:    account,
		Market:     j.Market,
		Amount:     amount,
		ScoreProof: proof,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type liquidateJSON struct {
	ActionID    string          `json:"action_id"`
	Target      string          `json:"target"`
	Liquidator  string          `json:"liquidator"`
	Market      string          `json:"market"`
	ScoreProof  *scoreProofJSON `json:"score_proof,omitempty"`
	Sequence    int64           `json:"sequence"`
	TimestampUs int64           `json:"timestamp_us"`
}

func parseLiquidate(data []byte) (*event.LiquidateRequested, error) {
	var j liquidateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse LiquidateRequested: %w", err)
	}
	actionID, err := uuid.Parse(j.ActionID)
	if err != nil {
		return nil, fmt.Errorf("parse action_id: %w", err)
	}
	target, err := uuid.Parse(j.Target)
	if err != nil {
		return nil, fmt.Errorf("parse target: %w", err)
	}
	liquidator, err := uuid.Parse(j.Liquidator)
	if err != nil {
		return nil, fmt.Errorf("parse liquidator: %w", err)
	}
	proof, err := parseScoreProof(j.ScoreProof)
	if err != nil {
		return nil, err
	}
	return &event.LiquidateRequested{
		ActionID:   actionID,
		Target:     target,
		Liquidator: liquidator,
		Market:     j.Market,
		ScoreProof: proof,
		Sequence:   j.Sequence,
		Timestamp:  time.UnixMicro(j.TimestampUs),
	}, nil
}

type priceJSON struct {
	Market        string `json:"market"`
	Price         string `json:"price"`
	PriceSequence int64  `json:"price_sequence"`
	TimestampUs   int64  `json:"timestamp_us"`
}

func parsePriceUpdate(data []byte) (*event.PriceUpdated, error) {
	var j priceJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceUpdated: %w", err)
	}
	price, err := fixedpoint.ParseDecimal(j.Price)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	return &event.PriceUpdated{
		Market:        j.Market,
		Price:         price,
		PriceSequence: j.PriceSequence,
		Timestamp:     time.UnixMicro(j.TimestampUs),
	}, nil
}

type paramUpdateJSON struct {
	UpdateID    string `json:"update_id"`
	Caller      string `json:"caller"`
	Market      string `json:"market"`
	Field       string `json:"field"`
	Value       string `json:"value"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseParamUpdate(data []byte) (*event.MarketParamUpdated, error) {
	var j paramUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MarketParamUpdated: %w", err)
	}
	updateID, err := uuid.Parse(j.UpdateID)
	if err != nil {
		return nil, fmt.Errorf("parse update_id: %w", err)
	}
	caller, err := uuid.Parse(j.Caller)
	if err != nil {
		return nil, fmt.Errorf("parse caller: %w", err)
	}
	value, err := fixedpoint.ParseDecimal(j.Value)
	if err != nil {
		return nil, fmt.Errorf("parse value: %w", err)
	}
	return &event.MarketParamUpdated{
		UpdateID:  updateID,
		Caller:    caller,
		Market:    j.Market,
		Field:     j.Field,
		Value:     value,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type pauseJSON struct {
	UpdateID    string `json:"update_id"`
	Caller      string `json:"caller"`
	Market      string `json:"market"`
	Paused      bool   `json:"paused"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parsePauseToggle(data []byte) (*event.PauseToggled, error) {
	var j pauseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PauseToggled: %w", err)
	}
	updateID, err := uuid.Parse(j.UpdateID)
	if err != nil {
		return nil, fmt.Errorf("parse update_id: %w", err)
	}
	caller, err := uuid.Parse(j.Caller)
	if err != nil {
		return nil, fmt.Errorf("parse caller: %w", err)
	}
	return &event.PauseToggled{
		UpdateID:  updateID,
		Caller:    caller,
		Market:    j.Market,
		Paused:    j.Paused,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type scoreRootJSON struct {
	UpdateID    string `json:"update_id"`
	Caller      string `json:"caller"`
	Protocol    string `json:"protocol"`
	Root        string `json:"root"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseScoreRoot(data []byte) (*event.ScoreRootUpdated, error) {
	var j scoreRootJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ScoreRootUpdated: %w", err)
	}
	updateID, err := uuid.Parse(j.UpdateID)
	if err != nil {
		return nil, fmt.Errorf("parse update_id: %w", err)
	}
	caller, err := uuid.Parse(j.Caller)
	if err != nil {
		return nil, fmt.Errorf("parse caller: %w", err)
	}
	rawRoot, err := hex.DecodeString(j.Root)
	if err != nil || len(rawRoot) != 32 {
		return nil, fmt.Errorf("parse root: not a 32-byte hex string")
	}
	var root [32]byte
	copy(root[:], rawRoot)
	return &event.ScoreRootUpdated{
		UpdateID:  updateID,
		Caller:    caller,
		Protocol:  j.Protocol,
		Root:      root,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}
