package ingestion_test

import (
	"ArcVault/internal/event"
	"ArcVault/internal/fixedpoint"
	"ArcVault/internal/ingestion"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseDepositRequested(t *testing.T) {
	payload := map[string]interface{}{
		"action_id":    "550e8400-e29b-41d4-a716-446655440000",
		"account":      "660e8400-e29b-41d4-a716-446655440001",
		"market":       "arc-usd",
		"amount":       "250.5",
		"sequence":     int64(7),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "DepositRequested")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dep, ok := evt.(*event.DepositRequested)
	if !ok {
		t.Fatalf("expected *event.DepositRequested, got %T", evt)
	}

	if dep.Market != "arc-usd" {
		t.Errorf("market: got %s, want arc-usd", dep.Market)
	}
	if dep.Amount.Cmp(fixedpoint.MustParse("250.5")) != 0 {
		t.Errorf("amount: got %s, want 250.5e18", dep.Amount)
	}
	if dep.Sequence != 7 {
		t.Errorf("sequence: got %d, want 7", dep.Sequence)
	}
	if dep.Timestamp.UnixMicro() != 1700000000000000 {
		t.Errorf("timestamp: got %d", dep.Timestamp.UnixMicro())
	}
	if dep.EventType() != event.EventTypeDepositRequested {
		t.Errorf("event type: got %v, want DepositRequested", dep.EventType())
	}
}

func TestParseBorrowRequestedWithProof(t *testing.T) {
	node := hex.EncodeToString(make([]byte, 32))
	payload := map[string]interface{}{
		"action_id": "550e8400-e29b-41d4-a716-446655440000",
		"account":   "660e8400-e29b-41d4-a716-446655440001",
		"market":    "arc-usd",
		"amount":    "100",
		"score_proof": map[string]interface{}{
			"account":      "660e8400-e29b-41d4-a716-446655440001",
			"protocol":     "arc",
			"score":        "87.5",
			"merkle_proof": []string{node, node},
		},
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "BorrowRequested")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	borrow, ok := evt.(*event.BorrowRequested)
	if !ok {
		t.Fatalf("expected *event.BorrowRequested, got %T", evt)
	}

	if borrow.ScoreProof == nil {
		t.Fatal("score proof missing")
	}
	if borrow.ScoreProof.Protocol != "arc" {
		t.Errorf("proof protocol: got %s, want arc", borrow.ScoreProof.Protocol)
	}
	if borrow.ScoreProof.Score.Cmp(fixedpoint.MustParse("87.5")) != 0 {
		t.Errorf("proof score: got %s, want 87.5e18", borrow.ScoreProof.Score)
	}
	if len(borrow.ScoreProof.MerkleProof) != 2 {
		t.Errorf("proof depth: got %d, want 2", len(borrow.ScoreProof.MerkleProof))
	}
}

func TestParseBorrowRequestedWithoutProof(t *testing.T) {
	payload := map[string]interface{}{
		"action_id":    "550e8400-e29b-41d4-a716-446655440000",
		"account":      "660e8400-e29b-41d4-a716-446655440001",
		"market":       "arc-usd",
		"amount":       "100",
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "BorrowRequested")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	borrow := evt.(*event.BorrowRequested)
	if borrow.ScoreProof != nil {
		t.Errorf("expected nil score proof, got %+v", borrow.ScoreProof)
	}
}

func TestParseLiquidateRequested(t *testing.T) {
	payload := map[string]interface{}{
		"action_id":    "550e8400-e29b-41d4-a716-446655440000",
		"target":       "660e8400-e29b-41d4-a716-446655440001",
		"liquidator":   "770e8400-e29b-41d4-a716-446655440002",
		"market":       "arc-usd",
		"sequence":     int64(3),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "LiquidateRequested")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	liq, ok := evt.(*event.LiquidateRequested)
	if !ok {
		t.Fatalf("expected *event.LiquidateRequested, got %T", evt)
	}

	if liq.Target == liq.Liquidator {
		t.Error("target and liquidator should differ")
	}
	if liq.Market != "arc-usd" {
		t.Errorf("market: got %s, want arc-usd", liq.Market)
	}
}

func TestParsePriceUpdated(t *testing.T) {
	payload := map[string]interface{}{
		"market":         "arc-usd",
		"price":          "1999.25",
		"price_sequence": int64(100),
		"timestamp_us":   int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "PriceUpdated")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.PriceUpdated)
	if !ok {
		t.Fatalf("expected *event.PriceUpdated, got %T", evt)
	}

	if pu.Price.Cmp(fixedpoint.MustParse("1999.25")) != 0 {
		t.Errorf("price: got %s, want 1999.25e18", pu.Price)
	}
	if pu.PriceSequence != 100 {
		t.Errorf("price_sequence: got %d, want 100", pu.PriceSequence)
	}
	if pu.IdempotencyKey() != "" {
		t.Errorf("price events carry no idempotency key, got %q", pu.IdempotencyKey())
	}
}

func TestParseMarketParamUpdated(t *testing.T) {
	payload := map[string]interface{}{
		"update_id":    "550e8400-e29b-41d4-a716-446655440000",
		"caller":       "660e8400-e29b-41d4-a716-446655440001",
		"market":       "arc-usd",
		"field":        "min_collateral_ratio_high",
		"value":        "2.5",
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "MarketParamUpdated")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.MarketParamUpdated)
	if !ok {
		t.Fatalf("expected *event.MarketParamUpdated, got %T", evt)
	}

	if pu.Field != "min_collateral_ratio_high" {
		t.Errorf("field: got %s", pu.Field)
	}
	if pu.Value.Cmp(fixedpoint.MustParse("2.5")) != 0 {
		t.Errorf("value: got %s, want 2.5e18", pu.Value)
	}
}

func TestParseScoreRootUpdated(t *testing.T) {
	root := make([]byte, 32)
	root[0] = 0xab
	payload := map[string]interface{}{
		"update_id":    "550e8400-e29b-41d4-a716-446655440000",
		"caller":       "660e8400-e29b-41d4-a716-446655440001",
		"protocol":     "arc",
		"root":         hex.EncodeToString(root),
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ScoreRootUpdated")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	sr, ok := evt.(*event.ScoreRootUpdated)
	if !ok {
		t.Fatalf("expected *event.ScoreRootUpdated, got %T", evt)
	}

	if sr.Root[0] != 0xab {
		t.Errorf("root: got %x", sr.Root[:4])
	}
	if sr.Protocol != "arc" {
		t.Errorf("protocol: got %s, want arc", sr.Protocol)
	}
	if sr.MarketID() != nil {
		t.Error("score root updates are global, MarketID should be nil")
	}
}

func TestParseBadRootLength_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"update_id":    "550e8400-e29b-41d4-a716-446655440000",
		"caller":       "660e8400-e29b-41d4-a716-446655440001",
		"protocol":     "arc",
		"root":         "abcd",
		"sequence":     int64(1),
		"timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawEvent(raw, "ScoreRootUpdated"); err == nil {
		t.Fatal("expected error for short root")
	}
}

func TestParseBadAmount_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"action_id":    "550e8400-e29b-41d4-a716-446655440000",
		"account":      "660e8400-e29b-41d4-a716-446655440001",
		"market":       "arc-usd",
		"amount":       "12.3.4",
		"sequence":     int64(1),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	if _, err := ingestion.ParseRawEvent(raw, "DepositRequested"); err == nil {
		t.Fatal("expected error for malformed amount")
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw, "DepositRequested")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"action_id":    "not-a-uuid",
		"account":      "also-not-a-uuid",
		"market":       "arc-usd",
		"amount":       "1",
		"sequence":     int64(0),
		"timestamp_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "DepositRequested")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
