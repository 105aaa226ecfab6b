package ingestion_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ArcVault/internal/event"
	"ArcVault/internal/ingestion"
	"ArcVault/internal/testutil"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// Publishes through a real JetStream and verifies the subscriber delivers a
// parseable event. Skipped unless INTEGRATION_TEST=1 and NATS is reachable.
func TestSubscribeDeliversPublishedAction(t *testing.T) {
	testutil.RequireIntegration(t)

	nc, js, err := ingestion.ConnectNATS(testutil.TestNATSURL())
	if err != nil {
		t.Skipf("test nats not available: %v", err)
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := ingestion.EnsureStreams(ctx, js); err != nil {
		t.Fatalf("ensure streams: %v", err)
	}

	rawChan := make(chan ingestion.RawEvent, 16)
	sub := ingestion.NewNATSSubscriber(js, rawChan)
	if err := sub.Subscribe(ctx, ingestion.DefaultSubjects()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Stop()

	actionID := uuid.New()
	account := uuid.New()
	payload := []byte(`{
		"action_id": "` + actionID.String() + `",
		"account": "` + account.String() + `",
		"market": "WETH-USD",
		"amount": "2.5",
		"sequence": 0,
		"timestamp_us": 1700000000000000
	}`)

	if _, err := js.Publish(ctx, "arc.actions.deposit.WETH-USD", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var raw ingestion.RawEvent
	select {
	case raw = <-rawChan:
	case <-ctx.Done():
		t.Fatal("timed out waiting for delivery")
	}
	raw.AckFunc()

	evt, err := ingestion.ParseRawEvent(raw, "DepositRequested")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	dep, ok := evt.(*event.DepositRequested)
	if !ok {
		t.Fatalf("got %T", evt)
	}
	if dep.ActionID != actionID || dep.Account != account {
		t.Error("identity fields mismatch")
	}
	if dep.Market != "WETH-USD" {
		t.Errorf("market = %q", dep.Market)
	}
}

// Runs the outbound publisher against a real JetStream and verifies a
// committed event lands on the events stream under the expected subject.
func TestOutboundPublisherDeliversCommittedEvent(t *testing.T) {
	testutil.RequireIntegration(t)

	nc, js, err := ingestion.ConnectNATS(testutil.TestNATSURL())
	if err != nil {
		t.Skipf("test nats not available: %v", err)
	}
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
		t.Fatalf("ensure outbound stream: %v", err)
	}

	stream, err := js.Stream(ctx, "ARC_VAULT_EVENTS")
	if err != nil {
		t.Fatalf("lookup stream: %v", err)
	}
	cons, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{"arc.vault.events.>"},
	})
	if err != nil {
		t.Fatalf("ordered consumer: %v", err)
	}

	publishChan := make(chan ingestion.PublishableEvent, 1)
	pub := ingestion.NewOutboundPublisher(js, publishChan)
	go pub.Run(ctx)

	marketID := "WETH-USD"
	publishChan <- ingestion.PublishableEvent{
		Sequence:       42,
		EventType:      "CollateralDeposited",
		IdempotencyKey: uuid.New().String(),
		MarketID:       &marketID,
		Timestamp:      time.Now().UTC(),
	}

	msg, err := cons.Next(jetstream.FetchMaxWait(10 * time.Second))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := msg.Subject(); got != "arc.vault.events.CollateralDeposited.WETH-USD" {
		t.Errorf("subject = %q", got)
	}
	var delivered ingestion.PublishableEvent
	if err := json.Unmarshal(msg.Data(), &delivered); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if delivered.Sequence != 42 || delivered.EventType != "CollateralDeposited" {
		t.Errorf("delivered sequence=%d type=%q", delivered.Sequence, delivered.EventType)
	}
}
