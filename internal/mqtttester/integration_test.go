//go:build integration

package mqtttester

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/probekit/internal/events"
)

// Integration tests against a real broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/mqtttester/...

func TestIntegration_PublishSubscribeRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.ClientID = "probekit-int-roundtrip"
	tr := New(cfg)
	defer tr.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tr.Connect(ctx, "mqtt://127.0.0.1:1883"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	subscribed := make(chan Subscription, 1)
	received := make(chan Message, 1)
	events.On(tr.Events(), EventSubscribed, func(s Subscription) { subscribed <- s })
	events.On(tr.Events(), EventMessageReceived, func(m Message) { received <- m })

	if err := tr.Subscribe("probekit/int/+", 1); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	select {
	case <-subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not acknowledged")
	}

	if err := tr.Publish("probekit/int/temp", "21.5", PublishOptions{QoS: 1}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case m := <-received:
		if m.Topic != "probekit/int/temp" || m.Payload != "21.5" {
			t.Errorf("received %s = %q", m.Topic, m.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	subs := tr.Subscriptions()
	if len(subs) != 1 || subs[0].MessageCount != 1 {
		t.Errorf("Subscriptions() = %+v, want one with count 1", subs)
	}
}
