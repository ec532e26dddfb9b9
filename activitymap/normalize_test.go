package activitymap_test

import (
	"context"
	"testing"
	"time"

	gateway "github.com/goliatone/go-trade-gateway"
	"github.com/goliatone/go-trade-gateway/activitymap"
)

func TestNormalizeOrderCancelled(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := gateway.ActivityEvent{
		EventType: gateway.ActivityEventOrderCancelled,
		Actor:     gateway.ActorRef{ID: "alice@example.com", Type: "user"},
		Subject:   "0b6f3c1e-order",
		Metadata: map[string]any{
			"id":   int64(7),
			"from": "NEW",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "alice@example.com" {
		t.Fatalf("expected actor_id alice@example.com, got %q", out.ActorID)
	}
	if out.Verb != string(gateway.ActivityEventOrderCancelled) {
		t.Fatalf("expected verb %q, got %q", gateway.ActivityEventOrderCancelled, out.Verb)
	}
	if out.ObjectType != "order" {
		t.Fatalf("expected object_type order, got %q", out.ObjectType)
	}
	if out.ObjectID != "0b6f3c1e-order" {
		t.Fatalf("expected object_id 0b6f3c1e-order, got %q", out.ObjectID)
	}
	if out.Channel != "gateway" {
		t.Fatalf("expected channel gateway, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata[activitymap.MetadataKeyFromStatus] != "NEW" {
		t.Fatalf("expected from_status NEW, got %#v", out.Metadata[activitymap.MetadataKeyFromStatus])
	}
	if out.Metadata[activitymap.MetadataKeyToStatus] != "CANCELLED" {
		t.Fatalf("expected to_status CANCELLED, got %#v", out.Metadata[activitymap.MetadataKeyToStatus])
	}
	if _, ok := out.Metadata["from"]; ok {
		t.Fatalf("expected raw from key to be renamed")
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "user" {
		t.Fatalf("expected actor_type user, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}

	if _, ok := event.Metadata["from"]; !ok || len(event.Metadata) != 2 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeIdentityEvents(t *testing.T) {
	t.Parallel()

	event := gateway.ActivityEvent{
		EventType: gateway.ActivityEventIdentityDisabled,
		Actor:     gateway.ActorRef{ID: "root@example.com", Type: "user"},
		Subject:   "alice@example.com",
		Metadata: map[string]any{
			activitymap.MetadataKeyActorType: "existing",
		},
	}

	out := activitymap.Normalize(event, activitymap.WithChannel("identity"))

	if out.ObjectType != "user" {
		t.Fatalf("expected object_type user, got %q", out.ObjectType)
	}
	if out.Channel != "identity" {
		t.Fatalf("expected channel identity, got %q", out.Channel)
	}
	if out.ObjectID != "alice@example.com" {
		t.Fatalf("expected object_id alice@example.com, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "existing" {
		t.Fatalf("expected existing actor_type preserved, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyToStatus]; ok {
		t.Fatalf("identity events carry no order status")
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  gateway.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  gateway.ActivityEvent{Actor: gateway.ActorRef{ID: "actor-1"}},
			expect: "actor-1",
		},
		{
			name:   "uses default fallback when actor missing",
			event:  gateway.ActivityEvent{Actor: gateway.ActorRef{ID: "  "}},
			expect: "system",
		},
		{
			name:   "uses configured fallback when actor missing",
			event:  gateway.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("job")},
			expect: "job",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

func TestSinkEmitsNormalizedRecords(t *testing.T) {
	t.Parallel()

	var got []activitymap.Normalized
	sink := activitymap.Sink(func(n activitymap.Normalized) {
		got = append(got, n)
	}, activitymap.WithChannel("audit"))

	err := sink.Record(context.Background(), gateway.ActivityEvent{
		EventType: gateway.ActivityEventOrderCreated,
		Subject:   "order-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one record, got %d", len(got))
	}
	if got[0].Channel != "audit" || got[0].ObjectType != "order" || got[0].ActorID != "system" {
		t.Fatalf("unexpected record %+v", got[0])
	}

	if err := activitymap.Sink(nil).Record(context.Background(), gateway.ActivityEvent{}); err != nil {
		t.Fatalf("nil emit should be a no-op, got %v", err)
	}
}
