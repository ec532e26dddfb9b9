package activitymap

import (
	"context"
	"strings"
	"time"

	gateway "github.com/goliatone/go-trade-gateway"
)

const (
	// MetadataKeyActorType stores the actor type derived from gateway.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromStatus stores the order status a cancellation started from.
	MetadataKeyFromStatus = "from_status"
	// MetadataKeyToStatus stores the order status a cancellation moved to.
	MetadataKeyToStatus = "to_status"
)

const (
	defaultChannel  = "gateway"
	defaultActorID  = "system"
	objectTypeUser  = "user"
	objectTypeOrder = "order"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	actorFallback string
}

// Normalize converts a gateway.ActivityEvent into a generic normalized shape.
// The object type is derived from the event family: order events describe an
// order, everything else describes a user.
func Normalize(event gateway.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.Actor.ID), options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: objectType(event.EventType),
		ObjectID:   strings.TrimSpace(event.Subject),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// Sink returns an ActivitySink that normalizes each event before handing it
// to emit.
func Sink(emit func(Normalized), opts ...Option) gateway.ActivitySink {
	return gateway.ActivitySinkFunc(func(_ context.Context, event gateway.ActivityEvent) error {
		if emit != nil {
			emit(Normalize(event, opts...))
		}
		return nil
	})
}

// WithChannel sets the channel for normalized records.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when the event carries none.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func objectType(eventType gateway.ActivityEventType) string {
	if strings.HasPrefix(string(eventType), "order.") {
		return objectTypeOrder
	}
	return objectTypeUser
}

func normalizeMetadata(event gateway.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyActorType]; !exists {
			metadata[MetadataKeyActorType] = actorType
		}
	}

	if event.EventType == gateway.ActivityEventOrderCancelled {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if from, ok := metadata["from"]; ok {
			delete(metadata, "from")
			metadata[MetadataKeyFromStatus] = from
		}
		metadata[MetadataKeyToStatus] = string(gateway.OrderStatusCancelled)
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
