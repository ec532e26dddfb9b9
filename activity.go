package gateway

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventIdentityRegistered  ActivityEventType = "identity.registered"
	ActivityEventIdentityRolledBack  ActivityEventType = "identity.registration.rolled_back"
	ActivityEventIdentityEnabled     ActivityEventType = "identity.enabled"
	ActivityEventIdentityDisabled    ActivityEventType = "identity.disabled"
	ActivityEventIdentityRoleChanged ActivityEventType = "identity.role.assigned"
	ActivityEventMirrorFailed        ActivityEventType = "identity.mirror.failed"
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventOrderCreated        ActivityEventType = "order.created"
	ActivityEventOrderCancelled      ActivityEventType = "order.cancelled"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	Subject    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// activityRecorder is embedded by components that publish events.
type activityRecorder struct {
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func newActivityRecorder(logger Logger) activityRecorder {
	return activityRecorder{
		sink:   noopActivitySink{},
		logger: normalizeLogger(logger),
		now:    time.Now,
	}
}

func (r activityRecorder) record(ctx context.Context, eventType ActivityEventType, actor ActorRef, subject string, metadata map[string]any) {
	if actor == (ActorRef{}) {
		if user, ok := FromContext(ctx); ok {
			actor = actorFromUser(user)
		} else {
			actor = ActorRef{Type: "system"}
		}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		Subject:    subject,
		Metadata:   metadata,
		OccurredAt: r.now(),
	}

	if err := normalizeActivitySink(r.sink).Record(ctx, event); err != nil {
		r.logger.Warn("activity sink record error", "event", string(eventType), "error", err)
	}
}

func actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}
	return ActorRef{ID: user.Email, Type: "user"}
}
