package account

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserRegistered      ActivityEventType = "account.user.registered"
	ActivityEventEmailAdded          ActivityEventType = "account.email.added"
	ActivityEventPrimaryEmailChanged ActivityEventType = "account.email.primary.changed"
	ActivityEventEmailVerified       ActivityEventType = "account.email.verified"
	ActivityEventKeyIssued           ActivityEventType = "account.key.issued"
	ActivityEventKeyRedeemed         ActivityEventType = "account.key.redeemed"
	ActivityEventKeyExpired          ActivityEventType = "account.key.expired"
	ActivityEventPasswordChanged     ActivityEventType = "account.password.changed"
	ActivityEventPasswordUnset       ActivityEventType = "account.password.unset"
)

// ActorRef identifies who or what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	Subject    Slot
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best effort: failures are logged, never propagated.
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
