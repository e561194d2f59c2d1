package tempgroup

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventGroupAssigned     ActivityEventType = "group.temp.assigned"
	ActivityEventGroupReverted     ActivityEventType = "group.temp.reverted"
	ActivityEventGroupRevertFailed ActivityEventType = "group.temp.revert_failed"
	ActivityEventTimerCancelled    ActivityEventType = "group.temp.cancelled"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventID    string
	EventType  ActivityEventType
	Actor      ActorRef
	Subject    string
	FromGroup  string
	ToGroup    string
	ExpiresAt  time.Time
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
