package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignup          ActivityEventType = "auth.signup"
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
	ActivityEventLogout          ActivityEventType = "auth.logout"
	ActivityEventRefresh         ActivityEventType = "auth.refresh"
	ActivityEventSessionReaped   ActivityEventType = "auth.session.reaped"
	ActivityEventPasswordChanged ActivityEventType = "auth.password.changed"
	ActivityEventEmailVerified   ActivityEventType = "auth.email.verified"
	ActivityEventUserDeleted     ActivityEventType = "auth.user.deleted"
)

// ActivityEvent describes an authentication action. Sinks use it for
// counters, it is not an audit trail.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	SessionID  string
	Count      int
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events.
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

// emitActivity records best effort, a failing sink never fails the
// request.
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if sink == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := sink.Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink failed", "event", event.EventType, "error", err)
	}
}
