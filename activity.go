package flaresync

import (
	"context"
	"time"
)

// ActivityEventType names an auditable credential lifecycle step.
type ActivityEventType string

const (
	ActivityEventConnectSuccess    ActivityEventType = "social.connect.success"
	ActivityEventConnectFailure    ActivityEventType = "social.connect.failure"
	ActivityEventDisconnect        ActivityEventType = "social.disconnect"
	ActivityEventSyncSuccess       ActivityEventType = "social.sync.success"
	ActivityEventSyncFailure       ActivityEventType = "social.sync.failure"
	ActivityEventRevocationFailure ActivityEventType = "social.revoke.failure"
)

// Failure reports whether the event records a failed operation.
func (t ActivityEventType) Failure() bool {
	switch t {
	case ActivityEventConnectFailure, ActivityEventSyncFailure, ActivityEventRevocationFailure:
		return true
	}
	return false
}

// ActivityEvent is one connect, disconnect or sync outcome for a user's
// platform. Metadata never carries token material.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Platform   Platform
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives activity events. Errors are logged by the caller
// and never fail the operation being recorded.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc lets a plain function serve as an ActivitySink.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type discardActivity struct{}

func (discardActivity) Record(context.Context, ActivityEvent) error { return nil }

// NormalizeActivitySink returns s, or a sink that drops events when s is nil.
func NormalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return discardActivity{}
	}
	return s
}
