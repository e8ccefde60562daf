package connector

import (
	"context"

	"github.com/goliatone/flaresync"
)

// NotificationKind classifies a user facing notification.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is a user facing message about a connector operation.
type Notification struct {
	Kind     NotificationKind
	Platform flaresync.Platform
	Title    string
	Message  string
	Err      error
}

// Notifier surfaces operation results to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	if f != nil {
		f(ctx, n)
	}
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger flaresync.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(_ context.Context, n Notification) {
	logger := flaresync.NormalizeLogger(l.Logger)
	if n.Kind == NotificationError {
		logger.Warn(n.Title, "platform", n.Platform, "message", n.Message, "error", n.Err)
		return
	}
	logger.Info(n.Title, "platform", n.Platform, "message", n.Message)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) {}
