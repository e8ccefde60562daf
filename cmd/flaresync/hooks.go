package main

import (
	"context"
	"time"

	"github.com/goliatone/flaresync"
	"github.com/uptrace/bun"
)

// queryLogger logs every query at debug level.
type queryLogger struct {
	logger flaresync.Logger
}

var _ bun.QueryHook = queryLogger{}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	args := []any{
		"operation", event.Operation(),
		"duration", time.Since(event.StartTime).String(),
		"query", event.Query,
	}
	if event.Err != nil {
		args = append(args, "error", event.Err)
	}
	h.logger.Debug("query", args...)
}
