package slogx

import (
	"context"
	"log/slog"
)

type (
	loggerKey struct{}
	actorKey  struct{}
)

// requestActor is filled in by WithActor once authentication succeeds so the
// access log line can name who made the request.
type requestActor struct {
	id       string
	username string
}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the request logger, or slog.Default when none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithActor annotates the context logger with the acting identity and
// records it for the enclosing HTTPMiddleware.
func WithActor(ctx context.Context, actorID, username string) context.Context {
	if a, ok := ctx.Value(actorKey{}).(*requestActor); ok {
		a.id, a.username = actorID, username
	}
	l := FromContext(ctx)
	return WithContext(ctx, l.With(slog.String("actor_id", actorID), slog.String("actor", username)))
}
