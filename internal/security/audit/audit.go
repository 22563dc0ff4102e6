package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

type requestIDKey struct{}

// WithRequestID attaches a request ID so audit entries can be correlated
// with the access log.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID attached to the context, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (al *Logger) LogAction(ctx context.Context, actorID, action, resource, resourceID, status, details string) {
	requestID := RequestID(ctx)

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("actor_id", actorID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogReview(ctx context.Context, actorID, applicationID, action, status string) {
	al.LogAction(ctx, actorID, "review", "application", applicationID, status, action)
}

func (al *Logger) LogRoleChange(ctx context.Context, actorID, targetID, fromRole, toRole, status string) {
	al.LogAction(ctx, actorID, "change_role", "user", targetID, status, fromRole+" -> "+toRole)
}

func (al *Logger) LogBan(ctx context.Context, actorID, targetID, status string) {
	al.LogAction(ctx, actorID, "ban", "user", targetID, status, "")
}

func (al *Logger) LogDeletion(ctx context.Context, actorID, targetID, status string) {
	al.LogAction(ctx, actorID, "delete", "user", targetID, status, "")
}

func (al *Logger) LogDenied(ctx context.Context, actorID, reason string) {
	al.LogAction(ctx, actorID, "access_denied", "api", "", "denied", reason)
}
