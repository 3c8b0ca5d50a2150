package audit

import (
	"context"
	"log/slog"
	"time"
)

// Logger emits a structured audit record for security-relevant actions
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, userID int64, email, action, resource, status string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.Int64("user_id", userID),
		slog.String("email", email),
		slog.String("status", status),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogRedemption(ctx context.Context, userID int64, email, status string) {
	al.LogAction(ctx, userID, email, "redeem", "order", status)
}

func (al *Logger) LogDenied(ctx context.Context, email, reason string) {
	al.LogAction(ctx, 0, email, "access_denied", "api", reason)
}
