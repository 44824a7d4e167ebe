package reqctx

import (
	"context"
	"log/slog"
)

// WithRequestLogger returns base bound with the ambient request id (and
// correlation id when present) as structured fields. When no request
// context is active, base is returned unmodified.
func WithRequestLogger(ctx context.Context, base *slog.Logger) *slog.Logger {
	rc, ok := fromContext(ctx)
	if !ok {
		return base
	}
	log := base.With(slog.String("request_id", rc.requestID))
	if rc.correlationID != "" {
		log = log.With(slog.String("correlation_id", rc.correlationID))
	}
	return log
}
