package ingest

import (
	"context"
	"log/slog"
	"time"

	"biogate/internal/model"
)

func SendNonBlocking(ctx context.Context, out chan<- model.Envelope, env model.Envelope, logger *slog.Logger) bool {
	select {
	case out <- env:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("telemetry channel full, dropping envelope",
				"kind", env.Kind,
				"user_id", env.UserID,
				"session_id", env.SessionID,
			)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
