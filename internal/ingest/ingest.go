package ingest

import (
	"context"
	"log/slog"
	"time"
)

// SendFrame enqueues one raw frame without blocking the link. A full
// channel drops the frame; windowing correctness needs order, not
// completeness, and the link keeps producing regardless.
func SendFrame(ctx context.Context, out chan<- []byte, frame []byte, logger *slog.Logger) bool {
	select {
	case out <- frame:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("frame channel full, dropping frame", "frame_bytes", len(frame))
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
