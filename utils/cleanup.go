package utils

import (
	"context"
	"time"
)

// Sweeper removes expired content and reports how many rows went away.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// StartExpirySweeper periodically calls s.Sweep until ctx is done.
// It is best-effort and logs failures. The returned channel closes when the loop exits.
func StartExpirySweeper(ctx context.Context, s Sweeper, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			// Wait first to avoid racing migrations at startup
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				Sugar.Warnf("expiry sweep failed: %v", err)
				continue
			}
			if n > 0 {
				Sugar.Infof("expiry sweep removed %d items", n)
			}
		}
	}()
	return done
}
