package pipeline

import (
	"context"
	"time"
)

// NextDelay returns the backoff applied after failed attempt number attempt
// (zero-based): 2s, 4s, 8s, ...
func NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return time.Duration(1<<(attempt+1)) * time.Second
}

// Sleeper waits for d or until ctx is done. Tests inject one so retry policy
// runs without real time.
type Sleeper func(ctx context.Context, d time.Duration) error

func defaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
