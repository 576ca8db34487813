package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ewilliams-labs/animeterminal/internal/core/ports"
)

// retryDelay is the wait before the attempt following attempt (0-based):
// linear backoff, stretched to any Retry-After hint carried by err.
func retryDelay(base time.Duration, attempt int, err error) time.Duration {
	delay := base * time.Duration(attempt+1)
	var hint ports.RetryHinter
	if errors.As(err, &hint) {
		if ra := hint.RetryAfter(); ra > delay {
			delay = ra
		}
	}
	return delay
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("services: wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
