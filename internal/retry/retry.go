package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Config bounds how often an operation may be attempted. The summarization
// stage defaults to a single attempt: the remote endpoint is rate-limit
// sensitive and a failed item falls back locally instead of being re-sent.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultConfig returns the single-attempt default.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 1,
		BaseDelay:   1 * time.Second,
	}
}

// Do executes an operation up to MaxAttempts times, sleeping with exponential
// backoff plus jitter between attempts. The last error is returned once the
// attempt budget is exhausted.
func Do(ctx context.Context, config Config, operation func(context.Context) error) error {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	base := config.BaseDelay
	if base <= 0 {
		base = 1 * time.Second
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = operation(ctx); err == nil {
			return nil
		}

		if attempt == attempts-1 {
			break
		}

		delay := base*time.Duration(1<<attempt) + time.Duration(rand.Int63n(int64(base)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if attempts > 1 {
		return fmt.Errorf("operation failed after %d attempts: %w", attempts, err)
	}
	return err
}
