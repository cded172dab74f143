package toolerrors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff retry for internal operations
// that don't cross a real I/O boundary; nothing in this module calls Retry
// at present. Operations that call into the vector store driver use
// backoff.Retry instead (see internal/vectorstore).
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryConfig returns sensible defaults: 3 retries, 1s initial delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retry executes fn with exponential backoff, honoring ctx cancellation.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err != nil {
			lastErr = err
			if attempt >= cfg.MaxRetries {
				break
			}

			waitDelay := delay
			if cfg.Jitter {
				waitDelay = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDelay):
			}

			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
