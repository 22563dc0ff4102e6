// Package retry retries startup operations (database and cache dials) with
// exponential backoff. The role synchronizer does NOT use this package: its
// rate-limit policy is a single retry after a server-specified interval and
// lives next to the synchronizer.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config holds retry strategy configuration
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns sensible retry defaults for startup dials
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// Do executes fn until it succeeds or attempts run out, doubling the
// backoff between attempts
func Do(ctx context.Context, cfg *Config, log *slog.Logger, op string, fn func(ctx context.Context) error) error {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt < cfg.MaxAttempts {
			log.Warn("operation failed, retrying",
				slog.String("operation", op),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}

	return fmt.Errorf("operation '%s' failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}
