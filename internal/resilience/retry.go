package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig shapes the wait for a PostGIS server that is still starting,
// restarting or not yet reachable on the network.
type RetryConfig struct {
	// MaxAttempts counts every try, the first included. 1 disables retry.
	MaxAttempts int

	// InitialBackoff is the sleep before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps any single sleep.
	MaxBackoff time.Duration

	// Multiplier grows the sleep after each failed attempt.
	Multiplier float64

	// JitterFraction spreads each sleep by up to this fraction either way,
	// so several loaders started together do not hit the server in step.
	JitterFraction float64

	// ShouldRetry replaces IsTransient when set.
	ShouldRetry func(err error) bool

	// OnRetry runs before each sleep with the attempt that just failed.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the retry configuration used while waiting for
// the database to accept connections. A fresh container usually answers
// within a few seconds; the budget covers a slow first-time initdb.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    30,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Do calls fn until it succeeds, returns an error that is not transient, the
// attempt budget runs out or ctx is done. The last error from fn is returned
// unwrapped.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = applyDefaults(cfg)

	retryable := cfg.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) || attempt >= cfg.MaxAttempts {
			return err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		sleep := time.NewTimer(computeBackoff(attempt-1, cfg))
		select {
		case <-ctx.Done():
			sleep.Stop()
			return err
		case <-sleep.C:
		}
	}
}

// applyDefaults fills unset fields from DefaultRetryConfig. A zero
// JitterFraction stays zero.
func applyDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

// computeBackoff returns the sleep after the given zero-based failure.
func computeBackoff(failure int, cfg RetryConfig) time.Duration {
	delay := min(float64(cfg.InitialBackoff)*math.Pow(cfg.Multiplier, float64(failure)), float64(cfg.MaxBackoff))

	if cfg.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * cfg.JitterFraction
	}
	return time.Duration(max(delay, 0))
}

// RetryLogger returns an OnRetry callback that logs each failed attempt to
// reach target.
func RetryLogger(target, operation string) func(int, error) {
	log := zap.L().With(zap.String("component", "resilience"))
	return func(attempt int, err error) {
		log.Warn("database not ready, retrying",
			zap.String("target", target),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
