package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry configuration for infrastructure connects
type Config struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	MaxTotalTimeout time.Duration
}

// DefaultConfig returns a default retry configuration with 1 minute max timeout
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     10,
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2.0,
		MaxTotalTimeout: 60 * time.Second,
	}
}

// DoWithLog executes the function with retry and logs each attempt
func DoWithLog(ctx context.Context, cfg Config, serviceName string, fn func() error, logFn func(attempt int, err error, nextDelay time.Duration)) error {
	if cfg.MaxTotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxTotalTimeout)
		defer cancel()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%s: retry aborted after %d attempts: %w (last error: %v)", serviceName, attempt-1, err, lastErr)
			}
			return fmt.Errorf("%s: retry aborted: %w", serviceName, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}
		if logFn != nil {
			logFn(attempt, err, delay)
		}
		if err := SleepContext(ctx, delay); err != nil {
			return fmt.Errorf("%s: retry aborted after %d attempts: %w (last error: %v)", serviceName, attempt, err, lastErr)
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("%s: max retry attempts (%d) exceeded: %w", serviceName, cfg.MaxAttempts, lastErr)
}

// Outcome is the classification of one failed attempt.
type Outcome struct {
	Retryable bool
	// Hint is a server-supplied delay; zero means none was given.
	Hint time.Duration
	// Class names the failure for logs.
	Class string
}

// Policy drives classification-based retries where the error returned after the
// final attempt is handed back unchanged.
type Policy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxHintDelay time.Duration
	Classify     func(err error) Outcome
	OnRetry      func(attempt int, outcome Outcome, err error, delay time.Duration)
	OnGiveUp     func(attempt int, outcome Outcome, err error)
	Sleep        func(ctx context.Context, d time.Duration) error
}

// Delay returns the wait before the retry that follows a failed attempt.
// attempt is 0 for the first retry. A hint wins over backoff and is capped at MaxHintDelay.
func (p Policy) Delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		if p.MaxHintDelay > 0 && hint > p.MaxHintDelay {
			return p.MaxHintDelay
		}
		return hint
	}
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	return base * time.Duration(1<<uint(attempt))
}

// Run calls fn until it succeeds, fails with a non-retryable error, or the attempt
// cap is hit. Attempts are strictly sequential.
func (p Policy) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		var outcome Outcome
		if p.Classify != nil {
			outcome = p.Classify(err)
		}
		if !outcome.Retryable || attempt >= maxAttempts-1 {
			if p.OnGiveUp != nil {
				p.OnGiveUp(attempt, outcome, err)
			}
			return err
		}

		delay := p.Delay(attempt, outcome.Hint)
		if p.OnRetry != nil {
			p.OnRetry(attempt, outcome, err, delay)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
