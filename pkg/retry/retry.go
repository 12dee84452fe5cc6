// Package retry runs operations again with exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrMaxRetriesExceeded is joined with the last error once attempts run out.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int

	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Multiplier grows the delay after each attempt.
	Multiplier float64

	// Jitter randomizes each delay by up to this fraction (0-1).
	Jitter float64

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns three retries starting at 200ms.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// BackOff returns the delay schedule described by c.
func (c *Config) BackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     c.InitialDelay,
		RandomizationFactor: c.Jitter,
		Multiplier:          c.Multiplier,
		MaxInterval:         c.MaxDelay,
	}
	if b.Multiplier <= 0 {
		b.Multiplier = 1
	}
	if b.MaxInterval <= 0 {
		b.MaxInterval = backoff.DefaultMaxInterval
	}
	b.Reset()
	return b
}

// Do calls fn until it succeeds, returns a permanent error, attempts run
// out or ctx is done.
func Do(ctx context.Context, config *Config, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultConfig()
	}

	var (
		attempts  int
		lastErr   error
		permanent bool
	)
	operation := func() (struct{}, error) {
		attempts++
		err := fn(ctx)
		permanent = IsPermanent(err)
		if err != nil && !permanent {
			lastErr = err
		}
		return struct{}{}, err
	}
	notify := func(err error, delay time.Duration) {
		if config.OnRetry != nil {
			config.OnRetry(attempts, err, delay)
		}
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(config.BackOff()),
		backoff.WithMaxTries(uint(max(config.MaxRetries, 0))+1),
		backoff.WithNotify(notify),
	)
	switch {
	case err == nil:
		return nil
	case permanent:
		// The last attempt's error comes back still marked.
		var p *backoff.PermanentError
		if errors.As(err, &p) {
			return p.Unwrap()
		}
		return err
	case ctx.Err() != nil:
		return errors.Join(ctx.Err(), lastErr)
	default:
		return errors.Join(ErrMaxRetriesExceeded, err)
	}
}

// Permanent marks err so Do returns it without retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}
