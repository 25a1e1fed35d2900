// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package pipeline

// Retry with exponential backoff for pipeline steps.
//
// Only errors marked transient (see Transient) or carrying a timeout are
// retried. Cancellation of the surrounding context always stops the loop, so
// a cancelled job never starts another attempt.

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"os"
	"time"
)

// ErrTransient marks a step failure that may succeed on a later attempt.
var ErrTransient = errors.New("transient failure")

// Transient wraps err so that WithRetry retries it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// RetryConfig defines retry behavior for pipeline steps.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts. 0 means a single attempt.
	MaxAttempts int

	// InitialWait is the wait before the second attempt.
	InitialWait time.Duration

	// MaxWait caps the wait between attempts.
	MaxWait time.Duration

	// Multiplier for exponential backoff (must be >= 1.0)
	Multiplier float64

	// Jitter adds up to ±25% randomness to each wait.
	Jitter bool
}

// DefaultRetryConfig returns the retry policy used by the spooler.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// NoRetry returns a config that disables retries.
func NoRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: 0,
	}
}

// Validate checks if the retry config is valid.
func (rc RetryConfig) Validate() error {
	if rc.MaxAttempts < 0 {
		return fmt.Errorf("MaxAttempts must be >= 0, got %d", rc.MaxAttempts)
	}
	if rc.MaxAttempts == 0 {
		return nil
	}

	if rc.InitialWait < 0 {
		return fmt.Errorf("InitialWait must be >= 0, got %v", rc.InitialWait)
	}
	if rc.MaxWait < 0 {
		return fmt.Errorf("MaxWait must be >= 0, got %v", rc.MaxWait)
	}
	if rc.Multiplier < 1.0 {
		return fmt.Errorf("multiplier must be >= 1.0, got %f", rc.Multiplier)
	}
	if rc.MaxWait > 0 && rc.InitialWait > rc.MaxWait {
		return fmt.Errorf("InitialWait (%v) must be <= MaxWait (%v)", rc.InitialWait, rc.MaxWait)
	}
	return nil
}

// calculateWait computes the wait time before the given retry (1-based).
func (rc RetryConfig) calculateWait(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	wait := float64(rc.InitialWait) * math.Pow(rc.Multiplier, float64(attempt-1))
	if rc.MaxWait > 0 && wait > float64(rc.MaxWait) {
		wait = float64(rc.MaxWait)
	}

	if rc.Jitter {
		jitterRange := wait * 0.25
		wait += (rand.Float64() * 2 * jitterRange) - jitterRange
	}

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// RetryFunc is a function that may fail and should be retried.
type RetryFunc func(ctx context.Context) error

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// WithRetry runs fn until it succeeds, fails with a non-retryable error, the
// attempts are used up, or ctx is done. A done ctx yields its cause.
func WithRetry(ctx context.Context, config RetryConfig, fn RetryFunc) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid retry config: %w", err)
	}

	var lastErr error
	maxAttempts := config.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return err
		}

		if attempt < maxAttempts-1 {
			timer := time.NewTimer(config.calculateWait(attempt + 1))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return context.Cause(ctx)
			}
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", maxAttempts, lastErr)
}
