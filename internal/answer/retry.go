package answer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig bounds generation retries.
type RetryConfig struct {
	MaxRetries      int           // retries after the first attempt
	InitialInterval time.Duration // first backoff delay
	MaxInterval     time.Duration // backoff ceiling
}

// DefaultRetryConfig returns the standard generation retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// generateWithRetry runs the backend with bounded exponential backoff.
// The parent context's budget always wins; once it is gone no further
// attempt starts.
func (o *Orchestrator) generateWithRetry(ctx context.Context, prompt Prompt) (string, error) {
	delay := o.retry.InitialInterval
	var lastErr error

	for attempt := 0; attempt <= o.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("generating answer: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay = min(delay*2, o.retry.MaxInterval)
		}

		text, err := o.generateOnce(ctx, prompt)
		if err == nil {
			if attempt > 0 {
				o.logger.Debug("generation succeeded after retry", "attempt", attempt+1)
			}
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("generating answer: %w", ctx.Err())
		}
		if !retryableGeneration(err) {
			return "", err
		}
		o.logger.Warn("generation attempt failed",
			"attempt", attempt+1, "max_attempts", o.retry.MaxRetries+1, "error", err)
	}

	return "", fmt.Errorf("generation after %d attempts: %w", o.retry.MaxRetries+1, lastErr)
}

// generateOnce applies the per-call timeout around one backend call.
func (o *Orchestrator) generateOnce(ctx context.Context, prompt Prompt) (string, error) {
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}
	return o.generator.Generate(ctx, prompt)
}

// retryableGeneration reports whether the failure is worth another
// attempt: rate limits, server errors, and transport trouble are;
// malformed requests and auth failures are not.
func retryableGeneration(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"429", "quota", "rate limit", "resource exhausted",
		"500", "502", "503", "504",
		"unavailable", "timeout", "deadline exceeded", "connection reset", "temporary",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
