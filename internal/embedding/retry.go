package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for embedding API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retrier wraps a provider with exponential backoff on transient failures.
// Quota errors pass through untouched on the first attempt.
type retrier struct {
	inner  Provider
	cfg    RetryConfig
	logger *slog.Logger
}

func newRetrier(inner Provider, cfg RetryConfig, logger *slog.Logger) *retrier {
	return &retrier{inner: inner, cfg: cfg, logger: logger}
}

func (r *retrier) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.do(ctx, func() error {
		var err error
		vec, err = r.inner.EmbedText(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (r *retrier) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := r.do(ctx, func() error {
		var err error
		vecs, err = r.inner.EmbedBatch(ctx, texts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vecs, nil
}

func (r *retrier) Dimension() int { return r.inner.Dimension() }

func (r *retrier) ProviderID() string { return r.inner.ProviderID() }

// do runs op with exponential backoff. Only transient failures retry;
// quota exhaustion and non-retryable errors fail on the spot.
func (r *retrier) do(ctx context.Context, op func() error) error {
	var lastErr error
	delay := r.cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			if attempt > 0 {
				r.logger.Debug("embedding succeeded after retry",
					"provider", r.inner.ProviderID(),
					"attempts", attempt+1,
					"elapsed", time.Since(start),
				)
			}
			return nil
		}

		lastErr = err
		if errors.Is(err, ErrQuotaExceeded) || !retryable(err) {
			return err
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		r.logger.Debug("retrying embedding call",
			"provider", r.inner.ProviderID(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, r.cfg.MaxInterval)
		}
	}

	return fmt.Errorf("embedding after %d retries (elapsed: %v): %w",
		r.cfg.MaxRetries, time.Since(start), lastErr)
}

// retryable determines whether an error warrants another attempt.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderUnavailable) {
		return true
	}
	return containsAny(err.Error(),
		"500", "502", "503", "504", "unavailable",
		"connection reset", "timeout", "temporary")
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
