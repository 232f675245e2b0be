package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kilupskalvis/folio/internal/models"
)

// RetryConfig configures retry behavior for failed sink publishes.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetrySink wraps a Sink with automatic retry on transient errors.
type RetrySink struct {
	inner  Sink
	config *RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetrySink creates a RetrySink that wraps the given Sink.
func NewRetrySink(inner Sink, cfg *RetryConfig) *RetrySink {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetrySink{inner: inner, config: cfg, sleep: sleep}
}

// isTransient returns true for errors that are worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// An event that cannot be encoded never will be
	if errors.Is(err, ErrEncodeEvent) {
		return false
	}
	var unsupportedType *json.UnsupportedTypeError
	var unsupportedValue *json.UnsupportedValueError
	var marshaler *json.MarshalerError
	if errors.As(err, &unsupportedType) || errors.As(err, &unsupportedValue) || errors.As(err, &marshaler) {
		return false
	}
	return true // connection errors are transient
}

// backoff computes the delay for the given attempt with jitter.
func (rs *RetrySink) backoff(attempt int) time.Duration {
	base := float64(rs.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rs.config.MaxBackoff) {
		base = float64(rs.config.MaxBackoff)
	}
	jitter := base * rs.config.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish delivers ev, retrying transient failures.
func (rs *RetrySink) Publish(ctx context.Context, ev models.ContentChanged) error {
	var lastErr error
	for attempt := 0; attempt <= rs.config.MaxRetries; attempt++ {
		lastErr = rs.inner.Publish(ctx, ev)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < rs.config.MaxRetries {
			if err := rs.sleep(ctx, rs.backoff(attempt)); err != nil {
				return fmt.Errorf("publish: %w (retry cancelled)", lastErr)
			}
		}
	}
	return fmt.Errorf("publish: %w (after %d retries)", lastErr, rs.config.MaxRetries)
}

var _ Sink = (*RetrySink)(nil)
