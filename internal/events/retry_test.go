package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/kilupskalvis/folio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakySink fails the first n publishes with err.
type flakySink struct {
	failures int
	err      error
	calls    int
}

func (s *flakySink) Publish(ctx context.Context, ev models.ContentChanged) error {
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	return nil
}

func newTestRetrySink(inner Sink) (*RetrySink, *[]time.Duration) {
	var waits []time.Duration
	rs := NewRetrySink(inner, &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
	})
	rs.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return rs, &waits
}

func TestRetrySink_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakySink{failures: 2, err: errors.New("connection refused")}
	rs, waits := newTestRetrySink(inner)

	require.NoError(t, rs.Publish(context.Background(), testEvent("p1")))
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *waits)
}

func TestRetrySink_GivesUp(t *testing.T) {
	inner := &flakySink{failures: 10, err: errors.New("connection refused")}
	rs, waits := newTestRetrySink(inner)

	err := rs.Publish(context.Background(), testEvent("p1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 retries")
	assert.Equal(t, 4, inner.calls)
	assert.Equal(t, 40*time.Millisecond, (*waits)[2], "backoff is capped")
}

func TestRetrySink_DoesNotRetryCancellation(t *testing.T) {
	inner := &flakySink{failures: 10, err: context.Canceled}
	rs, _ := newTestRetrySink(inner)

	err := rs.Publish(context.Background(), testEvent("p1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestRetrySink_DoesNotRetryEncodeFailures(t *testing.T) {
	inner := &flakySink{failures: 10, err: fmt.Errorf("%w: %w", ErrEncodeEvent, &json.UnsupportedValueError{Str: "NaN"})}
	rs, waits := newTestRetrySink(inner)

	err := rs.Publish(context.Background(), testEvent("p1"))
	assert.ErrorIs(t, err, ErrEncodeEvent)
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, *waits)

	assert.False(t, isTransient(&json.UnsupportedTypeError{}))
	assert.False(t, isTransient(fmt.Errorf("publish: %w", &json.MarshalerError{Type: reflect.TypeOf(0), Err: errors.New("bad")})))
	assert.True(t, isTransient(errors.New("dial tcp: connection refused")))
}

func TestRetrySink_StopsWhenContextDone(t *testing.T) {
	inner := &flakySink{failures: 10, err: errors.New("timeout")}
	rs, _ := newTestRetrySink(inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := rs.Publish(ctx, testEvent("p1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Equal(t, 1, inner.calls)
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
