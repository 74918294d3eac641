package providers

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedProvider struct {
	errs  []error
	calls int32
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Lookup(ctx context.Context, q DayQuery) (*SearchResponse, error) {
	n := int(atomic.AddInt32(&s.calls, 1)) - 1
	if n < len(s.errs) && s.errs[n] != nil {
		return nil, s.errs[n]
	}
	return &SearchResponse{BestFlights: []Offer{{Price: Price{Amount: 99, Valid: true}}}}, nil
}

type retryCounter struct{ n int32 }

func (c *retryCounter) ObserveRetry(string) { atomic.AddInt32(&c.n, 1) }

func newTestRetrying(next FareProvider, attempts int, obs RetryObserver) FareProvider {
	return WithRetry(next, RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}, zap.NewNop(), obs)
}

func statusErr(code int) error {
	return &ProviderError{Provider: "scripted", StatusCode: code, Err: errors.New(http.StatusText(code))}
}

func TestRetry_RecoversFromServerErrors(t *testing.T) {
	next := &scriptedProvider{errs: []error{statusErr(503), statusErr(500)}}
	obs := &retryCounter{}

	resp, err := newTestRetrying(next, 3, obs).Lookup(context.Background(), testQuery())
	require.NoError(t, err)
	price, ok := SelectPrice(resp)
	require.True(t, ok)
	require.Equal(t, 99.0, price)
	require.EqualValues(t, 3, atomic.LoadInt32(&next.calls))
	require.EqualValues(t, 2, atomic.LoadInt32(&obs.n))
}

func TestRetry_StopsOnClientError(t *testing.T) {
	next := &scriptedProvider{errs: []error{statusErr(400), nil}}

	_, err := newTestRetrying(next, 3, nil).Lookup(context.Background(), testQuery())
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&next.calls))
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	next := &scriptedProvider{errs: []error{statusErr(429), statusErr(429), statusErr(429), nil}}

	_, err := newTestRetrying(next, 3, nil).Lookup(context.Background(), testQuery())
	require.ErrorIs(t, err, ErrUpstream)
	require.EqualValues(t, 3, atomic.LoadInt32(&next.calls))
}

func TestRetry_HonoursCancellation(t *testing.T) {
	next := &scriptedProvider{errs: []error{statusErr(502), nil}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRetrying(next, 3, nil).Lookup(ctx, testQuery())
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 1, atomic.LoadInt32(&next.calls))
}

func TestWithRetry_SingleAttemptIsPassthrough(t *testing.T) {
	next := &scriptedProvider{}
	require.Same(t, FareProvider(next), WithRetry(next, RetryPolicy{MaxAttempts: 1}, nil, nil))
}

func TestRetryPolicy_NewBackOff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond}
	b := p.NewBackOff(context.Background())

	require.Equal(t, 100*time.Millisecond, b.NextBackOff())
	require.Equal(t, 200*time.Millisecond, b.NextBackOff())
	require.Equal(t, 350*time.Millisecond, b.NextBackOff())
	require.Equal(t, 350*time.Millisecond, b.NextBackOff())
	require.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestRetryPolicy_NewBackOffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}.NewBackOff(ctx)
	require.Equal(t, backoff.Stop, b.NextBackOff())
}

func TestRetry_MalformedBodyIsFinal(t *testing.T) {
	malformed := &ProviderError{Provider: "scripted", Err: ErrMalformedResponse}
	next := &scriptedProvider{errs: []error{malformed, nil}}
	obs := &retryCounter{}

	_, err := newTestRetrying(next, 3, obs).Lookup(context.Background(), testQuery())
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.Same(t, malformed, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&next.calls))
	require.Zero(t, atomic.LoadInt32(&obs.n))
}

func TestRetryable(t *testing.T) {
	require.False(t, Retryable(nil))
	require.False(t, Retryable(errors.New("plain")))
	require.False(t, Retryable(context.Canceled))
	require.True(t, Retryable(statusErr(500)))
	require.True(t, Retryable(statusErr(429)))
	require.False(t, Retryable(statusErr(404)))
	require.True(t, Retryable(&ProviderError{Provider: "x", Err: errors.New("connection reset")}))
}
