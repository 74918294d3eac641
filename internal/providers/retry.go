package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const defaultMaxBackoff = time.Minute

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewBackOff returns the wait schedule between attempts: doubling from
// InitialBackoff, capped at MaxBackoff, stopping after MaxAttempts-1
// retries or when ctx is done.
func (p RetryPolicy) NewBackOff(ctx context.Context) backoff.BackOffContext {
	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// Retryable reports whether a lookup failure is worth repeating: transport
// errors, 429 and 5xx. Cancellation and client errors are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch {
	case pe.StatusCode == 0:
		return !errors.Is(pe.Err, ErrMalformedResponse) && !errors.Is(pe.Err, ErrRejected)
	case pe.StatusCode == http.StatusTooManyRequests:
		return true
	case pe.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// RetryObserver is notified before each retry.
type RetryObserver interface {
	ObserveRetry(provider string)
}

type retrying struct {
	next     FareProvider
	policy   RetryPolicy
	log      *zap.Logger
	observer RetryObserver
}

// WithRetry decorates a provider with the given retry policy. The returned
// provider has the same contract as next.
func WithRetry(next FareProvider, policy RetryPolicy, log *zap.Logger, observer RetryObserver) FareProvider {
	if policy.MaxAttempts <= 1 {
		return next
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &retrying{next: next, policy: policy, log: log, observer: observer}
}

func (r *retrying) Name() string { return r.next.Name() }

func (r *retrying) Lookup(ctx context.Context, q DayQuery) (*SearchResponse, error) {
	attempt := 1
	op := func() (*SearchResponse, error) {
		resp, err := r.next.Lookup(ctx, q)
		if err != nil && !Retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}
	notify := func(err error, wait time.Duration) {
		attempt++
		r.log.Debug("retrying provider lookup",
			zap.String("provider", r.next.Name()),
			zap.String("date", q.Date.Format(dateLayout)),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if r.observer != nil {
			r.observer.ObserveRetry(r.next.Name())
		}
	}
	return backoff.RetryNotifyWithData(op, r.policy.NewBackOff(ctx), notify)
}
