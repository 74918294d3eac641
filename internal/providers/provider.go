package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUpstream marks every failure that originates at the fare provider:
// transport errors, non-success statuses and undecodable bodies.
var ErrUpstream = errors.New("upstream failure")

var (
	ErrMalformedResponse = errors.New("malformed response")
	ErrRejected          = errors.New("request rejected by provider")
)

// DayQuery is a one-way lookup for a single departure date.
type DayQuery struct {
	Origin      string
	Destination string
	Date        time.Time
	Currency    string
	Market      string
}

type FareProvider interface {
	Name() string
	Lookup(ctx context.Context, q DayQuery) (*SearchResponse, error)
}

// ProviderError wraps a failed lookup. StatusCode is zero when no HTTP
// response was received.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrUpstream, e.Err}
}
