package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/you/go-flight-calendar/internal/providers"
)

// ProviderMock is a FareProvider for tests. It prices each day by its day of
// month unless the date is listed in failDates or unavailable.
type ProviderMock struct {
	name            string
	delay           time.Duration
	errorOutMessage *string
	failDates       map[string]bool
	unavailable     map[string]bool
	callCount       *int32
	active          *int32
	maxActive       *int32
}

func (p ProviderMock) Name() string {
	return p.name
}

func (p ProviderMock) Lookup(ctx context.Context, q providers.DayQuery) (*providers.SearchResponse, error) {
	if p.callCount != nil {
		atomic.AddInt32(p.callCount, 1)
	}
	if p.active != nil {
		n := atomic.AddInt32(p.active, 1)
		defer atomic.AddInt32(p.active, -1)
		for {
			m := atomic.LoadInt32(p.maxActive)
			if n <= m || atomic.CompareAndSwapInt32(p.maxActive, m, n) {
				break
			}
		}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	date := q.Date.Format(DateLayout)
	if p.errorOutMessage != nil || p.failDates[date] {
		msg := "API Request Fail"
		if p.errorOutMessage != nil {
			msg = *p.errorOutMessage
		}
		return nil, &providers.ProviderError{Provider: p.name, StatusCode: 502, Err: errors.New(msg)}
	}
	if p.unavailable[date] {
		return &providers.SearchResponse{}, nil
	}
	return &providers.SearchResponse{
		OtherFlights: []providers.Offer{
			{Price: providers.Price{Amount: float64(100 + q.Date.Day()), Valid: true}},
		},
	}, nil
}
