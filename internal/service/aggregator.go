package service

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrIncompleteReport = errors.New("calendar report is incomplete")

type Status int

const (
	StatusOK Status = iota
	StatusUnavailable
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnavailable:
		return "unavailable"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DayResult is the outcome for one date. Price is nil unless Status is
// StatusOK; Err is set only for StatusFailed.
type DayResult struct {
	Date   time.Time
	Price  *float64
	Status Status
	Err    error
}

type CalendarReport struct {
	Criteria SearchCriteria
	Days     []DayResult
}

func (r CalendarReport) Failed() int {
	n := 0
	for _, d := range r.Days {
		if d.Status == StatusFailed {
			n++
		}
	}
	return n
}

// DayError ties an upstream failure to the date it happened on.
type DayError struct {
	Date time.Time
	Err  error
}

func (e *DayError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Date.Format(DateLayout), e.Err)
}

func (e *DayError) Unwrap() error { return e.Err }

// Aggregator collects day results in any order and hands them back in
// calendar order. It is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	days    []time.Time
	results map[string]DayResult
}

func NewAggregator(days []time.Time) *Aggregator {
	return &Aggregator{
		days:    days,
		results: make(map[string]DayResult, len(days)),
	}
}

// Add records r. Each date of the month is accepted exactly once.
func (a *Aggregator) Add(r DayResult) error {
	key := r.Date.Format(DateLayout)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.known(key) {
		return fmt.Errorf("date %s is outside the report", key)
	}
	if _, dup := a.results[key]; dup {
		return fmt.Errorf("date %s already recorded", key)
	}
	a.results[key] = r
	return nil
}

func (a *Aggregator) known(key string) bool {
	for _, d := range a.days {
		if d.Format(DateLayout) == key {
			return true
		}
	}
	return false
}

// Report returns every result ordered by date. With strict set, any failed
// day fails the report; the error names the earliest failed date.
func (a *Aggregator) Report(strict bool) ([]DayResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]DayResult, 0, len(a.days))
	for _, d := range a.days {
		r, ok := a.results[d.Format(DateLayout)]
		if !ok {
			return nil, fmt.Errorf("%w: no result for %s", ErrIncompleteReport, d.Format(DateLayout))
		}
		if strict && r.Status == StatusFailed {
			return nil, &DayError{Date: r.Date, Err: r.Err}
		}
		out = append(out, r)
	}
	return out, nil
}
