package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/you/go-flight-calendar/internal/config"
)

func testQuery() DayQuery {
	return DayQuery{
		Origin:      "LHR",
		Destination: "JFK",
		Date:        time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		Currency:    "GBP",
		Market:      "uk",
	}
}

func newTestSerpAPI(baseURL string) *SerpAPI {
	return NewSerpAPI(&config.Config{
		SerpAPIURL:     baseURL,
		SerpAPIKey:     "secret",
		SerpAPITimeout: time.Second,
	})
}

func TestBuildParams(t *testing.T) {
	got := BuildParams("secret", testQuery())

	want := url.Values{
		"engine":        {"google_flights"},
		"api_key":       {"secret"},
		"type":          {"2"},
		"departure_id":  {"LHR"},
		"arrival_id":    {"JFK"},
		"outbound_date": {"2024-02-29"},
		"currency":      {"GBP"},
		"gl":            {"uk"},
		"adults":        {"1"},
		"hl":            {"en"},
	}
	require.Equal(t, want, got)
}

func TestLookup_SendsParamsAndDecodes(t *testing.T) {
	var seen url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query()
		_, _ = w.Write([]byte(`{
			"best_flights":[{"price":412,"total_duration":480}],
			"other_flights":[{"price":388}]
		}`))
	}))
	defer srv.Close()

	resp, err := newTestSerpAPI(srv.URL).Lookup(context.Background(), testQuery())
	require.NoError(t, err)
	require.Equal(t, "2024-02-29", seen.Get("outbound_date"))
	require.Equal(t, "secret", seen.Get("api_key"))

	price, ok := SelectPrice(resp)
	require.True(t, ok)
	require.Equal(t, 412.0, price)
}

func TestLookup_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid API key."}`))
	}))
	defer srv.Close()

	_, err := newTestSerpAPI(srv.URL).Lookup(context.Background(), testQuery())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUpstream)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	require.Contains(t, err.Error(), "Invalid API key.")
}

func TestLookup_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"best_flights":[`))
	}))
	defer srv.Close()

	_, err := newTestSerpAPI(srv.URL).Lookup(context.Background(), testQuery())
	require.ErrorIs(t, err, ErrUpstream)
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.False(t, Retryable(err))
}

func TestLookup_NoResultsIsNotAFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Google Flights hasn't returned any results for this query."}`))
	}))
	defer srv.Close()

	resp, err := newTestSerpAPI(srv.URL).Lookup(context.Background(), testQuery())
	require.NoError(t, err)
	_, ok := SelectPrice(resp)
	require.False(t, ok)
}

func TestLookup_ProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unsupported departure_id."}`))
	}))
	defer srv.Close()

	_, err := newTestSerpAPI(srv.URL).Lookup(context.Background(), testQuery())
	require.ErrorIs(t, err, ErrRejected)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestLookup_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := newTestSerpAPI(base).Lookup(context.Background(), testQuery())
	require.ErrorIs(t, err, ErrUpstream)
	require.True(t, Retryable(err))
}

func TestLookup_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestSerpAPI(srv.URL).Lookup(ctx, testQuery())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, Retryable(err))
}

func TestLookup_RateLimitPastDeadline(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"best_flights":[{"price":100}]}`))
	}))
	defer srv.Close()

	s := NewSerpAPI(&config.Config{
		SerpAPIURL:     srv.URL,
		SerpAPIKey:     "secret",
		SerpAPITimeout: time.Second,
		SerpAPIRPS:     0.01,
		SerpAPIBurst:   1,
	})

	_, err := s.Lookup(context.Background(), testQuery())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = s.Lookup(ctx, testQuery())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, Retryable(err))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestLookup_RateLimitCancelled(t *testing.T) {
	s := NewSerpAPI(&config.Config{SerpAPIKey: "secret", SerpAPIRPS: 1, SerpAPIBurst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Lookup(ctx, testQuery())
	require.ErrorIs(t, err, context.Canceled)
}
