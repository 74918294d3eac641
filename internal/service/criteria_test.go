package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testDefaults = Defaults{Currency: "GBP", Market: "uk"}

func TestBuildCriteria_Defaults(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	c, err := BuildCriteria(CriteriaInput{From: "lhr", To: " jfk "}, testDefaults, now)
	require.NoError(t, err)
	require.Equal(t, "lhr", c.Origin)
	require.Equal(t, "jfk", c.Destination)
	require.Equal(t, "2026-10", c.Month.Format(MonthLayout))
	require.Equal(t, "GBP", c.Currency)
	require.Equal(t, "uk", c.Market)
}

func TestBuildCriteria_NormalizesCase(t *testing.T) {
	c, err := BuildCriteria(CriteriaInput{From: "LHR", To: "JFK", Month: "2024-02", Currency: "usd", Market: "US"}, testDefaults, time.Now())
	require.NoError(t, err)
	require.Equal(t, "USD", c.Currency)
	require.Equal(t, "us", c.Market)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), c.Month)
}

func TestBuildCriteria_KeepsLocationCase(t *testing.T) {
	c, err := BuildCriteria(CriteriaInput{From: " /m/04jpl ", To: "JFK", Month: "2024-02", Currency: "eur", Market: "FR"}, testDefaults, time.Now())
	require.NoError(t, err)
	require.Equal(t, "/m/04jpl", c.Origin)
	require.Equal(t, "JFK", c.Destination)
	require.Equal(t, "EUR", c.Currency)
	require.Equal(t, "fr", c.Market)
}

func TestBuildCriteria_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      CriteriaInput
		wantErr error
	}{
		{"missing from", CriteriaInput{To: "JFK"}, ErrMissingParameter},
		{"missing to", CriteriaInput{From: "LHR"}, ErrMissingParameter},
		{"blank from", CriteriaInput{From: "  ", To: "JFK"}, ErrMissingParameter},
		{"bad month", CriteriaInput{From: "LHR", To: "JFK", Month: "2024-2x"}, ErrInvalidMonth},
		{"bad currency", CriteriaInput{From: "LHR", To: "JFK", Currency: "POUNDS"}, ErrInvalidCriteria},
		{"bad market", CriteriaInput{From: "LHR", To: "JFK", Market: "u1"}, ErrInvalidCriteria},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildCriteria(tc.in, testDefaults, time.Now())
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestBuildCriteria_ValidationMessageUsesParamNames(t *testing.T) {
	_, err := BuildCriteria(CriteriaInput{From: "LHR", To: "JFK", Currency: "EURO"}, testDefaults, time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "currency must be 3 characters")
}

func TestSearchCriteria_DayQuery(t *testing.T) {
	c := SearchCriteria{Origin: "LHR", Destination: "JFK", Currency: "GBP", Market: "uk"}
	day := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)

	q := c.DayQuery(day)
	require.Equal(t, "LHR", q.Origin)
	require.Equal(t, "JFK", q.Destination)
	require.Equal(t, day, q.Date)
	require.Equal(t, "GBP", q.Currency)
	require.Equal(t, "uk", q.Market)
}
