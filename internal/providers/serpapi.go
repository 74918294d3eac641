package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/you/go-flight-calendar/internal/config"
)

const dateLayout = "2006-01-02"

// SerpAPI queries the google_flights engine of serpapi.com.
type SerpAPI struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

func NewSerpAPI(cfg *config.Config) *SerpAPI {
	timeout := cfg.SerpAPITimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimSpace(cfg.SerpAPIURL)
	if baseURL == "" {
		baseURL = "https://serpapi.com/search"
	}

	s := &SerpAPI{
		baseURL: baseURL,
		apiKey:  cfg.SerpAPIKey,
		client:  &http.Client{Timeout: timeout},
	}
	if cfg.SerpAPIRPS > 0 {
		burst := cfg.SerpAPIBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.SerpAPIRPS), burst)
	}
	return s
}

func (s *SerpAPI) Name() string { return "serpapi" }

// BuildParams maps one day query to google_flights query parameters.
// type=2 selects a one-way search.
func BuildParams(apiKey string, q DayQuery) url.Values {
	p := url.Values{}
	p.Set("engine", "google_flights")
	p.Set("api_key", apiKey)
	p.Set("type", "2")
	p.Set("departure_id", q.Origin)
	p.Set("arrival_id", q.Destination)
	p.Set("outbound_date", q.Date.Format(dateLayout))
	p.Set("currency", q.Currency)
	p.Set("gl", q.Market)
	p.Set("adults", "1")
	p.Set("hl", "en")
	return p
}

func (s *SerpAPI) Lookup(ctx context.Context, q DayQuery) (*SearchResponse, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// Wait gives up early when the next token lands after the deadline
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse serpapi base url: %w", err)
	}
	u.RawQuery = BuildParams(s.apiKey, q).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ProviderError{Provider: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &ProviderError{
			Provider:   s.Name(),
			StatusCode: resp.StatusCode,
			Err:        errors.New(statusMessage(resp)),
		}
	}

	var payload SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &ProviderError{Provider: s.Name(), Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	// serpapi reports "no results" through the error field with a 200.
	if payload.Error != "" && len(payload.BestFlights) == 0 && len(payload.OtherFlights) == 0 {
		if isNoResults(payload.Error) {
			return &payload, nil
		}
		return nil, &ProviderError{Provider: s.Name(), Err: fmt.Errorf("%w: %s", ErrRejected, payload.Error)}
	}
	return &payload, nil
}

func statusMessage(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return resp.Status
}

func isNoResults(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "hasn't returned any results")
}
