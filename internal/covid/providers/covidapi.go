package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/covid-dashboard/internal/cache"
	"github.com/i474232898/covid-dashboard/internal/covid"
)

// DefaultCovidAPIBaseURL is the public covidapi.info country endpoint.
const DefaultCovidAPIBaseURL = "https://covidapi.info/api/v1/country/"

var errMalformed = errors.New("malformed response")

// ResponseCache is the subset of cache.Cache the provider needs.
type ResponseCache interface {
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch cache.FetchFunc) ([]byte, error)
}

// CovidAPIProvider implements covid.Source for covidapi.info.
type CovidAPIProvider struct {
	name      string
	baseURL   string
	ttl       time.Duration
	countries *covid.CountrySet
	cache     ResponseCache
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

// CovidAPIOptions configures a CovidAPIProvider.
type CovidAPIOptions struct {
	BaseURL    string
	CacheTTL   time.Duration
	MaxRetries int
}

// NewCovidAPIProvider creates a provider. A nil responseCache disables caching.
func NewCovidAPIProvider(client *http.Client, responseCache ResponseCache, countries *covid.CountrySet, opts CovidAPIOptions) *CovidAPIProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultCovidAPIBaseURL
	}

	return &CovidAPIProvider{
		name:      "covidapi",
		baseURL:   baseURL,
		ttl:       opts.CacheTTL,
		countries: countries,
		cache:     responseCache,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      opts.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newCircuitBreaker("covidapi"),
	}
}

func (p *CovidAPIProvider) Name() string {
	return p.name
}

// URL returns the request URL for a country code; it doubles as the cache key.
func (p *CovidAPIProvider) URL(code string) string {
	if strings.HasSuffix(p.baseURL, "/") {
		return p.baseURL + code
	}
	return p.baseURL + "/" + code
}

// Fetch returns the date-ordered raw series of a supported country.
func (p *CovidAPIProvider) Fetch(ctx context.Context, code string) ([]covid.Record, error) {
	if p.countries != nil && !p.countries.Contains(code) {
		return nil, fmt.Errorf("%w: %s", covid.ErrUnsupportedCountry, code)
	}

	u := p.URL(code)
	fetch := func(ctx context.Context) ([]byte, error) {
		body, err := getBody(ctx, p.httpCfg, p.circuit, u)
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, errMalformed
		}
		return body, nil
	}

	var (
		body []byte
		err  error
	)
	if p.cache != nil {
		body, err = p.cache.GetOrFetch(ctx, u, p.ttl, fetch)
	} else {
		body, err = fetch(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", covid.ErrSourceUnavailable, code, err)
	}

	records, err := decodeCountryResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", covid.ErrSourceUnavailable, code, err)
	}
	return records, nil
}

type dailyCounts struct {
	Confirmed *int64 `json:"confirmed"`
	Deaths    *int64 `json:"deaths"`
	Recovered *int64 `json:"recovered"`
}

func decodeCountryResponse(body []byte) ([]covid.Record, error) {
	var payload struct {
		Result map[string]dailyCounts `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if payload.Result == nil {
		return nil, fmt.Errorf("%w: missing result field", errMalformed)
	}

	records := make([]covid.Record, 0, len(payload.Result))
	for day, counts := range payload.Result {
		date, err := time.Parse(covid.DateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date %q", errMalformed, day)
		}
		if counts.Confirmed == nil || counts.Deaths == nil || counts.Recovered == nil {
			return nil, fmt.Errorf("%w: incomplete counts for %s", errMalformed, day)
		}
		records = append(records, covid.Record{
			Date:      date,
			Confirmed: *counts.Confirmed,
			Deaths:    *counts.Deaths,
			Recovered: *counts.Recovered,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}
