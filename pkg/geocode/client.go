// Package geocode resolves permit addresses to coordinates using the Census
// Geocoder, with Google as an optional fallback.
package geocode

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/middle-housing/internal/resilience"
)

// Client geocodes addresses.
type Client interface {
	// Geocode geocodes a single address. An address no provider can match
	// returns Matched=false and a nil error.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)

	// BatchGeocode geocodes multiple addresses, returning one result per
	// input in order.
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// AddressInput is an address to geocode.
type AddressInput struct {
	ID      string // optional identifier for batch correlation
	Street  string
	City    string
	State   string
	ZipCode string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Source         string  `json:"source"`  // "census" or "google"
	Quality        string  `json:"quality"` // "rooftop", "range", "centroid", "approximate"
	MatchedAddress string  `json:"matched_address,omitempty"`
	Matched        bool    `json:"matched"`
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey enables the Google Geocoding API as a fallback.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets the HTTP client used for every provider.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the shared requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithRetry sets the per-provider retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *geocoder) {
		g.retry = cfg
	}
}

// WithCircuitBreaker sets the per-provider circuit breaker policy.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(g *geocoder) {
		g.breakers = resilience.NewServiceBreakers(cfg)
	}
}

type geocoder struct {
	httpClient *http.Client
	googleKey  string
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breakers   *resilience.ServiceBreakers
	providers  []Provider
	census     *censusProvider
}

// NewClient creates a geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	return newGeocoder(opts...)
}

func newGeocoder(opts ...Option) *geocoder {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		retry:      resilience.DefaultRetryConfig(),
		breakers:   resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig()),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.census = &censusProvider{httpClient: g.httpClient, limiter: g.limiter}
	g.providers = []Provider{
		g.census,
		&googleProvider{httpClient: g.httpClient, limiter: g.limiter, apiKey: g.googleKey},
	}
	return g
}

// Geocode tries each available provider in order and returns the first match.
// It returns an error only when every provider attempted failed outright.
func (g *geocoder) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if formatOneLine(addr) == "" {
		return &Result{Matched: false}, nil
	}

	var errs []error
	attempted := 0
	for _, p := range g.providers {
		if !p.Available() {
			continue
		}
		attempted++
		result, err := g.call(ctx, p, addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "geocode: cancelled")
			}
			errs = append(errs, err)
			continue
		}
		if result.Matched {
			return result, nil
		}
	}

	if attempted > 0 && len(errs) == attempted {
		return nil, eris.Wrap(errs[len(errs)-1], "geocode: all providers failed")
	}
	return &Result{Matched: false}, nil
}

// BatchGeocode geocodes addresses with the Census batch API, then retries
// unmatched addresses individually against the fallback providers. If the
// batch call fails, every address is geocoded individually.
func (g *geocoder) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	batch := make([]AddressInput, len(addrs))
	copy(batch, addrs)
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = strconv.Itoa(i)
		}
	}

	results, err := resilience.ExecuteVal(ctx, g.breakers.Get(g.census.Name()), func(ctx context.Context) ([]Result, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) ([]Result, error) {
			return g.census.batch(ctx, batch)
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "geocode: batch cancelled")
		}
		results = make([]Result, len(batch))
		for i, addr := range batch {
			r, gErr := g.Geocode(ctx, addr)
			if gErr != nil {
				if ctx.Err() != nil {
					return nil, eris.Wrap(ctx.Err(), "geocode: batch cancelled")
				}
				continue
			}
			results[i] = *r
		}
		return results, nil
	}

	for i := range results {
		if results[i].Matched {
			continue
		}
		for _, p := range g.providers[1:] {
			if !p.Available() {
				continue
			}
			if r, pErr := g.call(ctx, p, batch[i]); pErr == nil && r.Matched {
				results[i] = *r
				break
			}
		}
	}
	return results, nil
}

// call runs one provider through its circuit breaker and the retry policy.
func (g *geocoder) call(ctx context.Context, p Provider, addr AddressInput) (*Result, error) {
	cfg := g.retry
	cfg.OnRetry = resilience.RetryLogger(p.Name(), "geocode")
	return resilience.ExecuteVal(ctx, g.breakers.Get(p.Name()), func(ctx context.Context) (*Result, error) {
		return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
			return p.Geocode(ctx, addr)
		})
	})
}
