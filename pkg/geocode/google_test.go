package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const googleHost = "https://maps.googleapis.com"

func newTestGoogle(srv *httptest.Server, key string) *googleProvider {
	return &googleProvider{
		httpClient: newRewriteClient(srv.URL, googleHost),
		limiter:    newTestLimiter(),
		apiKey:     key,
	}
}

func TestGoogle_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "1 Main St, Seattle, WA", r.URL.Query().Get("address"))
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{
				"formatted_address": "1 Main St, Seattle, WA 98101, USA",
				"geometry": {"location": {"lat": 47.6, "lng": -122.3}, "location_type": "RANGE_INTERPOLATED"}
			}]
		}`))
	}))
	defer srv.Close()

	res, err := newTestGoogle(srv, "test-key").Geocode(context.Background(), AddressInput{
		Street: "1 Main St", City: "Seattle", State: "WA",
	})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "google", res.Source)
	assert.Equal(t, "range", res.Quality)
	assert.InDelta(t, 47.6, res.Latitude, 1e-9)
	assert.InDelta(t, -122.3, res.Longitude, 1e-9)
	assert.Equal(t, "1 Main St, Seattle, WA 98101, USA", res.MatchedAddress)
}

func TestGoogle_Geocode_Statuses(t *testing.T) {
	tests := []struct {
		name        string
		httpStatus  int
		body        string
		wantMatched bool
		wantErr     string
	}{
		{name: "zero results", httpStatus: 200, body: `{"status":"ZERO_RESULTS","results":[]}`},
		{name: "ok but empty", httpStatus: 200, body: `{"status":"OK","results":[]}`},
		{name: "denied", httpStatus: 200, body: `{"status":"REQUEST_DENIED","error_message":"bad key"}`, wantErr: "REQUEST_DENIED: bad key"},
		{name: "http 503", httpStatus: 503, wantErr: "status 503"},
		{name: "bad json", httpStatus: 200, body: "nope", wantErr: "parse response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.httpStatus)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := newTestGoogle(srv, "k").Geocode(context.Background(), AddressInput{Street: "1 Main St"})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMatched, res.Matched)
		})
	}
}

func TestGoogle_NoKey(t *testing.T) {
	p := &googleProvider{httpClient: http.DefaultClient, limiter: newTestLimiter()}
	assert.False(t, p.Available())

	_, err := p.Geocode(context.Background(), AddressInput{Street: "1 Main St"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key not configured")
}

func TestGoogleQuality(t *testing.T) {
	tests := map[string]string{
		"ROOFTOP":            "rooftop",
		"rooftop":            "rooftop",
		"RANGE_INTERPOLATED": "range",
		"GEOMETRIC_CENTER":   "centroid",
		"APPROXIMATE":        "approximate",
		"":                   "approximate",
	}
	for in, want := range tests {
		assert.Equal(t, want, googleQuality(in), in)
	}
}
