package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGeoServer serves the census one-line, census batch and google
// endpoints from one test server.
type fakeGeoServer struct {
	censusStatus int
	censusBody   string
	batchStatus  int
	batchBody    string
	googleBody   string

	censusCalls atomic.Int32
	batchCalls  atomic.Int32
	googleCalls atomic.Int32
}

func (f *fakeGeoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/geocoder/locations/onelineaddress":
		f.censusCalls.Add(1)
		if f.censusStatus != 0 {
			w.WriteHeader(f.censusStatus)
		}
		_, _ = w.Write([]byte(f.censusBody))
	case "/geocoder/locations/addressbatch":
		f.batchCalls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		if f.batchStatus != 0 {
			w.WriteHeader(f.batchStatus)
		}
		_, _ = w.Write([]byte(f.batchBody))
	case "/maps/api/geocode/json":
		f.googleCalls.Add(1)
		_, _ = w.Write([]byte(f.googleBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

const (
	censusHit  = `{"result":{"addressMatches":[{"coordinates":{"x":-122.33,"y":47.60},"matchedAddress":"1 MAIN ST"}]}}`
	censusMiss = `{"result":{"addressMatches":[]}}`
	googleHit  = `{"status":"OK","results":[{"formatted_address":"1 Main St","geometry":{"location":{"lat":47.61,"lng":-122.34},"location_type":"ROOFTOP"}}]}`
)

func newTestGeocoder(t *testing.T, fake *fakeGeoServer, opts ...Option) *geocoder {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	base := []Option{
		WithHTTPClient(newRewriteClient(srv.URL, censusHost, googleHost)),
		WithRateLimit(1000),
		WithRetry(fastRetry()),
	}
	return newGeocoder(append(base, opts...)...)
}

var mainSt = AddressInput{Street: "1 Main St", City: "Seattle", State: "WA"}

func TestGeocode_CensusMatch(t *testing.T) {
	fake := &fakeGeoServer{censusBody: censusHit, googleBody: googleHit}
	g := newTestGeocoder(t, fake, WithGoogleAPIKey("k"))

	res, err := g.Geocode(context.Background(), mainSt)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "census", res.Source)
	assert.Equal(t, int32(0), fake.googleCalls.Load())
}

func TestGeocode_FallsBackToGoogle(t *testing.T) {
	fake := &fakeGeoServer{censusBody: censusMiss, googleBody: googleHit}
	g := newTestGeocoder(t, fake, WithGoogleAPIKey("k"))

	res, err := g.Geocode(context.Background(), mainSt)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, "google", res.Source)
	assert.Equal(t, "rooftop", res.Quality)
}

func TestGeocode_CensusErrorGoogleMatch(t *testing.T) {
	fake := &fakeGeoServer{censusStatus: http.StatusServiceUnavailable, googleBody: googleHit}
	g := newTestGeocoder(t, fake, WithGoogleAPIKey("k"))

	res, err := g.Geocode(context.Background(), mainSt)
	require.NoError(t, err)
	assert.Equal(t, "google", res.Source)
	// Transient census failures are retried before falling back.
	assert.Equal(t, int32(2), fake.censusCalls.Load())
}

func TestGeocode_NoMatchAnywhere(t *testing.T) {
	fake := &fakeGeoServer{censusBody: censusMiss}
	g := newTestGeocoder(t, fake)

	res, err := g.Geocode(context.Background(), mainSt)
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, int32(0), fake.googleCalls.Load())
}

func TestGeocode_AllProvidersFail(t *testing.T) {
	fake := &fakeGeoServer{censusStatus: http.StatusBadRequest}
	g := newTestGeocoder(t, fake)

	_, err := g.Geocode(context.Background(), mainSt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	// Non-transient errors are not retried.
	assert.Equal(t, int32(1), fake.censusCalls.Load())
}

func TestGeocode_EmptyAddress(t *testing.T) {
	fake := &fakeGeoServer{censusBody: censusHit}
	g := newTestGeocoder(t, fake)

	res, err := g.Geocode(context.Background(), AddressInput{Street: "  "})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, int32(0), fake.censusCalls.Load())
}

func TestGeocode_Cancelled(t *testing.T) {
	fake := &fakeGeoServer{censusBody: censusHit}
	g := newTestGeocoder(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Geocode(ctx, mainSt)
	require.Error(t, err)
}

func TestBatchGeocode_FallbackForUnmatched(t *testing.T) {
	fake := &fakeGeoServer{
		batchBody: strings.Join([]string{
			`"0","1 Main St","Match","Exact","1 MAIN ST","-122.33,47.60","1","L"`,
			`"1","2 Nowhere Rd","No_Match"`,
		}, "\n"),
		googleBody: googleHit,
	}
	g := newTestGeocoder(t, fake, WithGoogleAPIKey("k"))

	results, err := g.BatchGeocode(context.Background(), []AddressInput{
		mainSt,
		{Street: "2 Nowhere Rd", City: "Seattle", State: "WA"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "census", results[0].Source)
	assert.True(t, results[1].Matched)
	assert.Equal(t, "google", results[1].Source)
	assert.Equal(t, int32(1), fake.batchCalls.Load())
	assert.Equal(t, int32(1), fake.googleCalls.Load())
	assert.Equal(t, int32(0), fake.censusCalls.Load())
}

func TestBatchGeocode_DoesNotMutateInput(t *testing.T) {
	fake := &fakeGeoServer{batchBody: `"0","1 Main St","Match","Exact","1 MAIN ST","-122.33,47.60","1","L"`}
	g := newTestGeocoder(t, fake)

	in := []AddressInput{mainSt}
	_, err := g.BatchGeocode(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, in[0].ID)
}

func TestBatchGeocode_BatchFailureFallsBackToSingle(t *testing.T) {
	fake := &fakeGeoServer{batchStatus: http.StatusBadRequest, censusBody: censusHit}
	g := newTestGeocoder(t, fake)

	results, err := g.BatchGeocode(context.Background(), []AddressInput{mainSt, mainSt})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Matched)
	assert.True(t, results[1].Matched)
	assert.Equal(t, int32(2), fake.censusCalls.Load())
}

func TestBatchGeocode_Empty(t *testing.T) {
	g := newTestGeocoder(t, &fakeGeoServer{})
	results, err := g.BatchGeocode(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestNewClient_Defaults(t *testing.T) {
	g := newGeocoder()
	require.Len(t, g.providers, 2)
	assert.Equal(t, "census", g.providers[0].Name())
	assert.Equal(t, "google", g.providers[1].Name())
	assert.False(t, g.providers[1].Available())

	var _ Client = NewClient()
}
