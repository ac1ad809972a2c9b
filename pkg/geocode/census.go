package geocode

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBatchURL   = "https://geocoding.geo.census.gov/geocoder/locations/addressbatch"
	censusBenchmark  = "Public_AR_Current"

	// MaxCensusBatch is the largest batch the Census API accepts.
	MaxCensusBatch = 10000
)

type censusOneLineResponse struct {
	Result struct {
		AddressMatches []struct {
			Coordinates struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
			MatchedAddress string `json:"matchedAddress"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// censusProvider calls the US Census Geocoder. It needs no API key.
type censusProvider struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

func (p *censusProvider) Name() string { return "census" }

func (p *censusProvider) Available() bool { return true }

// Geocode geocodes a single address with the one-line API.
func (p *censusProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census rate limit")
	}

	params := url.Values{
		"address":   {formatOneLine(addr)},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, censusOneLineURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("census", resp)
	}

	var body censusOneLineResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	if len(body.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: "census"}, nil
	}

	match := body.Result.AddressMatches[0]
	return &Result{
		Latitude:       match.Coordinates.Y,
		Longitude:      match.Coordinates.X,
		Source:         "census",
		Quality:        "rooftop",
		MatchedAddress: match.MatchedAddress,
		Matched:        true,
	}, nil
}

// batch geocodes up to MaxCensusBatch addresses with the batch API. Every
// input must carry a unique ID.
func (p *censusProvider) batch(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) > MaxCensusBatch {
		return nil, eris.Errorf("geocode: census batch of %d exceeds %d", len(addrs), MaxCensusBatch)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch rate limit")
	}

	var file bytes.Buffer
	w := csv.NewWriter(&file)
	idToIdx := make(map[string]int, len(addrs))
	for i, addr := range addrs {
		idToIdx[addr.ID] = i
		if err := w.Write([]string{addr.ID, addr.Street, addr.City, addr.State, addr.ZipCode}); err != nil {
			return nil, eris.Wrap(err, "geocode: census batch write csv")
		}
	}
	w.Flush()

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	if err := mw.WriteField("benchmark", censusBenchmark); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch write benchmark")
	}
	part, err := mw.CreateFormFile("addressFile", "addresses.csv")
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch create form file")
	}
	if _, err := part.Write(file.Bytes()); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch write form")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch close form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, censusBatchURL, &form)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("census batch", resp)
	}

	return parseCensusBatchResponse(resp.Body, idToIdx, len(addrs))
}

// parseCensusBatchResponse reads the batch CSV response:
// id, input address, Match|No_Match|Tie, Exact|Non_Exact, matched address, "lon,lat", tiger id, side.
func parseCensusBatchResponse(r io.Reader, idToIdx map[string]int, total int) ([]Result, error) {
	results := make([]Result, total)
	for i := range results {
		results[i].Source = "census"
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "geocode: census batch parse response")
		}
		if len(fields) < 6 {
			continue
		}
		idx, ok := idToIdx[strings.TrimSpace(fields[0])]
		if !ok || !strings.EqualFold(fields[2], "Match") {
			continue
		}
		lon, lat, err := parseCensusCoords(fields[5])
		if err != nil {
			continue
		}
		results[idx] = Result{
			Latitude:       lat,
			Longitude:      lon,
			Source:         "census",
			Quality:        censusBatchQuality(fields[3]),
			MatchedAddress: fields[4],
			Matched:        true,
		}
	}
	return results, nil
}

func censusBatchQuality(exactness string) string {
	if strings.EqualFold(strings.TrimSpace(exactness), "exact") {
		return "rooftop"
	}
	return "range"
}

// parseCensusCoords parses "lon,lat".
func parseCensusCoords(coords string) (lon, lat float64, err error) {
	lonStr, latStr, ok := strings.Cut(coords, ",")
	if !ok {
		return 0, 0, eris.Errorf("geocode: invalid census coords %q", coords)
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64); err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lon")
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64); err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lat")
	}
	return lon, lat, nil
}
