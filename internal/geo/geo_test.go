package geo

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/middle-housing/internal/model"
)

func sampleRecords() []model.Record {
	return []model.Record{
		{
			Index:       0,
			Description: "Construct DADU",
			Address:     "1 Main St",
			Location:    &model.Location{Latitude: 47.60, Longitude: -122.33, Source: "census", Quality: "rooftop"},
			Classification: model.Classification{
				Category: model.CategoryDADU, IsMiddleHousing: true,
			},
		},
		{
			Index:       1,
			Description: "Kitchen remodel",
			Address:     "2 Pine St",
			Location:    &model.Location{Latitude: 47.70, Longitude: -122.40},
			Classification: model.Classification{
				Category: model.CategoryExcluded,
			},
		},
		{
			Index:       2,
			Description: "New 4-unit building",
			ProjectName: "Fremont Fourplex",
			Address:     "3 Oak St",
			Location:    &model.Location{Latitude: 47.65, Longitude: -122.35},
			Classification: model.Classification{
				Category: model.CategoryMultiplex, IsMiddleHousing: true, UnitCount: 4,
			},
		},
		{
			Index:       3,
			Description: "Townhomes",
			Address:     "somewhere",
			Classification: model.Classification{
				Category: model.CategoryTownhome, IsMiddleHousing: true,
			},
		},
	}
}

func TestPointEWKB_RoundTrip(t *testing.T) {
	loc := &model.Location{Latitude: 47.6062, Longitude: -122.3321}
	data, err := PointEWKB(loc)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	// NDR byte order marker.
	assert.Equal(t, byte(1), data[0])

	back, err := DecodePointEWKB(data)
	require.NoError(t, err)
	assert.InDelta(t, loc.Latitude, back.Latitude, 1e-9)
	assert.InDelta(t, loc.Longitude, back.Longitude, 1e-9)
}

func TestPointEWKB_Nil(t *testing.T) {
	data, err := PointEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	loc, err := DecodePointEWKB(nil)
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestDecodePointEWKB_Invalid(t *testing.T) {
	_, err := DecodePointEWKB([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode EWKB")
}

func TestPoint_SRID(t *testing.T) {
	p := Point(model.Location{Latitude: 1, Longitude: 2})
	assert.Equal(t, SRID, p.SRID())
	assert.Equal(t, 2.0, p.X())
	assert.Equal(t, 1.0, p.Y())
}

func TestFeatureCollection(t *testing.T) {
	tests := []struct {
		name    string
		filter  model.FilterStatus
		wantIDs []string
	}{
		{name: "all", filter: model.FilterAll, wantIDs: []string{"0", "1", "2"}},
		{name: "middle housing", filter: model.FilterMiddleHousingOnly, wantIDs: []string{"0", "2"}},
		{name: "excluded", filter: model.FilterExcluded, wantIDs: []string{"1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := FeatureCollection(sampleRecords(), tt.filter)
			var ids []string
			for _, f := range fc.Features {
				ids = append(ids, f.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.NotNil(t, fc.BBox)
		})
	}
}

func TestFeatureCollection_Properties(t *testing.T) {
	fc := FeatureCollection(sampleRecords(), model.FilterMiddleHousingOnly)
	require.Len(t, fc.Features, 2)

	dadu := fc.Features[0].Properties
	assert.Equal(t, "DADU", dadu[PropCategory])
	assert.Equal(t, true, dadu[PropMiddleHousing])
	assert.Equal(t, "census", dadu[PropSource])
	assert.NotContains(t, dadu, PropUnitCount)

	plex := fc.Features[1].Properties
	assert.Equal(t, 4, plex[PropUnitCount])
	assert.Equal(t, "Fremont Fourplex", plex[PropProjectName])
	assert.NotContains(t, plex, PropSource)
}

func TestFeatureCollection_Empty(t *testing.T) {
	fc := FeatureCollection(nil, model.FilterAll)
	assert.Empty(t, fc.Features)
	assert.Nil(t, fc.BBox)

	var buf bytes.Buffer
	n, err := WriteGeoJSON(&buf, nil, model.FilterAll)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, buf.String(), `"FeatureCollection"`)
}

func TestWriteGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteGeoJSON(&buf, sampleRecords(), model.FilterAll)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 3)
	assert.Equal(t, "Point", doc.Features[0].Geometry.Type)
	// GeoJSON positions are [lon, lat].
	assert.Equal(t, []float64{-122.33, 47.60}, doc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "Detached ADU", doc.Features[0].Properties[PropLabel])
}

func TestBounds(t *testing.T) {
	b, ok := Bounds(sampleRecords(), model.FilterAll)
	require.True(t, ok)
	assert.InDelta(t, -122.40, b.Min(0), 1e-9)
	assert.InDelta(t, -122.33, b.Max(0), 1e-9)
	assert.InDelta(t, 47.60, b.Min(1), 1e-9)
	assert.InDelta(t, 47.70, b.Max(1), 1e-9)

	_, ok = Bounds(sampleRecords()[3:], model.FilterAll)
	assert.False(t, ok)
}

func TestWriteShapefile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permits")
	n, err := WriteShapefile(path, sampleRecords(), model.FilterMiddleHousingOnly)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r, err := shp.Open(path + ".shp")
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	fields := r.Fields()
	require.Len(t, fields, len(shapeFields))
	assert.Equal(t, "CATEGORY", fields[0].String())

	var cats []string
	var xs []float64
	for r.Next() {
		idx, shape := r.Shape()
		p, ok := shape.(*shp.Point)
		require.True(t, ok)
		xs = append(xs, p.X)
		cats = append(cats, r.ReadAttribute(idx, 0))
	}
	assert.Equal(t, []string{"DADU", "MULTIPLEX"}, cats)
	assert.Equal(t, []float64{-122.33, -122.35}, xs)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	// "é" is two bytes; never cut inside it.
	assert.Equal(t, "a", truncate("aé", 2))
}
