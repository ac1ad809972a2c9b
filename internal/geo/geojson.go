package geo

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/middle-housing/internal/model"
)

// Feature property keys.
const (
	PropCategory      = "category"
	PropLabel         = "label"
	PropMiddleHousing = "is_middle_housing"
	PropUnitCount     = "unit_count"
	PropDescription   = "description"
	PropProjectName   = "project_name"
	PropAddress       = "address"
	PropSource        = "geocode_source"
	PropQuality       = "geocode_quality"
)

// FeatureCollection builds one Point feature per geocoded record that passes
// filter. Records without a location are skipped. The collection carries a
// bounding box when it has at least one feature.
func FeatureCollection(records []model.Record, filter model.FilterStatus) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, r := range records {
		if r.Location == nil || !filter.Matches(r.Classification) {
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(r.Index),
			Geometry:   Point(*r.Location),
			Properties: properties(r),
		})
	}
	if b, ok := Bounds(records, filter); ok {
		fc.BBox = b
	}
	return fc
}

func properties(r model.Record) map[string]any {
	props := map[string]any{
		PropCategory:      string(r.Category),
		PropLabel:         r.Category.Label(),
		PropMiddleHousing: r.IsMiddleHousing,
		PropDescription:   r.Description,
		PropProjectName:   r.ProjectName,
		PropAddress:       r.Address,
	}
	if r.UnitCount > 0 {
		props[PropUnitCount] = r.UnitCount
	}
	if r.Location.Source != "" {
		props[PropSource] = r.Location.Source
	}
	if r.Location.Quality != "" {
		props[PropQuality] = r.Location.Quality
	}
	return props
}

// WriteGeoJSON writes the feature collection for records to w.
func WriteGeoJSON(w io.Writer, records []model.Record, filter model.FilterStatus) (int, error) {
	fc := FeatureCollection(records, filter)
	data, err := json.Marshal(fc)
	if err != nil {
		return 0, eris.Wrap(err, "geo: marshal feature collection")
	}
	if _, err := w.Write(data); err != nil {
		return 0, eris.Wrap(err, "geo: write geojson")
	}
	return len(fc.Features), nil
}

// Bounds returns the extent of the geocoded records passing filter. ok is
// false when none have a location.
func Bounds(records []model.Record, filter model.FilterStatus) (b *geom.Bounds, ok bool) {
	b = geom.NewBounds(geom.XY)
	for _, r := range records {
		if r.Location == nil || !filter.Matches(r.Classification) {
			continue
		}
		b.Extend(Point(*r.Location))
		ok = true
	}
	if !ok {
		return nil, false
	}
	return b, true
}
