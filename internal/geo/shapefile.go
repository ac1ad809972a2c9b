package geo

import (
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/middle-housing/internal/model"
)

// dBase field names are limited to 10 characters.
var shapeFields = []shp.Field{
	shp.StringField("CATEGORY", 16),
	shp.NumberField("MIDDLE", 1),
	shp.NumberField("UNITS", 4),
	shp.StringField("ADDRESS", 120),
	shp.StringField("PROJECT", 120),
	shp.StringField("DESCR", 254),
	shp.NumberField("ROW", 9),
}

// WriteShapefile writes a point shapefile (.shp, .shx and .dbf) at path for
// the geocoded records passing filter. It returns the number of points
// written.
func WriteShapefile(path string, records []model.Record, filter model.FilterStatus) (int, error) {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		path += ".shp"
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return 0, eris.Wrapf(err, "geo: create shapefile %s", path)
	}
	if err := w.SetFields(shapeFields); err != nil {
		w.Close()
		return 0, eris.Wrap(err, "geo: set shapefile fields")
	}

	n := 0
	for _, r := range records {
		if r.Location == nil || !filter.Matches(r.Classification) {
			continue
		}
		idx := int(w.Write(&shp.Point{X: r.Location.Longitude, Y: r.Location.Latitude}))
		middle := 0
		if r.IsMiddleHousing {
			middle = 1
		}
		attrs := []any{
			string(r.Category),
			middle,
			r.UnitCount,
			truncate(r.Address, 120),
			truncate(r.ProjectName, 120),
			truncate(r.Description, 254),
			r.Index,
		}
		for field, v := range attrs {
			if err := w.WriteAttribute(idx, field, v); err != nil {
				w.Close()
				return n, eris.Wrapf(err, "geo: write attribute %d of row %d", field, r.Index)
			}
		}
		n++
	}
	w.Close()
	return n, nil
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
