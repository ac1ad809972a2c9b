package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/middle-housing/internal/model"
)

// SRID is the spatial reference of every geometry this package produces (WGS 84).
const SRID = 4326

// Point returns loc as a go-geom point with SRID 4326.
func Point(loc model.Location) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{loc.Longitude, loc.Latitude}).SetSRID(SRID)
}

// PointEWKB encodes loc as little-endian EWKB. A nil location encodes to nil.
func PointEWKB(loc *model.Location) ([]byte, error) {
	if loc == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(Point(*loc), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// DecodePointEWKB parses an EWKB point. Empty input decodes to nil.
func DecodePointEWKB(data []byte) (*model.Location, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode EWKB")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("geo: expected point, got %T", g)
	}
	return &model.Location{Longitude: p.X(), Latitude: p.Y()}, nil
}
