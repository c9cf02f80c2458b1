package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/fieldmap-cli/internal/model"
)

const srid = 4326

func flatCoords(points []model.GeoPoint) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.Lng, p.Lat)
	}
	return flat
}

// encodeLineString converts a measured path to EWKB with SRID 4326.
func encodeLineString(points []model.GeoPoint) ([]byte, error) {
	ls := geom.NewLineStringFlat(geom.XY, flatCoords(points)).SetSRID(srid)
	data, err := ewkb.Marshal(ls, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: encode linestring")
	}
	return data, nil
}

// encodePolygon converts a closed ring to an EWKB polygon with SRID 4326.
func encodePolygon(ring []model.GeoPoint) ([]byte, error) {
	flat := flatCoords(ring)
	poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(srid)
	data, err := ewkb.Marshal(poly, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: encode polygon")
	}
	return data, nil
}

// decodePoints returns the vertices of an EWKB linestring or the outer ring
// of an EWKB polygon.
func decodePoints(data []byte) ([]model.GeoPoint, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: decode geometry")
	}

	var coords []geom.Coord
	switch t := g.(type) {
	case *geom.LineString:
		coords = t.Coords()
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, nil
		}
		coords = t.LinearRing(0).Coords()
	default:
		return nil, eris.Errorf("sqlite: unexpected geometry %T", g)
	}

	points := make([]model.GeoPoint, len(coords))
	for i, c := range coords {
		points[i] = model.GeoPoint{Lng: c.X(), Lat: c.Y()}
	}
	return points, nil
}
