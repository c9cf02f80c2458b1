package snap

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldmap-cli/internal/geometry"
	"github.com/sells-group/fieldmap-cli/internal/model"
)

// BoundaryProvider supplies detected field boundaries. Providers are
// untrusted; each boundary carries its own confidence.
type BoundaryProvider interface {
	Boundaries(ctx context.Context) ([]model.FieldBoundary, error)
}

// StaticProvider serves a fixed set of boundaries.
type StaticProvider []model.FieldBoundary

// Boundaries implements BoundaryProvider.
func (s StaticProvider) Boundaries(_ context.Context) ([]model.FieldBoundary, error) {
	return s, nil
}

// GeoJSONFileProvider reads boundaries from a GeoJSON FeatureCollection of
// Polygon or MultiPolygon features. The "confidence" and "source" feature
// properties are honoured; confidence defaults to 1.
type GeoJSONFileProvider struct {
	Path string
}

// Boundaries implements BoundaryProvider.
func (g GeoJSONFileProvider) Boundaries(_ context.Context) ([]model.FieldBoundary, error) {
	data, err := os.ReadFile(g.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "snap: read boundaries %s", g.Path)
	}
	return ParseBoundaries(data)
}

// ParseBoundaries decodes a GeoJSON FeatureCollection into boundaries. Only
// the outer ring of each polygon is used.
func ParseBoundaries(data []byte) ([]model.FieldBoundary, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrap(err, "snap: parse boundaries")
	}

	var out []model.FieldBoundary
	for i, f := range fc.Features {
		id := featureID(f, i)
		confidence := f.Properties.MustFloat64("confidence", 1)
		source := f.Properties.MustString("source", "geojson")

		var polys []orb.Polygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, g)
		case orb.MultiPolygon:
			polys = append(polys, g...)
		default:
			zap.L().Debug("snap: skipping non-polygon boundary feature",
				zap.String("id", id),
				zap.String("geometry", fmt.Sprintf("%T", f.Geometry)),
			)
			continue
		}

		for j, poly := range polys {
			if len(poly) == 0 || len(poly[0]) == 0 {
				continue
			}
			ring := make([]model.GeoPoint, len(poly[0]))
			for k, p := range poly[0] {
				ring[k] = geometry.FromOrb(p)
			}
			bid := id
			if len(polys) > 1 {
				bid = fmt.Sprintf("%s-%d", id, j)
			}
			out = append(out, model.FieldBoundary{
				ID:         bid,
				Ring:       ring,
				Confidence: confidence,
				Source:     source,
			})
		}
	}
	return out, nil
}

func featureID(f *geojson.Feature, idx int) string {
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	if name := f.Properties.MustString("id", ""); name != "" {
		return name
	}
	return fmt.Sprintf("boundary-%d", idx)
}
