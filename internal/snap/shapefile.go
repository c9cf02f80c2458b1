package snap

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldmap-cli/internal/model"
)

// ShapefileProvider reads boundaries from a Polygon shapefile. The optional
// ID, CONFIDENCE and SOURCE attributes are matched case-insensitively;
// confidence defaults to 1. Counter-clockwise rings are holes and skipped.
type ShapefileProvider struct {
	Path string
}

// NewFileProvider picks a provider from the file extension: .shp files are
// read as shapefiles, everything else as GeoJSON.
func NewFileProvider(path string) BoundaryProvider {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return ShapefileProvider{Path: path}
	}
	return GeoJSONFileProvider{Path: path}
}

// Boundaries implements BoundaryProvider.
func (s ShapefileProvider) Boundaries(_ context.Context) ([]model.FieldBoundary, error) {
	reader, err := shp.Open(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "snap: open shapefile %s", s.Path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var out []model.FieldBoundary
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}

		id := attr("id")
		if id == "" {
			id = fmt.Sprintf("boundary-%d", n)
		}
		confidence := 1.0
		if raw := attr("confidence"); raw != "" {
			if confidence, err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, eris.Wrapf(err, "snap: record %d confidence %q", n, raw)
			}
		}
		source := attr("source")
		if source == "" {
			source = "shapefile"
		}

		rings := polygonRings(poly)
		for j, ring := range rings {
			b := model.FieldBoundary{ID: id, Ring: ring, Confidence: confidence, Source: source}
			if len(rings) > 1 {
				b.ID = fmt.Sprintf("%s-%d", id, j)
			}
			out = append(out, b)
		}
	}

	if skipped > 0 {
		zap.L().Debug("snap: skipped non-polygon shapefile records",
			zap.String("path", s.Path),
			zap.Int("skipped", skipped),
		)
	}
	return out, nil
}

// polygonRings splits a shapefile polygon into its clockwise outer rings.
func polygonRings(p *shp.Polygon) [][]model.GeoPoint {
	var rings [][]model.GeoPoint
	for i := range p.Parts {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		if start >= end || end > len(p.Points) {
			continue
		}
		ring := make([]model.GeoPoint, 0, end-start)
		var signed float64
		for k := start; k < end; k++ {
			ring = append(ring, model.GeoPoint{Lng: p.Points[k].X, Lat: p.Points[k].Y})
			if k+1 < end {
				signed += (p.Points[k+1].X - p.Points[k].X) * (p.Points[k+1].Y + p.Points[k].Y)
			}
		}
		if signed < 0 || len(ring) < 4 {
			continue
		}
		rings = append(rings, ring)
	}
	return rings
}
