package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fieldmap-cli/internal/geometry"
	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

var exportedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testDoc(t *testing.T) *measure.ExportDocument {
	t.Helper()
	origin := model.GeoPoint{Lng: -47.06, Lat: -22.9}
	east := geometry.Destination(origin, 90, 220)
	ring := []model.GeoPoint{origin, east, geometry.Destination(east, 0, 110), geometry.Destination(origin, 0, 110)}
	line := []model.GeoPoint{origin, geometry.Destination(origin, 90, 1500)}

	area, err := units.ConvertArea(geometry.PolygonArea(ring))
	require.NoError(t, err)

	c := measure.NewCollection()
	c.AddDistance(model.DistanceMeasurement{
		ID:             "d-1",
		Points:         line,
		DistanceMeters: geometry.DistanceAlongPath(line),
		CreatedAt:      exportedAt,
	})
	c.AddArea(model.AreaMeasurement{
		ID:              "a-1",
		Tool:            model.ToolArea,
		Points:          geometry.CloseRing(ring),
		Area:            area,
		PerimeterMeters: geometry.PolygonPerimeter(ring),
		PreferredUnit:   units.AlqueirePaulista,
		CreatedAt:       exportedAt,
	})

	doc, err := measure.BuildExport(c, measure.DefaultSettings(), units.DefaultTable(), exportedAt)
	require.NoError(t, err)
	return doc
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"YAML", FormatYAML},
		{"yml", FormatYAML},
		{" geojson ", FormatGeoJSON},
		{"xlsx", FormatXLSX},
		{"shp", FormatShapefile},
		{"shapefile", FormatShapefile},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestToFiles_JSON(t *testing.T) {
	dir := t.TempDir()
	doc := testDoc(t)

	paths, err := ToFiles(FormatJSON, doc, dir, "fieldmap_measurements_2026-03-14")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "fieldmap_measurements_2026-03-14.json"), paths[0])

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	parsed, err := measure.ParseExport(data)
	require.NoError(t, err)
	assert.NoError(t, parsed.Verify(units.DefaultTable()))
	assert.Equal(t, "1.00 alq", parsed.Areas[0].Formatted)

	info, err := os.Stat(paths[0])
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(dir, ".export-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestToFiles_YAML(t *testing.T) {
	dir := t.TempDir()
	paths, err := ToFiles(FormatYAML, testDoc(t), dir, "out")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(paths[0], "out.yaml"))

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Contains(t, raw, "summary")
	assert.Contains(t, raw, "distances")
	assert.Contains(t, raw, "areas")
	assert.Contains(t, string(data), "formatted: 1.00 alq")
}

func TestWriteGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, testDoc(t)))

	fc, err := geojson.UnmarshalFeatureCollection(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	line, ok := fc.Features[0].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, line, 2)
	assert.Equal(t, "distance", fc.Features[0].Properties["kind"])
	assert.Equal(t, "1.50 km", fc.Features[0].Properties["label"])

	poly, ok := fc.Features[1].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1)
	assert.Equal(t, poly[0][0], poly[0][len(poly[0])-1])
	assert.Equal(t, "a-1", fc.Features[1].ID)
	assert.Equal(t, "1.00 alq", fc.Features[1].Properties["label"])
	assert.NotNil(t, fc.BBox)
}

func TestWriteGeoJSON_Empty(t *testing.T) {
	doc, err := measure.BuildExport(measure.NewCollection(), measure.DefaultSettings(), units.DefaultTable(), exportedAt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, doc))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Equal(t, "FeatureCollection", raw["type"])
	assert.NotContains(t, raw, "bbox")
}

func TestToFiles_XLSX(t *testing.T) {
	dir := t.TempDir()
	paths, err := ToFiles(FormatXLSX, testDoc(t), dir, "book")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	f, err := xlsx.OpenBinary(data)
	require.NoError(t, err)

	for _, name := range []string{SheetDistances, SheetAreas, SheetSettings} {
		assert.Contains(t, f.Sheet, name)
	}

	ds := f.Sheet[SheetDistances]
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "ID", ds.Rows[0].Cells[0].Value)
	assert.Equal(t, "d-1", ds.Rows[1].Cells[0].Value)

	as := f.Sheet[SheetAreas]
	require.Len(t, as.Rows, 2)
	assert.Equal(t, "a-1", as.Rows[1].Cells[0].Value)
	assert.Equal(t, "alq", as.Rows[1].Cells[8].Value)
	assert.Equal(t, "1.00 alq", as.Rows[1].Cells[9].Value)
}

func TestToFiles_Shapefile(t *testing.T) {
	dir := t.TempDir()
	paths, err := ToFiles(FormatShapefile, testDoc(t), dir, "shapes")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "shapes_distances.shp"), paths[0])
	assert.Equal(t, filepath.Join(dir, "shapes_areas.shp"), paths[1])

	for _, p := range paths {
		stem := strings.TrimSuffix(p, ".shp")
		for _, ext := range shapefileSidecars {
			assert.FileExists(t, stem+ext)
		}
	}

	r, err := shp.Open(paths[1])
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, shp.POLYGON, r.GeometryType)
	require.True(t, r.Next())
	n, shape := r.Shape()
	poly, ok := shape.(*shp.Polygon)
	require.True(t, ok)
	assert.Equal(t, int32(5), poly.NumPoints)
	assert.Equal(t, "a-1", strings.TrimSpace(r.ReadAttribute(n, 0)))
	assert.Equal(t, "area", strings.TrimSpace(r.ReadAttribute(n, 1)))
	assert.False(t, r.Next())
}

func TestWriteShapefiles_SkipsEmptyKinds(t *testing.T) {
	doc := testDoc(t)
	doc.Distances = nil

	paths, err := WriteShapefiles(doc, t.TempDir(), "only")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasSuffix(paths[0], "only_areas.shp"))
}

func TestClockwise(t *testing.T) {
	ccw := []model.GeoPoint{{Lng: 0, Lat: 0}, {Lng: 1, Lat: 0}, {Lng: 1, Lat: 1}, {Lng: 0, Lat: 0}}
	cw := clockwise(ccw)
	assert.Equal(t, model.GeoPoint{Lng: 1, Lat: 1}, cw[1])
	assert.Equal(t, cw, clockwise(cw))
}
