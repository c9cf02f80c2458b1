package export

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldmap-cli/internal/geometry"
	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
)

// wgs84PRJ is the ESRI projection definition written next to each shapefile.
const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

var shapefileSidecars = []string{".shp", ".shx", ".dbf", ".prj"}

// WriteShapefiles writes <base>_distances.shp (PolyLine) and
// <base>_areas.shp (Polygon) with their .shx/.dbf/.prj sidecars. Kinds with
// no measurements are skipped. Returns the .shp paths written.
func WriteShapefiles(doc *measure.ExportDocument, dir, base string) ([]string, error) {
	var written []string

	if len(doc.Distances) > 0 {
		stem := filepath.Join(dir, base+"_distances")
		if err := writeDistanceShapefile(stem, doc.Distances); err != nil {
			removeShapefile(stem)
			return nil, err
		}
		written = append(written, stem+".shp")
	}

	if len(doc.Areas) > 0 {
		stem := filepath.Join(dir, base+"_areas")
		if err := writeAreaShapefile(stem, doc.Areas); err != nil {
			removeShapefile(stem)
			for _, p := range written {
				removeShapefile(strings.TrimSuffix(p, ".shp"))
			}
			return nil, err
		}
		written = append(written, stem+".shp")
	}

	zap.L().Info("export: wrote shapefiles", zap.Strings("paths", written))
	return written, nil
}

func writeDistanceShapefile(stem string, entries []measure.DistanceEntry) error {
	w, err := shp.Create(stem+".shp", shp.POLYLINE)
	if err != nil {
		return measure.NewExportError("create distance shapefile", err)
	}
	defer w.Close()

	w.SetFields([]shp.Field{
		shp.StringField("ID", 36),
		shp.FloatField("DIST_M", 18, 3),
		shp.StringField("LABEL", 32),
		shp.StringField("CREATED", 25),
	})

	for _, e := range entries {
		n := int(w.Write(shp.NewPolyLine([][]shp.Point{shpPoints(e.Points)})))
		for i, v := range []any{e.ID, e.DistanceMeters, e.Formatted, e.CreatedAt.Format("2006-01-02T15:04:05Z07:00")} {
			if err := w.WriteAttribute(n, i, v); err != nil {
				return measure.NewExportError("write distance attribute", eris.Wrapf(err, "shp: %s field %d", e.ID, i))
			}
		}
	}
	return writePRJ(stem)
}

func writeAreaShapefile(stem string, entries []measure.AreaEntry) error {
	w, err := shp.Create(stem+".shp", shp.POLYGON)
	if err != nil {
		return measure.NewExportError("create area shapefile", err)
	}
	defer w.Close()

	w.SetFields([]shp.Field{
		shp.StringField("ID", 36),
		shp.StringField("TOOL", 10),
		shp.FloatField("AREA_M2", 18, 3),
		shp.FloatField("AREA_HA", 18, 4),
		shp.FloatField("PERIM_M", 18, 3),
		shp.StringField("UNIT", 20),
		shp.StringField("LABEL", 32),
		shp.StringField("CREATED", 25),
	})

	for _, e := range entries {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{shpPoints(clockwise(geometry.CloseRing(e.Points)))}))
		n := int(w.Write(&poly))
		values := []any{
			e.ID, string(e.Tool), e.Area.SquareMeters, e.Area.Hectares, e.PerimeterMeters,
			string(e.PreferredUnit), e.Formatted, e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		for i, v := range values {
			if err := w.WriteAttribute(n, i, v); err != nil {
				return measure.NewExportError("write area attribute", eris.Wrapf(err, "shp: %s field %d", e.ID, i))
			}
		}
	}
	return writePRJ(stem)
}

func shpPoints(points []model.GeoPoint) []shp.Point {
	out := make([]shp.Point, len(points))
	for i, p := range points {
		out[i] = shp.Point{X: p.Lng, Y: p.Lat}
	}
	return out
}

// clockwise returns the ring in the clockwise order shapefiles expect for
// outer rings.
func clockwise(ring []model.GeoPoint) []model.GeoPoint {
	var sum float64
	for i := 0; i+1 < len(ring); i++ {
		sum += (ring[i+1].Lng - ring[i].Lng) * (ring[i+1].Lat + ring[i].Lat)
	}
	if sum >= 0 {
		return ring
	}
	out := make([]model.GeoPoint, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

func writePRJ(stem string) error {
	if err := os.WriteFile(stem+".prj", []byte(wgs84PRJ), 0o644); err != nil {
		return measure.NewExportError("write prj", err)
	}
	return nil
}

func removeShapefile(stem string) {
	for _, ext := range shapefileSidecars {
		os.Remove(stem + ext) //nolint:errcheck
	}
}
