package export

import (
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/sells-group/fieldmap-cli/internal/geometry"
	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
)

// FeatureCollection converts doc to GeoJSON: distances as LineStrings and
// areas as Polygons, with the formatted values as properties.
func FeatureCollection(doc *measure.ExportDocument) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	var all []model.GeoPoint

	for _, d := range doc.Distances {
		ls := make(orb.LineString, len(d.Points))
		for i, p := range d.Points {
			ls[i] = geometry.ToOrb(p)
		}
		f := geojson.NewFeature(ls)
		f.ID = d.ID
		f.Properties["kind"] = string(model.KindDistance)
		f.Properties["distance_m"] = d.DistanceMeters
		f.Properties["label"] = d.Formatted
		f.Properties["created_at"] = d.CreatedAt
		fc.Append(f)
		all = append(all, d.Points...)
	}

	for _, a := range doc.Areas {
		ring := make(orb.Ring, len(a.Points))
		for i, p := range a.Points {
			ring[i] = geometry.ToOrb(p)
		}
		f := geojson.NewFeature(orb.Polygon{ring})
		f.ID = a.ID
		f.Properties["kind"] = string(model.KindArea)
		f.Properties["tool"] = string(a.Tool)
		f.Properties["area_m2"] = a.Area.SquareMeters
		f.Properties["area_ha"] = a.Area.Hectares
		f.Properties["perimeter_m"] = a.PerimeterMeters
		f.Properties["preferred_unit"] = string(a.PreferredUnit)
		f.Properties["label"] = a.Formatted
		f.Properties["created_at"] = a.CreatedAt
		fc.Append(f)
		all = append(all, a.Points...)
	}

	if len(all) > 0 {
		fc.BBox = geojson.NewBBox(geometry.Bounds(all))
	}
	return fc
}

// WriteGeoJSON writes doc as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, doc *measure.ExportDocument) error {
	data, err := FeatureCollection(doc).MarshalJSON()
	if err != nil {
		return measure.NewExportError("marshal geojson", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return measure.NewExportError("write geojson", err)
	}
	return nil
}
