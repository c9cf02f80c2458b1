package measure

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

// DefaultExportPrefix names export files when no prefix is configured.
const DefaultExportPrefix = "fieldmap"

// ExportDocument is the serialized form of a measurement collection.
type ExportDocument struct {
	ExportedAt time.Time       `json:"exported_at" yaml:"exported_at"`
	Settings   ExportSettings  `json:"settings" yaml:"settings"`
	Summary    ExportSummary   `json:"summary" yaml:"summary"`
	Distances  []DistanceEntry `json:"distances" yaml:"distances"`
	Areas      []AreaEntry     `json:"areas" yaml:"areas"`
}

// ExportSettings records the settings in effect at export time.
type ExportSettings struct {
	PreferredUnit      units.AreaUnit             `json:"preferred_unit" yaml:"preferred_unit"`
	SnapToFieldEnabled bool                       `json:"snap_to_field_enabled" yaml:"snap_to_field_enabled"`
	SnapToleranceM     float64                    `json:"snap_tolerance_m" yaml:"snap_tolerance_m"`
	Locale             string                     `json:"locale" yaml:"locale"`
	Factors            map[units.AreaUnit]float64 `json:"factors_m2" yaml:"factors_m2"`
}

// ExportSummary totals the exported measurements.
type ExportSummary struct {
	DistanceCount  int     `json:"distance_count" yaml:"distance_count"`
	AreaCount      int     `json:"area_count" yaml:"area_count"`
	TotalDistanceM float64 `json:"total_distance_m" yaml:"total_distance_m"`
	TotalAreaM2    float64 `json:"total_area_m2" yaml:"total_area_m2"`
	TotalDistance  string  `json:"total_distance" yaml:"total_distance"`
	TotalArea      string  `json:"total_area" yaml:"total_area"`
}

// DistanceEntry is an exported distance measurement.
type DistanceEntry struct {
	ID             string           `json:"id" yaml:"id"`
	Points         []model.GeoPoint `json:"points" yaml:"points"`
	DistanceMeters float64          `json:"distance_m" yaml:"distance_m"`
	Formatted      string           `json:"formatted" yaml:"formatted"`
	CreatedAt      time.Time        `json:"created_at" yaml:"created_at"`
}

// AreaEntry is an exported area measurement. Formatted uses the
// measurement's preferred unit; FormattedUnits has every unit.
type AreaEntry struct {
	ID                 string                    `json:"id" yaml:"id"`
	Tool               model.Tool                `json:"tool" yaml:"tool"`
	Points             []model.GeoPoint          `json:"points" yaml:"points"`
	Area               units.AreaValue           `json:"area" yaml:"area"`
	PerimeterMeters    float64                   `json:"perimeter_m" yaml:"perimeter_m"`
	PreferredUnit      units.AreaUnit            `json:"preferred_unit" yaml:"preferred_unit"`
	SnapToFieldEnabled bool                      `json:"snap_to_field_enabled" yaml:"snap_to_field_enabled"`
	Formatted          string                    `json:"formatted" yaml:"formatted"`
	FormattedUnits     map[units.AreaUnit]string `json:"formatted_units" yaml:"formatted_units"`
	FormattedPerimeter string                    `json:"formatted_perimeter" yaml:"formatted_perimeter"`
	CreatedAt          time.Time                 `json:"created_at" yaml:"created_at"`
}

// BuildExport snapshots the collection into an export document.
func BuildExport(c *Collection, s Settings, t *units.Table, now time.Time) (*ExportDocument, error) {
	doc := &ExportDocument{
		ExportedAt: now.UTC(),
		Settings: ExportSettings{
			PreferredUnit:      s.PreferredUnit,
			SnapToFieldEnabled: s.Snap.Enabled,
			SnapToleranceM:     s.Snap.Tolerance,
			Locale:             t.Locale().String(),
			Factors:            make(map[units.AreaUnit]float64, len(units.AllUnits)),
		},
		Distances: []DistanceEntry{},
		Areas:     []AreaEntry{},
	}

	for _, u := range units.AllUnits {
		f, err := t.Factor(u)
		if err != nil {
			return nil, NewExportError("factor "+string(u), err)
		}
		doc.Settings.Factors[u] = f
	}

	for _, d := range c.Distances() {
		formatted, err := t.FormatDistance(d.DistanceMeters)
		if err != nil {
			return nil, NewExportError("format distance "+d.ID, err)
		}
		doc.Distances = append(doc.Distances, DistanceEntry{
			ID:             d.ID,
			Points:         d.Points,
			DistanceMeters: d.DistanceMeters,
			Formatted:      formatted,
			CreatedAt:      d.CreatedAt,
		})
		doc.Summary.TotalDistanceM += d.DistanceMeters
	}

	for _, a := range c.Areas() {
		entry, err := buildAreaEntry(a, t)
		if err != nil {
			return nil, NewExportError("format area "+a.ID, err)
		}
		doc.Areas = append(doc.Areas, entry)
		doc.Summary.TotalAreaM2 += a.Area.SquareMeters
	}

	doc.Summary.DistanceCount = len(doc.Distances)
	doc.Summary.AreaCount = len(doc.Areas)
	var err error
	if doc.Summary.TotalArea, err = t.FormatArea(doc.Summary.TotalAreaM2, s.PreferredUnit); err != nil {
		return nil, NewExportError("format total area", err)
	}
	if doc.Summary.TotalDistance, err = t.FormatDistance(doc.Summary.TotalDistanceM); err != nil {
		return nil, NewExportError("format total distance", err)
	}
	return doc, nil
}

func buildAreaEntry(a model.AreaMeasurement, t *units.Table) (AreaEntry, error) {
	unit := a.PreferredUnit
	if !unit.Valid() {
		unit = units.Hectare
	}
	formatted, err := t.FormatArea(a.Area.SquareMeters, unit)
	if err != nil {
		return AreaEntry{}, err
	}
	perimeter, err := t.FormatDistance(a.PerimeterMeters)
	if err != nil {
		return AreaEntry{}, err
	}
	all := make(map[units.AreaUnit]string, len(units.AllUnits))
	for _, u := range units.AllUnits {
		if all[u], err = t.FormatArea(a.Area.SquareMeters, u); err != nil {
			return AreaEntry{}, err
		}
	}
	return AreaEntry{
		ID:                 a.ID,
		Tool:               a.Tool,
		Points:             a.Points,
		Area:               a.Area,
		PerimeterMeters:    a.PerimeterMeters,
		PreferredUnit:      unit,
		SnapToFieldEnabled: a.SnapToFieldEnabled,
		Formatted:          formatted,
		FormattedUnits:     all,
		FormattedPerimeter: perimeter,
		CreatedAt:          a.CreatedAt,
	}, nil
}

// MarshalExport renders the document as indented UTF-8 JSON.
func MarshalExport(doc *ExportDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, NewExportError("marshal json", err)
	}
	return append(data, '\n'), nil
}

// ParseExport decodes a JSON export document.
func ParseExport(data []byte) (*ExportDocument, error) {
	var doc ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "measure: parse export")
	}
	return &doc, nil
}

// Verify recomputes every formatted string from the raw numbers and reports
// the first mismatch.
func (d *ExportDocument) Verify(t *units.Table) error {
	for _, e := range d.Distances {
		got, err := t.FormatDistance(e.DistanceMeters)
		if err != nil {
			return eris.Wrapf(err, "measure: verify distance %s", e.ID)
		}
		if got != e.Formatted {
			return eris.Errorf("measure: distance %s formatted %q, recomputed %q", e.ID, e.Formatted, got)
		}
	}
	for _, e := range d.Areas {
		recomputed, err := buildAreaEntry(model.AreaMeasurement{
			ID:              e.ID,
			Area:            e.Area,
			PerimeterMeters: e.PerimeterMeters,
			PreferredUnit:   e.PreferredUnit,
		}, t)
		if err != nil {
			return eris.Wrapf(err, "measure: verify area %s", e.ID)
		}
		if recomputed.Formatted != e.Formatted {
			return eris.Errorf("measure: area %s formatted %q, recomputed %q", e.ID, e.Formatted, recomputed.Formatted)
		}
		for u, s := range recomputed.FormattedUnits {
			if e.FormattedUnits[u] != s {
				return eris.Errorf("measure: area %s %s formatted %q, recomputed %q", e.ID, u, e.FormattedUnits[u], s)
			}
		}
		if conv, err := t.ConvertArea(e.Area.SquareMeters); err != nil || conv != e.Area {
			return eris.Errorf("measure: area %s unit values do not match %v m²", e.ID, e.Area.SquareMeters)
		}
	}
	return nil
}

// ExportFilename returns "<prefix>_measurements_<YYYY-MM-DD>.json".
func ExportFilename(prefix string, t time.Time) string {
	return ExportBasename(prefix, t) + ".json"
}

// ExportBasename returns the export file name without extension.
func ExportBasename(prefix string, t time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultExportPrefix
	}
	return prefix + "_measurements_" + t.UTC().Format(time.DateOnly)
}
