package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldmap-cli/internal/units"
)

// GeoPoint is a WGS84 position in decimal degrees.
type GeoPoint struct {
	Lng float64 `json:"lng" yaml:"lng"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// String renders the point as "lng,lat".
func (p GeoPoint) String() string {
	return strconv.FormatFloat(p.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

// ParseGeoPoint parses a "lng,lat" pair.
func ParseGeoPoint(s string) (GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return GeoPoint{}, eris.Errorf("model: point %q must be lng,lat", s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return GeoPoint{}, eris.Wrapf(err, "model: parse longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return GeoPoint{}, eris.Wrapf(err, "model: parse latitude %q", parts[1])
	}
	p := GeoPoint{Lng: lng, Lat: lat}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// Validate reports whether p lies within the WGS84 coordinate range.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lng) || math.IsNaN(p.Lat) || p.Lng < -180 || p.Lng > 180 || p.Lat < -90 || p.Lat > 90 {
		return eris.Errorf("model: point %s out of WGS84 range", p)
	}
	return nil
}

// Tool is the active measurement tool.
type Tool string

// Measurement tools.
const (
	ToolSelect    Tool = "select"
	ToolDistance  Tool = "distance"
	ToolArea      Tool = "area"
	ToolPerimeter Tool = "perimeter"
)

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, error) {
	switch t := Tool(strings.ToLower(strings.TrimSpace(s))); t {
	case ToolSelect, ToolDistance, ToolArea, ToolPerimeter:
		return t, nil
	}
	return "", eris.Errorf("model: unknown tool %q", s)
}

// MinPoints returns the number of points a finished measurement needs.
func (t Tool) MinPoints() int {
	switch t {
	case ToolDistance:
		return 2
	case ToolArea, ToolPerimeter:
		return 3
	}
	return 0
}

// Kind returns the collection a measurement taken with t belongs to.
func (t Tool) Kind() Kind {
	if t == ToolDistance {
		return KindDistance
	}
	return KindArea
}

// Kind identifies one of the two measurement collections.
type Kind string

// Measurement kinds.
const (
	KindDistance Kind = "distance"
	KindArea     Kind = "area"
)

// ParseKind validates a measurement kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDistance, KindArea:
		return k, nil
	}
	return "", eris.Errorf("model: unknown measurement kind %q", s)
}

// DistanceMeasurement is a finished polyline measurement.
type DistanceMeasurement struct {
	ID             string     `json:"id"`
	Points         []GeoPoint `json:"points"`
	DistanceMeters float64    `json:"distance_m"`
	CreatedAt      time.Time  `json:"created_at"`
}

// AreaMeasurement is a finished polygon measurement. Points hold the closed
// ring (first point repeated last).
type AreaMeasurement struct {
	ID                 string          `json:"id"`
	Tool               Tool            `json:"tool"`
	Points             []GeoPoint      `json:"points"`
	Area               units.AreaValue `json:"area"`
	PerimeterMeters    float64         `json:"perimeter_m"`
	PreferredUnit      units.AreaUnit  `json:"preferred_unit"`
	SnapToFieldEnabled bool            `json:"snap_to_field_enabled"`
	CreatedAt          time.Time       `json:"created_at"`
}

// FieldBoundary is a detected field outline. Boundaries come from an
// external detection process and carry a confidence in [0,1].
type FieldBoundary struct {
	ID         string     `json:"id"`
	Ring       []GeoPoint `json:"ring"`
	Confidence float64    `json:"confidence"`
	Source     string     `json:"source"`
}
