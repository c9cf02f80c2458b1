package measure

import (
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/fieldmap-cli/internal/geometry"
	"github.com/sells-group/fieldmap-cli/internal/model"
)

// SessionState is a snapshot of the capture session with live measurements
// of the points gathered so far.
type SessionState struct {
	State           string           `json:"state"`
	ActiveTool      model.Tool       `json:"active_tool"`
	IsActive        bool             `json:"is_active"`
	Points          []model.GeoPoint `json:"points"`
	DistanceMeters  float64          `json:"distance_m"`
	AreaM2          float64          `json:"area_m2"`
	PerimeterMeters float64          `json:"perimeter_m"`
	Distance        string           `json:"distance"`
	Area            string           `json:"area,omitempty"`
	Perimeter       string           `json:"perimeter,omitempty"`
}

// Session returns a snapshot of the current capture.
func (c *Controller) Session() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := SessionState{
		State:      c.stateLocked().String(),
		ActiveTool: c.tool,
		IsActive:   c.active,
		Points:     slices.Clone(c.points),
	}
	if s.Points == nil {
		s.Points = []model.GeoPoint{}
	}

	var err error
	s.DistanceMeters = geometry.DistanceAlongPath(c.points)
	if s.Distance, err = c.table.FormatDistance(s.DistanceMeters); err != nil {
		zap.L().Debug("measure: format live distance", zap.Error(err))
	}

	if c.tool == model.ToolArea || c.tool == model.ToolPerimeter {
		s.AreaM2 = geometry.PolygonArea(c.points)
		s.PerimeterMeters = geometry.PolygonPerimeter(c.points)
		if s.Area, err = c.table.FormatArea(s.AreaM2, c.settings.PreferredUnit); err != nil {
			zap.L().Debug("measure: format live area", zap.Error(err))
		}
		if s.Perimeter, err = c.table.FormatDistance(s.PerimeterMeters); err != nil {
			zap.L().Debug("measure: format live perimeter", zap.Error(err))
		}
	}
	return s
}
