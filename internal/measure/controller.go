// Package measure implements the measurement capture lifecycle, the
// collection of finished measurements and their export.
package measure

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldmap-cli/internal/geometry"
	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/snap"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

// State is the capture lifecycle state.
type State int

const (
	// StateIdle means the select tool is active and nothing is captured.
	StateIdle State = iota
	// StateToolSelected means a measurement tool is chosen but not started.
	StateToolSelected
	// StateCapturing means points are being accumulated.
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateToolSelected:
		return "tool_selected"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// Settings are the user preferences applied to new measurements.
type Settings struct {
	PreferredUnit units.AreaUnit `json:"preferred_unit" yaml:"preferred_unit"`
	Snap          snap.Settings  `json:"snap" yaml:"snap"`
}

// DefaultSettings returns hectares with snapping disabled.
func DefaultSettings() Settings {
	return Settings{
		PreferredUnit: units.Hectare,
		Snap:          snap.DefaultSettings(),
	}
}

// FinishKind tells what a finished capture produced.
type FinishKind int

const (
	// FinishCancelled means the session was empty and closed without a record.
	FinishCancelled FinishKind = iota
	// FinishDistance means a DistanceMeasurement was recorded.
	FinishDistance
	// FinishArea means an AreaMeasurement was recorded.
	FinishArea
)

// FinishResult carries the measurement recorded by FinishMeasurement.
type FinishResult struct {
	Kind     FinishKind
	Distance *model.DistanceMeasurement
	Area     *model.AreaMeasurement
}

// Option configures a Controller.
type Option func(*Controller)

// WithCollection makes the controller record into c.
func WithCollection(c *Collection) Option {
	return func(ctl *Controller) { ctl.collection = c }
}

// WithTable sets the unit conversion table.
func WithTable(t *units.Table) Option {
	return func(ctl *Controller) { ctl.table = t }
}

// WithSettings sets the initial settings.
func WithSettings(s Settings) Option {
	return func(ctl *Controller) { ctl.settings = s }
}

// WithBoundaries sets the field boundaries used for snapping.
func WithBoundaries(b []model.FieldBoundary) Option {
	return func(ctl *Controller) { ctl.boundaries = b }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(ctl *Controller) { ctl.nowFunc = now }
}

// WithIDFunc overrides measurement id generation.
func WithIDFunc(fn func() string) Option {
	return func(ctl *Controller) { ctl.newID = fn }
}

// Controller owns one capture session and the measurement collection it
// feeds. All methods are serialized, so a finish or cancel can never race
// with a point being appended.
type Controller struct {
	mu sync.Mutex

	tool   model.Tool
	active bool
	points []model.GeoPoint

	collection *Collection
	table      *units.Table
	settings   Settings
	boundaries []model.FieldBoundary

	nowFunc func() time.Time
	newID   func() string
}

// NewController creates a controller in the idle state.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		tool:     model.ToolSelect,
		settings: DefaultSettings(),
		nowFunc:  time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.collection == nil {
		c.collection = NewCollection()
	}
	if c.table == nil {
		c.table = units.DefaultTable()
	}
	if !c.settings.PreferredUnit.Valid() {
		c.settings.PreferredUnit = units.Hectare
	}
	return c
}

// Collection returns the collection finished measurements are recorded into.
func (c *Controller) Collection() *Collection {
	return c.collection
}

// Table returns the unit conversion table.
func (c *Controller) Table() *units.Table {
	return c.table
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	switch {
	case c.active:
		return StateCapturing
	case c.tool == model.ToolSelect:
		return StateIdle
	default:
		return StateToolSelected
	}
}

// SetActiveTool switches tools. Leaving a running capture, either to select
// or to another tool, discards it; cancelled reports whether that happened.
func (c *Controller) SetActiveTool(tool model.Tool) (cancelled bool, err error) {
	parsed, err := model.ParseTool(string(tool))
	if err != nil {
		return false, eris.Wrapf(ErrUnknownTool, "measure: set tool %q", string(tool))
	}
	tool = parsed

	c.mu.Lock()
	defer c.mu.Unlock()

	if tool == c.tool {
		return false, nil
	}
	if c.active {
		cancelled = c.cancelLocked()
		zap.L().Debug("measure: capture cancelled by tool switch",
			zap.String("from", string(c.tool)),
			zap.String("to", string(tool)),
		)
	}
	c.tool = tool
	return cancelled, nil
}

// ActiveTool returns the selected tool.
func (c *Controller) ActiveTool() model.Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool
}

// StartMeasurement begins a capture. It is a no-op while already capturing.
func (c *Controller) StartMeasurement() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tool == model.ToolSelect {
		return ErrNoToolSelected
	}
	if c.active {
		return nil
	}
	c.points = nil
	c.active = true
	zap.L().Debug("measure: capture started", zap.String("tool", string(c.tool)))
	return nil
}

// OnPoint feeds a map click to the session. The point is snapped to the
// configured boundaries first when snapping is enabled. Points arriving
// outside a capture are dropped and accepted reports false.
func (c *Controller) OnPoint(p model.GeoPoint) (res snap.Result, accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.tool == model.ToolSelect {
		return snap.Result{Original: p, Snapped: p, Type: snap.TypeNone}, false
	}
	res = snap.Point(p, c.boundaries, c.settings.Snap)
	c.points = append(c.points, res.Snapped)
	return res, true
}

// UndoLastPoint removes the most recent point of a running capture.
func (c *Controller) UndoLastPoint() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || len(c.points) == 0 {
		return false
	}
	c.points = c.points[:len(c.points)-1]
	return true
}

// CancelMeasurement discards the running capture. It reports whether any
// points were discarded.
func (c *Controller) CancelMeasurement() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelLocked()
}

func (c *Controller) cancelLocked() bool {
	discarded := len(c.points) > 0
	c.points = nil
	c.active = false
	return discarded
}

// FinishMeasurement closes the running capture and records a measurement.
// An empty session behaves like a cancel. Too few points yield an
// *InsufficientPointsError and no record. The session is closed in every case.
func (c *Controller) FinishMeasurement() (FinishResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	points := c.points
	tool := c.tool
	wasActive := c.active
	c.cancelLocked()

	if !wasActive || len(points) == 0 {
		return FinishResult{Kind: FinishCancelled}, nil
	}

	switch tool {
	case model.ToolDistance:
		if len(points) < tool.MinPoints() {
			return FinishResult{}, &InsufficientPointsError{Tool: tool, Required: tool.MinPoints(), Got: len(points)}
		}
		m := model.DistanceMeasurement{
			ID:             c.newID(),
			Points:         points,
			DistanceMeters: geometry.DistanceAlongPath(points),
			CreatedAt:      c.nowFunc().UTC(),
		}
		c.collection.AddDistance(m)
		zap.L().Debug("measure: distance recorded",
			zap.String("id", m.ID),
			zap.Float64("distance_m", m.DistanceMeters),
		)
		return FinishResult{Kind: FinishDistance, Distance: &m}, nil

	case model.ToolArea, model.ToolPerimeter:
		if n := geometry.DistinctCount(points); n < tool.MinPoints() {
			return FinishResult{}, &InsufficientPointsError{Tool: tool, Required: tool.MinPoints(), Got: n}
		}
		area, err := c.table.ConvertArea(geometry.PolygonArea(points))
		if err != nil {
			return FinishResult{}, eris.Wrap(err, "measure: convert area")
		}
		m := model.AreaMeasurement{
			ID:                 c.newID(),
			Tool:               tool,
			Points:             geometry.CloseRing(points),
			Area:               area,
			PerimeterMeters:    geometry.PolygonPerimeter(points),
			PreferredUnit:      c.settings.PreferredUnit,
			SnapToFieldEnabled: c.settings.Snap.Enabled,
			CreatedAt:          c.nowFunc().UTC(),
		}
		c.collection.AddArea(m)
		zap.L().Debug("measure: area recorded",
			zap.String("id", m.ID),
			zap.String("tool", string(tool)),
			zap.Float64("area_m2", m.Area.SquareMeters),
		)
		return FinishResult{Kind: FinishArea, Area: &m}, nil
	}
	return FinishResult{}, eris.Wrapf(ErrUnknownTool, "measure: finish with tool %q", string(tool))
}

// Settings returns the current settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetPreferredUnit changes the unit new area measurements are labelled with.
func (c *Controller) SetPreferredUnit(u units.AreaUnit) error {
	if !u.Valid() {
		return eris.Wrapf(units.ErrInvalidInput, "measure: preferred unit %q", string(u))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.PreferredUnit = u
	return nil
}

// SetSnapSettings replaces the snap settings.
func (c *Controller) SetSnapSettings(s snap.Settings) error {
	if !snap.ValidTolerance(s.Tolerance) {
		return eris.Wrapf(units.ErrInvalidInput, "measure: snap tolerance %v", s.Tolerance)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Snap = s
	return nil
}

// SetBoundaries replaces the boundaries used for snapping.
func (c *Controller) SetBoundaries(b []model.FieldBoundary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundaries = slices.Clone(b)
}

// Boundaries returns the boundaries used for snapping.
func (c *Controller) Boundaries() []model.FieldBoundary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.boundaries)
}
