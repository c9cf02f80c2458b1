package measure

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldmap-cli/internal/model"
)

var (
	// ErrInsufficientPoints is matched by every InsufficientPointsError.
	ErrInsufficientPoints = eris.New("measure: insufficient points")

	// ErrNoToolSelected is returned when starting a capture with the select tool.
	ErrNoToolSelected = eris.New("measure: no measurement tool selected")

	// ErrUnknownTool is returned for tools outside select|distance|area|perimeter.
	ErrUnknownTool = eris.New("measure: unknown tool")

	// ErrExport wraps serialization and write failures of an export.
	ErrExport = eris.New("measure: export failed")
)

// InsufficientPointsError reports a finished capture that did not collect
// enough points for its tool. No measurement is recorded.
type InsufficientPointsError struct {
	Tool     model.Tool
	Required int
	Got      int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("measure: %s needs at least %d points, got %d", e.Tool, e.Required, e.Got)
}

// Is lets errors.Is match ErrInsufficientPoints.
func (e *InsufficientPointsError) Is(target error) bool {
	return target == ErrInsufficientPoints
}

// ExportError wraps the cause of a failed export. It matches ErrExport.
type ExportError struct {
	Op  string
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("measure: export failed: %s: %v", e.Op, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrExport.
func (e *ExportError) Is(target error) bool {
	return target == ErrExport
}

// NewExportError wraps err as an export failure of operation op.
func NewExportError(op string, err error) error {
	return &ExportError{Op: op, Err: err}
}
