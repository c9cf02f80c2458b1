package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/fieldmap-cli/internal/export"
	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/snap"
	"github.com/sells-group/fieldmap-cli/internal/store"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

type errorResponse struct {
	Error    string `json:"error"`
	Required int    `json:"required,omitempty"`
	Got      *int   `json:"got,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Session())
}

type setToolRequest struct {
	Tool string `json:"tool"`
}

type setToolResponse struct {
	Cancelled bool                 `json:"cancelled"`
	Session   measure.SessionState `json:"session"`
}

func (s *Server) handleSetTool(w http.ResponseWriter, r *http.Request) {
	var req setToolRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tool, err := model.ParseTool(req.Tool)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cancelled, err := s.ctrl.SetActiveTool(tool)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, setToolResponse{Cancelled: cancelled, Session: s.ctrl.Session()})
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.StartMeasurement(); err != nil {
		if errors.Is(err, measure.ErrNoToolSelected) {
			writeError(w, http.StatusConflict, "select a measurement tool first")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Session())
}

type pointRequest struct {
	Lng *float64 `json:"lng"`
	Lat *float64 `json:"lat"`
}

type pointResponse struct {
	Accepted bool                 `json:"accepted"`
	Snap     snap.Result          `json:"snap"`
	Session  measure.SessionState `json:"session"`
}

func (s *Server) handlePoint(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := decodeBody(r, &req); err != nil || req.Lng == nil || req.Lat == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"lng\":..,\"lat\":..}")
		return
	}
	p := model.GeoPoint{Lng: *req.Lng, Lat: *req.Lat}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, accepted := s.ctrl.OnPoint(p)
	writeJSON(w, http.StatusOK, pointResponse{Accepted: accepted, Snap: res, Session: s.ctrl.Session()})
}

func (s *Server) handleUndo(w http.ResponseWriter, _ *http.Request) {
	undone := s.ctrl.UndoLastPoint()
	writeJSON(w, http.StatusOK, map[string]any{"undone": undone, "session": s.ctrl.Session()})
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request) {
	discarded := s.ctrl.CancelMeasurement()
	writeJSON(w, http.StatusOK, map[string]any{"discarded": discarded, "session": s.ctrl.Session()})
}

type finishResponse struct {
	Kind      string                     `json:"kind"`
	Distance  *model.DistanceMeasurement `json:"distance,omitempty"`
	Area      *model.AreaMeasurement     `json:"area,omitempty"`
	Formatted string                     `json:"formatted,omitempty"`
	Persisted bool                       `json:"persisted"`
	Warning   string                     `json:"warning,omitempty"`
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctrl.FinishMeasurement()
	if err != nil {
		var ipe *measure.InsufficientPointsError
		if errors.As(err, &ipe) {
			got := ipe.Got
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:    ipe.Error(),
				Required: ipe.Required,
				Got:      &got,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := finishResponse{Distance: res.Distance, Area: res.Area}
	t := s.ctrl.Table()
	switch res.Kind {
	case measure.FinishCancelled:
		out.Kind = "cancelled"
		writeJSON(w, http.StatusOK, out)
		return
	case measure.FinishDistance:
		out.Kind = string(model.KindDistance)
		out.Formatted, err = t.FormatDistance(res.Distance.DistanceMeters)
	case measure.FinishArea:
		out.Kind = string(model.KindArea)
		out.Formatted, err = t.FormatArea(res.Area.Area.SquareMeters, res.Area.PreferredUnit)
	}
	if err != nil {
		zap.L().Debug("server: format finished measurement", zap.Error(err))
	}

	if s.store != nil {
		if err := store.SaveResult(r.Context(), s.store, res); err != nil {
			zap.L().Warn("server: persist measurement", zap.Error(err))
			out.Warning = "measurement recorded in memory but not persisted"
		} else {
			out.Persisted = true
		}
	}
	writeJSON(w, http.StatusCreated, out)
}

type measurementsResponse struct {
	Summary   measure.ExportSummary   `json:"summary"`
	Distances []measure.DistanceEntry `json:"distances"`
	Areas     []measure.AreaEntry     `json:"areas"`
}

func (s *Server) buildExport() (*measure.ExportDocument, error) {
	return measure.BuildExport(s.ctrl.Collection(), s.ctrl.Settings(), s.ctrl.Table(), s.opts.Now())
}

func (s *Server) handleListMeasurements(w http.ResponseWriter, _ *http.Request) {
	doc, err := s.buildExport()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, measurementsResponse{Summary: doc.Summary, Distances: doc.Distances, Areas: doc.Areas})
}

func (s *Server) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	if !s.ctrl.Collection().Remove(kind, id) {
		writeJSON(w, http.StatusOK, map[string]bool{"removed": false})
		return
	}
	if s.store != nil {
		if _, err := s.store.Delete(r.Context(), kind, id); err != nil {
			zap.L().Warn("server: delete persisted measurement", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "measurement removed in memory but not from storage")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

func (s *Server) handleClearMeasurements(w http.ResponseWriter, r *http.Request) {
	removed := s.ctrl.Collection().Len()
	s.ctrl.Collection().Clear()
	if s.store != nil {
		if _, err := s.store.Clear(r.Context()); err != nil {
			zap.L().Warn("server: clear persisted measurements", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "collection cleared in memory but not in storage")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Settings())
}

type settingsRequest struct {
	PreferredUnit *string        `json:"preferred_unit"`
	Snap          *snap.Settings `json:"snap"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Validate everything before applying anything.
	var unit units.AreaUnit
	if req.PreferredUnit != nil {
		u, err := units.ParseUnit(*req.PreferredUnit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		unit = u
	}
	if req.Snap != nil && !snap.ValidTolerance(req.Snap.Tolerance) {
		writeError(w, http.StatusBadRequest, "snap tolerance_m must be a finite number >= 0")
		return
	}

	if req.PreferredUnit != nil {
		if err := s.ctrl.SetPreferredUnit(unit); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Snap != nil {
		if err := s.ctrl.SetSnapSettings(*req.Snap); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	settings := s.ctrl.Settings()
	if s.store != nil {
		if err := s.store.SaveSettings(r.Context(), settings); err != nil {
			zap.L().Warn("server: persist settings", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, settings)
}

var exportContentTypes = map[export.Format]string{
	export.FormatJSON:    "application/json",
	export.FormatYAML:    "application/yaml",
	export.FormatGeoJSON: "application/geo+json",
	export.FormatXLSX:    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := export.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := export.ParseFormat(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}
	ct, ok := exportContentTypes[format]
	if !ok {
		writeError(w, http.StatusBadRequest, "format "+string(format)+" is only available from the CLI")
		return
	}

	doc, err := s.buildExport()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := measure.ExportBasename(s.opts.ExportPrefix, doc.ExportedAt) + format.Extension()
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)

	switch format {
	case export.FormatYAML:
		err = export.WriteYAML(w, doc)
	case export.FormatGeoJSON:
		err = export.WriteGeoJSON(w, doc)
	case export.FormatXLSX:
		err = export.WriteXLSX(w, doc)
	default:
		err = export.WriteJSON(w, doc)
	}
	if err != nil {
		zap.L().Error("server: write export", zap.String("format", string(format)), zap.Error(err))
	}
}

type convertResponse struct {
	SquareMeters float64                   `json:"m2"`
	Values       units.AreaValue           `json:"values"`
	Formatted    map[units.AreaUnit]string `json:"formatted"`
	Unit         units.AreaUnit            `json:"unit,omitempty"`
	Value        *float64                  `json:"value,omitempty"`
	Label        string                    `json:"label,omitempty"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m2, err := strconv.ParseFloat(q.Get("m2"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "m2 must be a number")
		return
	}
	t := s.ctrl.Table()
	values, err := t.ConvertArea(m2)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := convertResponse{
		SquareMeters: m2,
		Values:       values,
		Formatted:    make(map[units.AreaUnit]string, len(units.AllUnits)),
	}
	for _, u := range units.AllUnits {
		label, err := t.FormatArea(m2, u)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		out.Formatted[u] = label
	}
	if raw := q.Get("unit"); raw != "" {
		u, err := units.ParseUnit(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		v := values.In(u)
		out.Unit = u
		out.Value = &v
		out.Label = out.Formatted[u]
	}
	writeJSON(w, http.StatusOK, out)
}
