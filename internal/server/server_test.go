package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldmap-cli/internal/geometry"
	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/store"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

var (
	fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	origin   = model.GeoPoint{Lng: -47.06, Lat: -22.9}
)

func newTestController() *measure.Controller {
	n := 0
	return measure.NewController(
		measure.WithClock(func() time.Time { return fixedNow }),
		measure.WithIDFunc(func() string {
			n++
			return fmt.Sprintf("m-%d", n)
		}),
	)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestServer(t *testing.T, st store.Store) (*Server, *measure.Controller) {
	t.Helper()
	ctrl := newTestController()
	return New(ctrl, st, Options{Now: func() time.Time { return fixedNow }}), ctrl
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func point(p model.GeoPoint) map[string]float64 {
	return map[string]float64{"lng": p.Lng, "lat": p.Lat}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode(t, rr)["status"])
}

func TestSessionLifecycle_Distance(t *testing.T) {
	st := newTestStore(t)
	srv, ctrl := newTestServer(t, st)

	rr := do(t, srv, http.MethodPut, "/session/tool", map[string]string{"tool": "distance"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode(t, rr)["cancelled"])

	rr = do(t, srv, http.MethodPost, "/session/start", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "capturing", decode(t, rr)["state"])

	far := geometry.Destination(origin, 90, 1500)
	for _, p := range []model.GeoPoint{origin, far} {
		rr = do(t, srv, http.MethodPost, "/session/points", point(p))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, true, decode(t, rr)["accepted"])
	}

	rr = do(t, srv, http.MethodPost, "/session/finish", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "distance", body["kind"])
	assert.Equal(t, "1.50 km", body["formatted"])
	assert.Equal(t, true, body["persisted"])

	assert.Equal(t, 1, ctrl.Collection().Len())
	stored, err := st.ListDistances(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "m-1", stored[0].ID)
}

func TestFinish_InsufficientPoints(t *testing.T) {
	srv, ctrl := newTestServer(t, nil)

	do(t, srv, http.MethodPut, "/session/tool", map[string]string{"tool": "distance"})
	do(t, srv, http.MethodPost, "/session/start", nil)
	do(t, srv, http.MethodPost, "/session/points", point(origin))

	rr := do(t, srv, http.MethodPost, "/session/finish", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := decode(t, rr)
	assert.EqualValues(t, 2, body["required"])
	assert.EqualValues(t, 1, body["got"])
	assert.Contains(t, body["error"], "at least 2 points")
	assert.Equal(t, 0, ctrl.Collection().Len())
	assert.Equal(t, measure.StateToolSelected, ctrl.State())
}

func TestFinish_EmptyIsCancel(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	do(t, srv, http.MethodPut, "/session/tool", map[string]string{"tool": "area"})
	do(t, srv, http.MethodPost, "/session/start", nil)

	rr := do(t, srv, http.MethodPost, "/session/finish", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "cancelled", decode(t, rr)["kind"])
}

func TestStart_NoTool(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/session/start", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestSetTool_Invalid(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPut, "/session/tool", map[string]string{"tool": "lasso"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodPut, "/session/tool", map[string]string{"bogus": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetTool_CancelsCapture(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	do(t, srv, http.MethodPut, "/session/tool", map[string]string{"tool": "area"})
	do(t, srv, http.MethodPost, "/session/start", nil)
	do(t, srv, http.MethodPost, "/session/points", point(origin))

	rr := do(t, srv, http.MethodPut, "/session/tool", map[string]string{"tool": "select"})
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["cancelled"])
	assert.Equal(t, "idle", body["session"].(map[string]any)["state"])
}

func TestPoint_Validation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/session/points", map[string]float64{"lng": 200, "lat": 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodPost, "/session/points", map[string]float64{"lng": 1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Outside a capture the point is ignored.
	rr = do(t, srv, http.MethodPost, "/session/points", point(origin))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode(t, rr)["accepted"])
}

func TestUndoAndCancel(t *testing.T) {
	srv, ctrl := newTestServer(t, nil)

	do(t, srv, http.MethodPut, "/session/tool", map[string]string{"tool": "perimeter"})
	do(t, srv, http.MethodPost, "/session/start", nil)
	do(t, srv, http.MethodPost, "/session/points", point(origin))
	do(t, srv, http.MethodPost, "/session/points", point(geometry.Destination(origin, 0, 50)))

	rr := do(t, srv, http.MethodPost, "/session/undo", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["undone"])
	assert.Len(t, ctrl.Session().Points, 1)

	rr = do(t, srv, http.MethodPost, "/session/cancel", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["discarded"])
	assert.Empty(t, ctrl.Session().Points)
}

func recordArea(t *testing.T, h http.Handler) {
	t.Helper()
	east := geometry.Destination(origin, 90, 220)
	do(t, h, http.MethodPut, "/session/tool", map[string]string{"tool": "area"})
	do(t, h, http.MethodPost, "/session/start", nil)
	for _, p := range []model.GeoPoint{origin, east, geometry.Destination(east, 0, 110), geometry.Destination(origin, 0, 110)} {
		do(t, h, http.MethodPost, "/session/points", point(p))
	}
	rr := do(t, h, http.MethodPost, "/session/finish", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestMeasurements_ListDeleteClear(t *testing.T) {
	st := newTestStore(t)
	srv, ctrl := newTestServer(t, st)

	rr := do(t, srv, http.MethodPut, "/settings", map[string]any{"preferred_unit": "alq"})
	require.Equal(t, http.StatusOK, rr.Code)
	recordArea(t, srv)
	recordArea(t, srv)

	rr = do(t, srv, http.MethodGet, "/measurements", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list measurementsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Areas, 2)
	assert.Equal(t, "1.00 alq", list.Areas[0].Formatted)
	assert.Equal(t, 2, list.Summary.AreaCount)

	rr = do(t, srv, http.MethodDelete, "/measurements/area/m-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["removed"])
	_, ok := ctrl.Collection().Area("m-1")
	assert.False(t, ok)

	// deleting again is a no-op
	rr = do(t, srv, http.MethodDelete, "/measurements/area/m-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode(t, rr)["removed"])
	assert.Equal(t, 1, ctrl.Collection().Len())

	rr = do(t, srv, http.MethodDelete, "/measurements/polygon/m-2", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/measurements", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode(t, rr)["removed"])
	assert.Equal(t, 0, ctrl.Collection().Len())

	areas, err := st.ListAreas(context.Background(), units.DefaultTable())
	require.NoError(t, err)
	assert.Empty(t, areas)
}

func TestSettings(t *testing.T) {
	st := newTestStore(t)
	srv, ctrl := newTestServer(t, st)

	rr := do(t, srv, http.MethodGet, "/settings", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hectare", decode(t, rr)["preferred_unit"])

	rr = do(t, srv, http.MethodPut, "/settings", map[string]any{
		"preferred_unit": "alqueire_mineiro",
		"snap":           map[string]any{"enabled": true, "tolerance_m": 15, "snap_to_vertices": true, "snap_to_edges": false},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	s := ctrl.Settings()
	assert.Equal(t, units.AlqueireMineiro, s.PreferredUnit)
	assert.True(t, s.Snap.Enabled)
	assert.InDelta(t, 15.0, s.Snap.Tolerance, 1e-9)
	assert.False(t, s.Snap.SnapToEdges)

	saved, err := st.LoadSettings(context.Background())
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, units.AlqueireMineiro, saved.PreferredUnit)

	rr = do(t, srv, http.MethodPut, "/settings", map[string]any{"preferred_unit": "acre"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodPut, "/settings", map[string]any{
		"preferred_unit": "hectare",
		"snap":           map[string]any{"tolerance_m": -1},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, units.AlqueireMineiro, ctrl.Settings().PreferredUnit)
}

func TestExport_JSON(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	recordArea(t, srv)

	rr := do(t, srv, http.MethodGet, "/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="fieldmap_measurements_2026-03-14.json"`, rr.Header().Get("Content-Disposition"))

	doc, err := measure.ParseExport(rr.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, doc.Areas, 1)
	assert.NoError(t, doc.Verify(units.DefaultTable()))
}

func TestExport_Formats(t *testing.T) {
	srv := New(newTestController(), nil, Options{ExportPrefix: "farm", Now: func() time.Time { return fixedNow }})

	rr := do(t, srv, http.MethodGet, "/export?format=geojson", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "farm_measurements_2026-03-14.geojson")

	rr = do(t, srv, http.MethodGet, "/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "exported_at:")

	rr = do(t, srv, http.MethodGet, "/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotZero(t, rr.Body.Len())

	rr = do(t, srv, http.MethodGet, "/export?format=shp", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/export?format=csv", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestConvert(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rr := do(t, srv, http.MethodGet, "/convert?m2=24200&unit=alq", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, "alqueire_paulista", body["unit"])
	assert.InDelta(t, 1.0, body["value"], 1e-9)
	assert.Equal(t, "1.00 alq", body["label"])
	assert.Equal(t, "2.42 ha", body["formatted"].(map[string]any)["hectare"])

	rr = do(t, srv, http.MethodGet, "/convert?m2=-5", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/convert?m2=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/convert?m2=100&unit=acre", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimit(t *testing.T) {
	srv := New(newTestController(), nil, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/health", nil).Code)
	rr := do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestCORS(t *testing.T) {
	srv := New(newTestController(), nil, Options{CORSOrigins: []string{"https://maps.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	assert.Equal(t, "https://maps.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
