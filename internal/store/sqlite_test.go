package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/snap"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var created = time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)

func sampleDistance(id string) model.DistanceMeasurement {
	return model.DistanceMeasurement{
		ID:             id,
		Points:         []model.GeoPoint{{Lng: -47.06, Lat: -22.9}, {Lng: -47.05, Lat: -22.9}},
		DistanceMeters: 1025.5,
		CreatedAt:      created,
	}
}

func sampleArea(t *testing.T, id string) model.AreaMeasurement {
	t.Helper()
	area, err := units.ConvertArea(24200)
	require.NoError(t, err)
	return model.AreaMeasurement{
		ID:   id,
		Tool: model.ToolPerimeter,
		Points: []model.GeoPoint{
			{Lng: -47.06, Lat: -22.9}, {Lng: -47.05, Lat: -22.9}, {Lng: -47.05, Lat: -22.89}, {Lng: -47.06, Lat: -22.9},
		},
		Area:               area,
		PerimeterMeters:    640,
		PreferredUnit:      units.AlqueirePaulista,
		SnapToFieldEnabled: true,
		CreatedAt:          created,
	}
}

func TestSQLite_SaveAndListDistances(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveDistance(ctx, sampleDistance("d2")))
	require.NoError(t, st.SaveDistance(ctx, sampleDistance("d1")))

	got, err := st.ListDistances(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d2", got[0].ID, "insertion order must be preserved")
	assert.Equal(t, sampleDistance("d2").Points, got[0].Points)
	assert.Equal(t, 1025.5, got[0].DistanceMeters)
	assert.True(t, created.Equal(got[0].CreatedAt))
}

func TestSQLite_SaveAndListAreas(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	want := sampleArea(t, "a1")

	require.NoError(t, st.SaveArea(ctx, want))

	got, err := st.ListAreas(ctx, units.DefaultTable())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want.Points, got[0].Points)
	assert.Equal(t, want.Area, got[0].Area)
	assert.Equal(t, model.ToolPerimeter, got[0].Tool)
	assert.Equal(t, units.AlqueirePaulista, got[0].PreferredUnit)
	assert.True(t, got[0].SnapToFieldEnabled)
	assert.Equal(t, 640.0, got[0].PerimeterMeters)
}

func TestSQLite_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	d := sampleDistance("d1")
	require.NoError(t, st.SaveDistance(ctx, d))
	d.DistanceMeters = 5
	require.NoError(t, st.SaveDistance(ctx, d))

	got, err := st.ListDistances(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5.0, got[0].DistanceMeters)
}

func TestSQLite_DeleteAndClear(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveDistance(ctx, sampleDistance("d1")))
	require.NoError(t, st.SaveArea(ctx, sampleArea(t, "a1")))
	require.NoError(t, st.SaveArea(ctx, sampleArea(t, "a2")))

	ok, err := st.Delete(ctx, model.KindDistance, "a1")
	require.NoError(t, err)
	assert.False(t, ok, "kind must match")

	ok, err = st.Delete(ctx, model.KindArea, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = st.Delete(ctx, model.KindArea, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := st.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	areas, err := st.ListAreas(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, areas)
}

func TestSQLite_Settings(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	got, err := st.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := measure.Settings{
		PreferredUnit: units.AlqueireMineiro,
		Snap:          snap.Settings{Enabled: true, Tolerance: 15, SnapToVertices: true},
	}
	require.NoError(t, st.SaveSettings(ctx, want))
	require.NoError(t, st.SaveSettings(ctx, want))

	got, err = st.LoadSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestLoadInto(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := measure.NewController(measure.WithIDFunc(func() string { return "fresh" }))
	require.NoError(t, func() error { _, err := c.SetActiveTool(model.ToolDistance); return err }())
	require.NoError(t, c.StartMeasurement())
	for _, p := range sampleDistance("x").Points {
		c.OnPoint(p)
	}
	res, err := c.FinishMeasurement()
	require.NoError(t, err)
	require.NoError(t, SaveResult(ctx, st, res))
	require.NoError(t, SaveResult(ctx, st, measure.FinishResult{Kind: measure.FinishCancelled}))
	require.NoError(t, st.SaveArea(ctx, sampleArea(t, "a1")))

	col := measure.NewCollection()
	require.NoError(t, LoadInto(ctx, st, col, units.DefaultTable()))
	assert.Equal(t, 2, col.Len())
	d, ok := col.Distance("fresh")
	require.True(t, ok)
	assert.Equal(t, res.Distance.DistanceMeters, d.DistanceMeters)
}

func TestEncodeDecodeGeometry(t *testing.T) {
	ring := sampleArea(t, "a").Points
	data, err := encodePolygon(ring)
	require.NoError(t, err)
	got, err := decodePoints(data)
	require.NoError(t, err)
	assert.Equal(t, ring, got)

	data, err = encodeLineString(ring[:2])
	require.NoError(t, err)
	got, err = decodePoints(data)
	require.NoError(t, err)
	assert.Equal(t, ring[:2], got)

	_, err = decodePoints([]byte{0x01, 0x02})
	assert.Error(t, err)
}
