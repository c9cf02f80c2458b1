package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS measurements (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	tool           TEXT NOT NULL,
	geom           BLOB NOT NULL,
	distance_m     REAL NOT NULL DEFAULT 0,
	area_m2        REAL NOT NULL DEFAULT 0,
	perimeter_m    REAL NOT NULL DEFAULT 0,
	preferred_unit TEXT NOT NULL DEFAULT '',
	snap_enabled   INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_measurements_kind ON measurements(kind);
`

const upsertMeasurement = `
INSERT INTO measurements (id, kind, tool, geom, distance_m, area_m2, perimeter_m, preferred_unit, snap_enabled, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	kind = excluded.kind,
	tool = excluded.tool,
	geom = excluded.geom,
	distance_m = excluded.distance_m,
	area_m2 = excluded.area_m2,
	perimeter_m = excluded.perimeter_m,
	preferred_unit = excluded.preferred_unit,
	snap_enabled = excluded.snap_enabled,
	created_at = excluded.created_at`

const settingsKey = "measure"

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveDistance(ctx context.Context, m model.DistanceMeasurement) error {
	geomBytes, err := encodeLineString(m.Points)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsertMeasurement,
		m.ID, string(model.KindDistance), string(model.ToolDistance), geomBytes,
		m.DistanceMeters, 0.0, 0.0, "", false, m.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save distance %s", m.ID)
}

func (s *SQLiteStore) SaveArea(ctx context.Context, m model.AreaMeasurement) error {
	geomBytes, err := encodePolygon(m.Points)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsertMeasurement,
		m.ID, string(model.KindArea), string(m.Tool), geomBytes,
		0.0, m.Area.SquareMeters, m.PerimeterMeters, string(m.PreferredUnit), m.SnapToFieldEnabled, m.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save area %s", m.ID)
}

func (s *SQLiteStore) ListDistances(ctx context.Context) ([]model.DistanceMeasurement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, geom, distance_m, created_at FROM measurements WHERE kind = ? ORDER BY rowid`,
		string(model.KindDistance),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list distances")
	}
	defer rows.Close()

	var out []model.DistanceMeasurement
	for rows.Next() {
		var (
			m         model.DistanceMeasurement
			geomBytes []byte
		)
		if err := rows.Scan(&m.ID, &geomBytes, &m.DistanceMeters, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan distance")
		}
		if m.Points, err = decodePoints(geomBytes); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list distances iterate")
}

// ListAreas returns area measurements with unit values recomputed from the
// stored square meters using table.
func (s *SQLiteStore) ListAreas(ctx context.Context, table *units.Table) ([]model.AreaMeasurement, error) {
	if table == nil {
		table = units.DefaultTable()
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tool, geom, area_m2, perimeter_m, preferred_unit, snap_enabled, created_at
		 FROM measurements WHERE kind = ? ORDER BY rowid`,
		string(model.KindArea),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list areas")
	}
	defer rows.Close()

	var out []model.AreaMeasurement
	for rows.Next() {
		var (
			m         model.AreaMeasurement
			tool      string
			unit      string
			areaM2    float64
			geomBytes []byte
		)
		if err := rows.Scan(&m.ID, &tool, &geomBytes, &areaM2, &m.PerimeterMeters, &unit, &m.SnapToFieldEnabled, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan area")
		}
		if m.Points, err = decodePoints(geomBytes); err != nil {
			return nil, err
		}
		if m.Area, err = table.ConvertArea(areaM2); err != nil {
			return nil, eris.Wrapf(err, "sqlite: area %s", m.ID)
		}
		m.Tool = model.Tool(tool)
		m.PreferredUnit = units.AreaUnit(unit)
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list areas iterate")
}

// Delete removes a measurement. A missing id reports false without error.
func (s *SQLiteStore) Delete(ctx context.Context, kind model.Kind, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM measurements WHERE kind = ? AND id = ?`, string(kind), id)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete %s %s", kind, id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

// Clear removes every measurement and returns how many were deleted.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM measurements`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear measurements")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, st measure.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal settings")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		settingsKey, string(data), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save settings")
}

// LoadSettings returns the saved settings, or nil when none were saved.
func (s *SQLiteStore) LoadSettings(ctx context.Context) (*measure.Settings, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load settings")
	}
	var st measure.Settings
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal settings")
	}
	return &st, nil
}
