package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/snap"
	"github.com/sells-group/fieldmap-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "fieldmap.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// workspace is a controller rehydrated from the store, with the settings
// and boundaries the config and previous runs describe.
type workspace struct {
	store store.Store
	ctrl  *measure.Controller
}

func openWorkspace(ctx context.Context, boundariesFile string) (*workspace, error) {
	table, err := cfg.Table()
	if err != nil {
		return nil, err
	}
	settings, err := cfg.MeasureSettings()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	saved, err := st.LoadSettings(ctx)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	if saved != nil {
		settings = *saved
	}

	coll := measure.NewCollection()
	if err := store.LoadInto(ctx, st, coll, table); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	if boundariesFile == "" {
		boundariesFile = cfg.Snap.BoundariesFile
	}
	boundaries, err := loadBoundaries(ctx, boundariesFile)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	ctrl := measure.NewController(
		measure.WithCollection(coll),
		measure.WithTable(table),
		measure.WithSettings(settings),
		measure.WithBoundaries(boundaries),
	)
	zap.L().Debug("workspace opened",
		zap.Int("measurements", coll.Len()),
		zap.Int("boundaries", len(boundaries)),
		zap.String("preferred_unit", string(settings.PreferredUnit)),
	)
	return &workspace{store: st, ctrl: ctrl}, nil
}

func (w *workspace) Close() error {
	return w.store.Close()
}

func loadBoundaries(ctx context.Context, path string) ([]model.FieldBoundary, error) {
	if path == "" {
		return nil, nil
	}
	return snap.NewFileProvider(path).Boundaries(ctx)
}
