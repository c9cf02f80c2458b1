// Package store persists finished measurements and user settings so a
// collection survives between CLI invocations and server restarts.
package store

import (
	"context"

	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/units"
)

// Store defines the persistence interface for measurements.
type Store interface {
	// Measurements
	SaveDistance(ctx context.Context, m model.DistanceMeasurement) error
	SaveArea(ctx context.Context, m model.AreaMeasurement) error
	ListDistances(ctx context.Context) ([]model.DistanceMeasurement, error)
	ListAreas(ctx context.Context, table *units.Table) ([]model.AreaMeasurement, error)
	Delete(ctx context.Context, kind model.Kind, id string) (bool, error)
	Clear(ctx context.Context) (int, error)

	// Settings
	SaveSettings(ctx context.Context, s measure.Settings) error
	LoadSettings(ctx context.Context) (*measure.Settings, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// SaveResult persists whatever measurement a finished capture produced.
func SaveResult(ctx context.Context, st Store, res measure.FinishResult) error {
	switch res.Kind {
	case measure.FinishDistance:
		return st.SaveDistance(ctx, *res.Distance)
	case measure.FinishArea:
		return st.SaveArea(ctx, *res.Area)
	}
	return nil
}

// LoadInto rehydrates c with every stored measurement in insertion order.
func LoadInto(ctx context.Context, st Store, c *measure.Collection, table *units.Table) error {
	distances, err := st.ListDistances(ctx)
	if err != nil {
		return err
	}
	areas, err := st.ListAreas(ctx, table)
	if err != nil {
		return err
	}
	for _, d := range distances {
		c.AddDistance(d)
	}
	for _, a := range areas {
		c.AddArea(a)
	}
	return nil
}
