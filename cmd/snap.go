package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/snap"
)

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Snap a point to the nearest field boundary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, _ := cmd.Flags().GetString("point")
		p, err := model.ParseGeoPoint(raw)
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("boundaries")
		if path == "" {
			path = cfg.Snap.BoundariesFile
		}
		if path == "" {
			return eris.New("snap: --boundaries or snap.boundaries_file is required")
		}
		tolerance, _ := cmd.Flags().GetFloat64("tolerance")
		if !cmd.Flags().Changed("tolerance") {
			tolerance = cfg.Snap.ToleranceM
		}

		settings := snap.Settings{
			Enabled:        true,
			Tolerance:      tolerance,
			SnapToVertices: cfg.Snap.SnapToVertices,
			SnapToEdges:    cfg.Snap.SnapToEdges,
		}
		return runSnap(cmd.Context(), os.Stdout, snap.NewFileProvider(path), p, settings)
	},
}

func runSnap(ctx context.Context, out io.Writer, provider snap.BoundaryProvider, p model.GeoPoint, settings snap.Settings) error {
	boundaries, err := provider.Boundaries(ctx)
	if err != nil {
		return err
	}
	res := snap.Point(p, boundaries, settings)
	if !res.WasSnapped {
		_, _ = fmt.Fprintf(out, "%s (no boundary within %.2f m)\n", res.Original, settings.Tolerance)
		return nil
	}
	_, _ = fmt.Fprintf(out, "%s -> %s (%s of %s, %.2f m)\n", res.Original, res.Snapped, res.Type, res.BoundaryID, res.DistanceMeters)
	return nil
}

func init() {
	snapCmd.Flags().String("point", "", "point as lng,lat")
	snapCmd.Flags().String("boundaries", "", "GeoJSON or shapefile of field boundaries (default snap.boundaries_file)")
	snapCmd.Flags().Float64("tolerance", 0, "tolerance in meters (default snap.tolerance_m)")
	_ = snapCmd.MarkFlagRequired("point")
	rootCmd.AddCommand(snapCmd)
}
