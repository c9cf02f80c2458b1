package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fieldmap-cli/internal/measure"
	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/store"
)

var measureCmd = &cobra.Command{
	Use:       "measure <distance|area|perimeter>",
	Short:     "Record a measurement from a sequence of points",
	Long:      "Captures the given lng,lat points in order with the chosen tool, records the measurement and persists it.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(model.ToolDistance), string(model.ToolArea), string(model.ToolPerimeter)},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tool, err := model.ParseTool(args[0])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetStringArray("point")
		points := make([]model.GeoPoint, 0, len(raw))
		for _, r := range raw {
			p, err := model.ParseGeoPoint(r)
			if err != nil {
				return err
			}
			points = append(points, p)
		}

		boundaries, _ := cmd.Flags().GetString("boundaries")
		ws, err := openWorkspace(ctx, boundaries)
		if err != nil {
			return err
		}
		defer ws.Close() //nolint:errcheck

		if cmd.Flags().Changed("snap") {
			enabled, _ := cmd.Flags().GetBool("snap")
			s := ws.ctrl.Settings().Snap
			s.Enabled = enabled
			if err := ws.ctrl.SetSnapSettings(s); err != nil {
				return err
			}
		}

		return runMeasure(ctx, os.Stdout, ws, tool, points)
	},
}

func runMeasure(ctx context.Context, out io.Writer, ws *workspace, tool model.Tool, points []model.GeoPoint) error {
	if tool == model.ToolSelect {
		return eris.Wrap(measure.ErrNoToolSelected, "measure")
	}
	if _, err := ws.ctrl.SetActiveTool(tool); err != nil {
		return err
	}
	if err := ws.ctrl.StartMeasurement(); err != nil {
		return err
	}
	for _, p := range points {
		res, _ := ws.ctrl.OnPoint(p)
		if res.WasSnapped {
			_, _ = fmt.Fprintf(out, "snapped %s -> %s (%s, %.2f m)\n", res.Original, res.Snapped, res.Type, res.DistanceMeters)
		}
	}

	res, err := ws.ctrl.FinishMeasurement()
	if err != nil {
		return err
	}
	if err := store.SaveResult(ctx, ws.store, res); err != nil {
		zap.L().Warn("measure: persist failed", zap.Error(err))
		return eris.Wrap(err, "measure: persist")
	}

	table := ws.ctrl.Table()
	switch res.Kind {
	case measure.FinishDistance:
		s, err := table.FormatDistance(res.Distance.DistanceMeters)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "distance %s: %s\n", res.Distance.ID, s)
	case measure.FinishArea:
		a := res.Area
		area, err := table.FormatArea(a.Area.SquareMeters, a.PreferredUnit)
		if err != nil {
			return err
		}
		perim, err := table.FormatDistance(a.PerimeterMeters)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "%s %s: %s, perimeter %s\n", a.Tool, a.ID, area, perim)
	default:
		_, _ = fmt.Fprintln(out, "no points given; nothing recorded")
	}
	return nil
}

func init() {
	measureCmd.Flags().StringArrayP("point", "p", nil, "point as lng,lat (repeat in capture order)")
	measureCmd.Flags().Bool("snap", false, "snap points to field boundaries (default from settings)")
	measureCmd.Flags().String("boundaries", "", "GeoJSON or shapefile of field boundaries (default snap.boundaries_file)")
	rootCmd.AddCommand(measureCmd)
}
