package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/fieldmap-cli/internal/export"
	"github.com/sells-group/fieldmap-cli/internal/measure"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded measurements to a file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		if formatName == "" {
			formatName = cfg.Export.Format
		}
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("out")
		if dir == "" {
			dir = cfg.Export.Dir
		}

		ws, err := openWorkspace(cmd.Context(), "")
		if err != nil {
			return err
		}
		defer ws.Close() //nolint:errcheck

		return runExport(os.Stdout, ws.ctrl, format, dir, cfg.Export.Prefix, time.Now())
	},
}

func runExport(out io.Writer, ctrl *measure.Controller, format export.Format, dir, prefix string, now time.Time) error {
	doc, err := measure.BuildExport(ctrl.Collection(), ctrl.Settings(), ctrl.Table(), now)
	if err != nil {
		return err
	}
	paths, err := export.ToFiles(format, doc, dir, measure.ExportBasename(prefix, now))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		_, _ = fmt.Fprintln(out, "Nothing to export.")
		return nil
	}
	for _, p := range paths {
		_, _ = fmt.Fprintln(out, p)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringP("format", "f", "", "json, yaml, geojson, xlsx or shp (default export.format)")
	exportCmd.Flags().StringP("out", "o", "", "output directory (default export.dir)")
	rootCmd.AddCommand(exportCmd)
}
