package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/fieldmap-cli/internal/measure"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded measurements",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		ws, err := openWorkspace(ctx, "")
		if err != nil {
			return err
		}
		defer ws.Close() //nolint:errcheck

		doc, err := measure.BuildExport(ws.ctrl.Collection(), ws.ctrl.Settings(), ws.ctrl.Table(), time.Now())
		if err != nil {
			return err
		}
		if len(doc.Distances) == 0 && len(doc.Areas) == 0 {
			fmt.Fprintln(os.Stderr, "No measurements recorded.")
			return nil
		}
		formatMeasurements(os.Stdout, doc)
		return nil
	},
}

func formatMeasurements(out io.Writer, doc *measure.ExportDocument) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tID\tPOINTS\tVALUE\tPERIMETER\tCREATED")
	_, _ = fmt.Fprintln(w, "----\t--\t------\t-----\t---------\t-------")

	for _, d := range doc.Distances {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			"distance",
			d.ID,
			len(d.Points),
			d.Formatted,
			"",
			d.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	for _, a := range doc.Areas {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			a.Tool,
			a.ID,
			len(a.Points),
			a.Formatted,
			a.FormattedPerimeter,
			a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d distance(s), total %s; %d area(s), total %s\n",
		doc.Summary.DistanceCount, doc.Summary.TotalDistance,
		doc.Summary.AreaCount, doc.Summary.TotalArea,
	)
}

func init() {
	rootCmd.AddCommand(listCmd)
}
