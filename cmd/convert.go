package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fieldmap-cli/internal/units"
)

var convertCmd = &cobra.Command{
	Use:   "convert <m2>",
	Short: "Convert an area in square meters to every land unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m2, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrapf(units.ErrInvalidInput, "convert: %q is not a number", args[0])
		}
		table, err := cfg.Table()
		if err != nil {
			return err
		}
		unit, _ := cmd.Flags().GetString("unit")
		return runConvert(os.Stdout, table, m2, unit)
	},
}

func runConvert(out io.Writer, table *units.Table, m2 float64, unit string) error {
	if unit != "" {
		u, err := units.ParseUnit(unit)
		if err != nil {
			return err
		}
		s, err := table.FormatArea(m2, u)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, s)
		return nil
	}

	v, err := table.ConvertArea(m2)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "UNIT\tVALUE\tFORMATTED")
	_, _ = fmt.Fprintln(w, "----\t-----\t---------")
	for _, u := range units.AllUnits {
		s, err := table.FormatArea(m2, u)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", u, strconv.FormatFloat(v.In(u), 'f', -1, 64), s)
	}
	return w.Flush()
}

func init() {
	convertCmd.Flags().String("unit", "", "print only this unit (m2, ha, alq, alq_mg, ...)")
	rootCmd.AddCommand(convertCmd)
}
