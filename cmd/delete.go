package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/fieldmap-cli/internal/model"
	"github.com/sells-group/fieldmap-cli/internal/store"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <distance|area> <id>",
	Short: "Delete one recorded measurement",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := model.ParseKind(args[0])
		if err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return runDelete(cmd.Context(), os.Stdout, st, kind, args[1])
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded measurement",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Removed %d measurement(s).\n", n)
		return nil
	},
}

// runDelete removes a measurement. A missing id is reported but is not an
// error.
func runDelete(ctx context.Context, out io.Writer, st store.Store, kind model.Kind, id string) error {
	removed, err := st.Delete(ctx, kind, id)
	if err != nil {
		return err
	}
	if !removed {
		_, _ = fmt.Fprintf(out, "No %s measurement with id %s.\n", kind, id)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Deleted %s %s.\n", kind, id)
	return nil
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(clearCmd)
}
