package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bivariate-map/internal/model"
	"github.com/sells-group/bivariate-map/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect map generation history",
	Long:  "Commands for listing recorded runs and the per-country assignments they produced.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		mapName, _ := cmd.Flags().GetString("map")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			MapName: mapName,
			Status:  model.RunStatus(status),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its assignments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}

		recs, err := st.ListAssignments(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		formatRun(os.Stdout, run, recs)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("map", "", "filter by map name")
	runsListCmd.Flags().String("status", "", "filter by run status (rendering, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().Bool("json", false, "print the run as JSON without assignments")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatRunsList writes a table of runs.
func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMAP\tSTATUS\tMATCHED\tUNMATCHED\tCREATED\tOUTPUT")
	for _, r := range runs {
		output := r.Output
		if r.Status == model.RunStatusFailed && r.Error != "" {
			output = "error: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			shortID(r.ID), r.MapName, r.Status, r.Matched, r.Unmatched,
			r.CreatedAt.Format("2006-01-02 15:04"), output,
		)
	}
	tw.Flush() //nolint:errcheck
}

// formatRun writes a run header followed by its assignments.
func formatRun(w io.Writer, run *model.Run, recs []model.AssignmentRecord) {
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Map:       %s\n", run.MapName)
	fmt.Fprintf(w, "Status:    %s\n", run.Status)
	fmt.Fprintf(w, "Output:    %s\n", run.Output)
	fmt.Fprintf(w, "Entities:  %d (matched %d, unmatched %d)\n", run.Entities, run.Matched, run.Unmatched)
	if run.Error != "" {
		fmt.Fprintf(w, "Error:     %s\n", run.Error)
	}
	fmt.Fprintf(w, "Created:   %s\n\n", run.CreatedAt.Format("2006-01-02 15:04:05"))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tA\tB\tCLASS\tCOLOR\tMISSING\tMATCHED")
	for _, r := range recs {
		missing := "-"
		switch {
		case r.MissingA && r.MissingB:
			missing = "A,B"
		case r.MissingA:
			missing = "A"
		case r.MissingB:
			missing = "B"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%t\n",
			r.Name, formatValue(store.Value(r.A)), formatValue(store.Value(r.B)),
			r.Class, r.Color, missing, r.Matched,
		)
	}
	tw.Flush() //nolint:errcheck
}
