package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/bivariate-map/internal/pipeline"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the configured maps",
	Long:  "Loads the data table and country boundaries once, then renders every configured map (or those named with --map).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("render"); err != nil {
			return err
		}

		names, _ := cmd.Flags().GetStringSlice("map")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		record, _ := cmd.Flags().GetBool("record")
		if !cmd.Flags().Changed("record") {
			record = cfg.Store.Record
		}
		if concurrency <= 0 {
			concurrency = cfg.Render.Concurrency
		}

		specs, err := pipeline.SpecsFromConfig(cfg, names...)
		if err != nil {
			return err
		}

		env, err := initMapEnv(ctx, cfg, record)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.Gen.GenerateAll(ctx, specs, concurrency)
		formatResults(os.Stdout, results)
		return err
	},
}

func init() {
	renderCmd.Flags().StringSlice("map", nil, "map name to render (repeatable, default all)")
	renderCmd.Flags().Int("concurrency", 0, "maps rendered in parallel (default from config)")
	renderCmd.Flags().Bool("record", false, "record the run in the store (default from config)")
	rootCmd.AddCommand(renderCmd)
}

// formatResults writes one line per finished map. Nil results (maps that did
// not finish) are skipped.
func formatResults(w io.Writer, results []*pipeline.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MAP\tOUTPUT\tENTITIES\tMATCHED\tUNMATCHED\tDURATION\tRUN")
	for _, r := range results {
		if r == nil {
			continue
		}
		run := r.RunID
		if len(run) > 8 {
			run = run[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.Map, r.Output, r.Entities, r.Matched, len(r.UnmatchedEntities),
			r.Duration.Round(1e6), run,
		)
	}
	tw.Flush() //nolint:errcheck

	for _, r := range results {
		if r != nil && len(r.UnmatchedEntities) > 0 {
			fmt.Fprintf(w, "\n%s: no boundary for %s\n", r.Map, strings.Join(r.UnmatchedEntities, ", "))
		}
	}
}
