package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/bivariate-map/internal/choropleth"
	"github.com/sells-group/bivariate-map/internal/pipeline"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Print the class and color of every table row for one map",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("render"); err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("map")
		specs, err := pipeline.SpecsFromConfig(cfg, name)
		if err != nil {
			return err
		}

		env, err := initMapEnv(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		cl, err := env.Gen.Classify(ctx, specs[0])
		if err != nil {
			return err
		}
		formatClassification(os.Stdout, cl)
		return nil
	},
}

func init() {
	classifyCmd.Flags().String("map", "", "map name (required)")
	_ = classifyCmd.MarkFlagRequired("map")
	rootCmd.AddCommand(classifyCmd)
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatClassification prints one row per entity followed by per-class counts
// and the names left unmatched by the join.
func formatClassification(w io.Writer, cl *pipeline.Classification) {
	matched := make(map[string]bool)
	for _, r := range cl.Join.Regions {
		if r.Assignment != nil {
			matched[r.Assignment.Entity.Name] = true
		}
	}

	rows := make([]choropleth.Assignment, len(cl.Assignments))
	copy(rows, cl.Assignments)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Entity.Name < rows[j].Entity.Name })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tA\tB\tA_BIN\tB_BIN\tCLASS\tCOLOR\tHATCH\tMATCHED")
	for _, a := range rows {
		hatch := a.Hatch.Pattern()
		if hatch == "" {
			hatch = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\t%t\n",
			a.Entity.Name, formatValue(a.Entity.A), formatValue(a.Entity.B),
			a.Class.A, a.Class.B, a.Class.Index, a.Color.Hex(), hatch, matched[a.Entity.Name],
		)
	}
	tw.Flush() //nolint:errcheck

	fmt.Fprintln(w)
	for i, n := range cl.Counts {
		fmt.Fprintf(w, "class %d: %d\n", i, n)
	}
	if len(cl.Join.UnmatchedEntities) > 0 {
		fmt.Fprintf(w, "rows without a boundary: %d\n", len(cl.Join.UnmatchedEntities))
	}
	if len(cl.Join.UnmatchedFeatures) > 0 {
		fmt.Fprintf(w, "boundaries without a row: %d\n", len(cl.Join.UnmatchedFeatures))
	}
}
