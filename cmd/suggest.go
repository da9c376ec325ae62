package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bivariate-map/internal/pipeline"
	"github.com/sells-group/bivariate-map/internal/stats"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Summarize a data column and suggest quantile cutoffs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		column, _ := cmd.Flags().GetString("column")
		bins, _ := cmd.Flags().GetInt("bins")
		method, _ := cmd.Flags().GetString("method")

		m, err := parseMethod(method)
		if err != nil {
			return err
		}

		src := pipeline.SourcesFromConfig(cfg)
		resolver := pipeline.ResolverFromConfig(cfg)
		defer resolver.Cleanup() //nolint:errcheck

		table, _, err := pipeline.LoadTable(ctx, resolver, src)
		if err != nil {
			return err
		}
		values, err := table.Values(column)
		if err != nil {
			return err
		}

		summary := stats.Summarize(values)
		cuts, err := stats.SuggestCutoffs(values, bins, m)
		if err != nil {
			return eris.Wrapf(err, "suggest %s", column)
		}
		return writeSuggestion(os.Stdout, column, summary, cuts)
	},
}

func init() {
	suggestCmd.Flags().String("column", "", "table column to summarize (required)")
	suggestCmd.Flags().Int("bins", 3, "number of bins")
	suggestCmd.Flags().String("method", string(stats.Empirical), "quantile estimator: empirical or linear")
	_ = suggestCmd.MarkFlagRequired("column")
	rootCmd.AddCommand(suggestCmd)
}

func parseMethod(s string) (stats.Method, error) {
	switch m := stats.Method(s); m {
	case stats.Empirical, stats.Linear:
		return m, nil
	default:
		return "", eris.Errorf("unknown quantile method %q", s)
	}
}

type suggestion struct {
	Column  string        `yaml:"column"`
	Summary stats.Summary `yaml:"summary"`
	Cutoffs []float64     `yaml:"cutoffs,flow"`
}

// writeSuggestion prints the summary and cutoffs as YAML that can be pasted
// into a map entry.
func writeSuggestion(w io.Writer, column string, s stats.Summary, cuts []float64) error {
	out, err := yaml.Marshal(suggestion{Column: column, Summary: s, Cutoffs: cuts})
	if err != nil {
		return eris.Wrap(err, "marshal suggestion")
	}
	_, err = fmt.Fprint(w, string(out))
	return err
}
