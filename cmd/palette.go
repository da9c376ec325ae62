package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/bivariate-map/internal/bivariate"
	"github.com/sells-group/bivariate-map/internal/pipeline"
)

var paletteCmd = &cobra.Command{
	Use:   "palette",
	Short: "Print the blended 3x3 palette",
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := pipeline.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		p, err := bivariate.BuildPalette(opts.AScale, opts.BScale, opts.Blend)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p.Hex())
		}
		formatPalette(os.Stdout, p)
		return nil
	},
}

func init() {
	paletteCmd.Flags().Bool("json", false, "print the palette as a JSON array in index order")
	rootCmd.AddCommand(paletteCmd)
}

// formatPalette prints the grid as it appears in the legend: the highest axis-B
// row first, axis A increasing to the right.
func formatPalette(w io.Writer, p bivariate.Palette) {
	cols, rows := p.Dims()
	for b := rows - 1; b >= 0; b-- {
		cells := make([]string, cols)
		for a := 0; a < cols; a++ {
			cells[a] = fmt.Sprintf("%d:%s", bivariate.Combine(a, b, cols), p.Cell(a, b).Hex())
		}
		fmt.Fprintf(w, "B%d  %s\n", b, strings.Join(cells, "  "))
	}
}
