package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bivariate-map/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mode, _ := cmd.Flags().GetString("validate")
		if mode != "" {
			if err := cfg.Validate(mode); err != nil {
				return err
			}
		}
		return writeConfig(os.Stdout, cfg)
	},
}

func init() {
	configCmd.Flags().String("validate", "", "also validate for a mode (render, serve, watch)")
	rootCmd.AddCommand(configCmd)
}

func writeConfig(w io.Writer, c *config.Config) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "marshal config")
	}
	_, err = fmt.Fprint(w, string(out))
	return err
}
