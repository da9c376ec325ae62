package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bivariate-map/internal/config"
	"github.com/sells-group/bivariate-map/internal/pipeline"
	"github.com/sells-group/bivariate-map/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render every map when the config or local sources change",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("watch"); err != nil {
			return err
		}

		cfgPath := configPath(cfgFile)
		paths := watchPaths(cfgPath, cfg)
		w, err := watch.New(paths, time.Duration(cfg.Watch.DebounceMillis)*time.Millisecond)
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck

		current := cfg
		regenerate(ctx, current)

		zap.L().Info("watching for changes", zap.Strings("paths", paths))
		return w.Run(ctx, func(ctx context.Context, _ []string) error {
			if cfgPath != "" {
				next, err := config.LoadFile(cfgPath)
				if err != nil {
					return err
				}
				if err := next.Validate("watch"); err != nil {
					return err
				}
				if next.Data.Source != current.Data.Source || next.Boundaries.Source != current.Boundaries.Source {
					zap.L().Warn("source locations changed; restart watch to follow the new files")
				}
				current = next
			}
			regenerate(ctx, current)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// configPath returns the config file in use, or "" when running on defaults.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

// watchPaths lists the local files that feed the maps. A shapefile's attribute
// table is watched along with its geometry.
func watchPaths(cfgPath string, c *config.Config) []string {
	locs := []string{cfgPath, c.Data.Source, c.Boundaries.Source}
	if strings.EqualFold(filepath.Ext(c.Boundaries.Source), ".shp") {
		locs = append(locs, strings.TrimSuffix(c.Boundaries.Source, filepath.Ext(c.Boundaries.Source))+".dbf")
	}
	return watch.LocalPaths(locs...)
}

func regenerate(ctx context.Context, c *config.Config) {
	env, err := initMapEnv(ctx, c, c.Store.Record)
	if err != nil {
		zap.L().Error("load inputs", zap.Error(err))
		return
	}
	defer env.Close()

	specs, err := pipeline.SpecsFromConfig(c)
	if err != nil {
		zap.L().Error("map specs", zap.Error(err))
		return
	}
	results, err := env.Gen.GenerateAll(ctx, specs, c.Render.Concurrency)
	formatResults(os.Stdout, results)
	if err != nil {
		zap.L().Error("render maps", zap.Error(err))
	}
}
