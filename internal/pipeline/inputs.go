package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bivariate-map/internal/boundary"
	"github.com/sells-group/bivariate-map/internal/dataset"
	"github.com/sells-group/bivariate-map/internal/fetcher"
)

// Sources locates the table and the boundaries. Locations may be local paths
// or http(s)/ftp URLs, optionally pointing at a ZIP archive. A zipped
// shapefile keeps its .dbf and .shx siblings next to the .shp.
type Sources struct {
	Data       string
	Dataset    dataset.Options
	Boundaries string
	Boundary   boundary.Options
}

func memberExt(location, fallback string) string {
	ext := strings.ToLower(filepath.Ext(strings.SplitN(location, "?", 2)[0]))
	if ext == "" || ext == ".zip" {
		return fallback
	}
	return ext
}

// LoadInputs resolves and reads both sources. An unreadable source fails with
// an error wrapping fetcher.ErrSourceUnavailable.
func LoadInputs(ctx context.Context, r *fetcher.Resolver, src Sources) (Inputs, error) {
	table, dataPath, err := LoadTable(ctx, r, src)
	if err != nil {
		return Inputs{}, err
	}

	shpPath, err := r.Resolve(ctx, src.Boundaries, ".shp")
	if err != nil {
		return Inputs{}, eris.Wrap(err, "pipeline: resolve boundaries")
	}
	features, err := boundary.ReadShapefile(shpPath, src.Boundary)
	if err != nil {
		return Inputs{}, eris.Wrap(err, "pipeline: load boundaries")
	}

	zap.L().Info("pipeline: inputs loaded",
		zap.String("data", dataPath),
		zap.Int("rows", table.Len()),
		zap.String("boundaries", shpPath),
		zap.Int("features", len(features)),
	)
	return Inputs{Table: table, Features: features}, nil
}

// LoadTable resolves and reads only the data table, returning it with the
// local path it was read from.
func LoadTable(ctx context.Context, r *fetcher.Resolver, src Sources) (*dataset.Table, string, error) {
	path, err := r.Resolve(ctx, src.Data, memberExt(src.Data, ".xlsx"))
	if err != nil {
		return nil, "", eris.Wrap(err, "pipeline: resolve data")
	}
	table, err := dataset.Load(ctx, path, src.Dataset)
	if err != nil {
		return nil, "", eris.Wrap(err, "pipeline: load data")
	}
	return table, path, nil
}
