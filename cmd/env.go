package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bivariate-map/internal/config"
	"github.com/sells-group/bivariate-map/internal/fetcher"
	"github.com/sells-group/bivariate-map/internal/pipeline"
	"github.com/sells-group/bivariate-map/internal/store"
)

// mapEnv holds the loaded inputs and the generator built from them.
type mapEnv struct {
	Gen      *pipeline.Generator
	Store    store.Store
	resolver *fetcher.Resolver
}

// Close releases the store and removes downloaded sources.
func (e *mapEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
	if e.resolver != nil {
		if err := e.resolver.Cleanup(); err != nil {
			zap.L().Warn("clean up downloads", zap.Error(err))
		}
	}
}

// initMapEnv loads the table and boundaries named by c and builds a generator.
// The run store is opened only when record is set.
func initMapEnv(ctx context.Context, c *config.Config, record bool) (*mapEnv, error) {
	opts, err := pipeline.OptionsFromConfig(c)
	if err != nil {
		return nil, err
	}

	env := &mapEnv{resolver: pipeline.ResolverFromConfig(c)}
	in, err := pipeline.LoadInputs(ctx, env.resolver, pipeline.SourcesFromConfig(c))
	if err != nil {
		env.Close()
		return nil, err
	}

	if record {
		st, err := initStore(ctx, c)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Store = st
		opts.Store = st
	}

	gen, err := pipeline.New(opts, in)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Gen = gen
	return env, nil
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	dsn := c.Store.DatabaseURL
	if dsn == "" && c.Store.Driver != "postgres" {
		dsn = "bivariate.db"
	}
	st, err := store.Open(ctx, c.Store.Driver, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
