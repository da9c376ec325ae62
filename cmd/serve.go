package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bivariate-map/internal/config"
	"github.com/sells-group/bivariate-map/internal/pipeline"
	"github.com/sells-group/bivariate-map/internal/render"
	"github.com/sells-group/bivariate-map/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve maps over HTTP, rendered on demand",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initMapEnv(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(env.Gen, cfg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

type mapInfo struct {
	Name    string    `json:"name"`
	Column  string    `json:"column"`
	Cutoffs []float64 `json:"cutoffs"`
	Output  string    `json:"output"`
	Label   string    `json:"label"`
}

type assignmentJSON struct {
	Name     string   `json:"name"`
	A        *float64 `json:"a"`
	B        *float64 `json:"b"`
	ABin     int      `json:"a_bin"`
	BBin     int      `json:"b_bin"`
	Class    int      `json:"class"`
	Color    string   `json:"color"`
	MissingA bool     `json:"missing_a"`
	MissingB bool     `json:"missing_b"`
}

// newRouter wires the HTTP API. Map images are rendered per request, at most
// render.concurrency at a time.
func newRouter(gen *pipeline.Generator, c *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/palette", func(w http.ResponseWriter, r *http.Request) {
		p := gen.Palette()
		cols, rows := p.Dims()
		writeJSON(w, http.StatusOK, map[string]any{
			"cols":   cols,
			"rows":   rows,
			"colors": p.Hex(),
		})
	})

	r.Get("/maps", func(w http.ResponseWriter, r *http.Request) {
		out := make([]mapInfo, len(c.Maps))
		for i, m := range c.Maps {
			out[i] = mapInfo{Name: m.Name, Column: m.Column, Cutoffs: m.Cutoffs, Output: m.Output, Label: m.Label}
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/maps/{name}/assignments", func(w http.ResponseWriter, r *http.Request) {
		spec, ok := lookupSpec(c, chi.URLParam(r, "name"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown map")
			return
		}
		cl, err := gen.Classify(r.Context(), spec)
		if err != nil {
			zap.L().Error("classify failed", zap.String("map", spec.Name), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "classification failed")
			return
		}
		out := make([]assignmentJSON, len(cl.Assignments))
		for i, a := range cl.Assignments {
			out[i] = assignmentJSON{
				Name:     a.Entity.Name,
				A:        store.Nullable(a.Entity.A),
				B:        store.Nullable(a.Entity.B),
				ABin:     a.Class.A,
				BBin:     a.Class.B,
				Class:    a.Class.Index,
				Color:    a.Color.Hex(),
				MissingA: a.Entity.MissingA,
				MissingB: a.Entity.MissingB,
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	limit := c.Render.Concurrency
	if limit < 1 {
		limit = 1
	}
	r.With(middleware.Throttle(limit)).Get("/maps/{file}", func(w http.ResponseWriter, r *http.Request) {
		file := chi.URLParam(r, "file")
		ext := path.Ext(file)
		spec, ok := lookupSpec(c, strings.TrimSuffix(file, ext))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown map")
			return
		}
		f, err := render.ParseFormat(ext)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var buf bytes.Buffer
		if err := gen.Render(r.Context(), spec, f, &buf); err != nil {
			zap.L().Error("render failed", zap.String("map", spec.Name), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "render failed")
			return
		}
		w.Header().Set("Content-Type", f.ContentType())
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes()) //nolint:errcheck
	})

	return r
}

func lookupSpec(c *config.Config, name string) (pipeline.MapSpec, bool) {
	if _, ok := c.Map(name); !ok {
		return pipeline.MapSpec{}, false
	}
	specs, err := pipeline.SpecsFromConfig(c, name)
	if err != nil || len(specs) == 0 {
		return pipeline.MapSpec{}, false
	}
	return specs[0], true
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
