package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/alchemeast/thesugraph/pkg/artifact"
	"github.com/alchemeast/thesugraph/pkg/config"
	"github.com/alchemeast/thesugraph/pkg/pipeline"
)

// maxUploadBytes bounds corpus documents accepted over HTTP.
const maxUploadBytes = 32 << 20

// serveCommand creates the serve command: the pipeline behind an HTTP
// API.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline over HTTP",
		Long: `Serve starts an HTTP server exposing the pipeline:

  POST /render?format=dot|svg   corpus XML in the body, artifact out
  GET  /runs                    stored run IDs, most recent first
  GET  /runs/{id}               stored run record as JSON
  GET  /healthz                 liveness check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := c.loadSettings()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           c.newRouter(cfg, runner),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			c.Logger.Info("serving", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

// newRouter builds the HTTP routes around a shared runner.
func (c *CLI) newRouter(cfg config.Settings, runner *pipeline.Runner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/render", c.handleRender(cfg, runner))

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		if runner.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "no artifact store configured")
			return
		}
		ids, err := runner.Store.List(req.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": ids})
	})

	r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		if runner.Store == nil {
			writeError(w, http.StatusServiceUnavailable, "no artifact store configured")
			return
		}
		rec, err := runner.Store.Get(req.Context(), chi.URLParam(req, "id"))
		if errors.Is(err, artifact.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	return r
}

// handleRender accepts a corpus document and responds with the
// requested artifact.
func (c *CLI) handleRender(cfg config.Settings, runner *pipeline.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxUploadBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		if len(body) == 0 {
			writeError(w, http.StatusBadRequest, "empty corpus document")
			return
		}

		// The pipeline reads from a path; stage the upload.
		tmp, err := os.CreateTemp("", "thesugraph-*.xml")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(body); err != nil {
			tmp.Close()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		tmp.Close()

		format := req.URL.Query().Get("format")
		if format == "" {
			format = pipeline.FormatDOT
		}
		if err := pipeline.ValidateFormat(format); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		opts := pipeline.FromSettings(cfg)
		opts.Logger = c.Logger
		opts.Input = tmp.Name()
		opts.BaseDir = filepath.Dir(tmp.Name())
		opts.Name = "upload"
		if engine := req.URL.Query().Get("engine"); engine != "" {
			opts.Engine = engine
			opts.EngineSettings = cfg.EngineSettings(engine)
		}
		opts.Formats = []string{format}

		result, err := runner.Execute(req.Context(), opts)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		w.Header().Set("X-Run-ID", result.RunID)
		switch format {
		case pipeline.FormatDOT:
			w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
			fmt.Fprint(w, result.DOT)
		case pipeline.FormatSVG:
			w.Header().Set("Content-Type", "image/svg+xml")
			w.Write(result.Artifacts[format])
		case pipeline.FormatPDF:
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(result.Artifacts[format])
		case pipeline.FormatPNG:
			w.Header().Set("Content-Type", "image/png")
			w.Write(result.Artifacts[format])
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
