// Package cli implements the thesugraph command-line interface.
//
// Commands cover the full corpus workflow: build runs the complete
// pipeline from a corpus document to rendered artifacts, render
// re-exports an existing DOT file, artifacts manages stored run
// records, cache manages the run cache, and serve exposes the pipeline
// over HTTP. All commands support --verbose (-v) for debug logging and
// --config to point at a settings file.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/alchemeast/thesugraph/pkg/artifact"
	"github.com/alchemeast/thesugraph/pkg/buildinfo"
	"github.com/alchemeast/thesugraph/pkg/cache"
	"github.com/alchemeast/thesugraph/pkg/config"
	"github.com/alchemeast/thesugraph/pkg/observability"
	"github.com/alchemeast/thesugraph/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "thesugraph"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath is the settings file, set by the --config flag.
	ConfigPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Thesugraph renders argumentation corpora as directed graphs",
		Long:         `Thesugraph builds directed graph visualizations from argumentation corpus documents: theses, supports, objections and their textual evidence become a DOT graph rendered with Graphviz.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "settings file (default thesugraph.toml)")

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.artifactsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadSettings reads the settings file named by --config.
func (c *CLI) loadSettings() (config.Settings, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return config.Settings{}, err
	}
	if cfg.System.GraphvizPath != "" {
		// External converters must find the configured installation.
		os.Setenv("PATH", cfg.System.GraphvizPath+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
	return cfg, nil
}

// newRunner creates a pipeline runner wired per the settings.
func (c *CLI) newRunner(ctx context.Context, cfg config.Settings, noCache bool) (*pipeline.Runner, error) {
	backend, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}

	runner := pipeline.NewRunner(backend, nil, c.Logger)
	if store, err := c.newStore(ctx, cfg); err != nil {
		c.Logger.Warn("artifact store unavailable", "error", err)
	} else {
		runner.Store = store
	}

	observability.SetStageHooks(observability.NewLogStageHooks(c.Logger))
	return runner, nil
}

func newCache(ctx context.Context, cfg config.Settings, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.System.CacheBackend {
	case "null":
		return cache.NewNullCache(), nil
	case "redis":
		return cache.NewRedisCache(ctx, cfg.System.RedisURL)
	default:
		dir := cfg.System.CacheDir
		if dir == "" {
			var err error
			if dir, err = cacheDir(); err != nil {
				return cache.NewNullCache(), nil
			}
		}
		return cache.NewFileCache(dir)
	}
}

// newStore picks the artifact store: MongoDB when configured, a local
// file store otherwise.
func (c *CLI) newStore(ctx context.Context, cfg config.Settings) (artifact.Store, error) {
	if cfg.System.MongoURL != "" {
		return artifact.NewMongoStore(ctx, cfg.System.MongoURL, cfg.System.MongoDatabase)
	}
	return artifact.NewFileStore("")
}

// cacheDir returns the cache directory using XDG standard (~/.cache/thesugraph/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return nil
	}
	var formats []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

// writeArtifacts writes the DOT text and rendered outputs under dir
// using base as the file stem, and returns the written paths.
func writeArtifacts(dir, base, dot string, artifacts map[string][]byte) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var paths []string
	dotPath := filepath.Join(dir, base+".dot")
	if err := os.WriteFile(dotPath, []byte(dot), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", dotPath, err)
	}
	paths = append(paths, dotPath)

	for _, format := range []string{pipeline.FormatSVG, pipeline.FormatPDF, pipeline.FormatPNG} {
		data, ok := artifacts[format]
		if !ok {
			continue
		}
		p := filepath.Join(dir, base+"."+format)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
