package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/artifact"
	"github.com/alchemeast/thesugraph/pkg/cache"
	"github.com/alchemeast/thesugraph/pkg/corpus"
	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/filter"
	"github.com/alchemeast/thesugraph/pkg/graph"
	"github.com/alchemeast/thesugraph/pkg/httputil"
	"github.com/alchemeast/thesugraph/pkg/lower"
	"github.com/alchemeast/thesugraph/pkg/observability"
	"github.com/alchemeast/thesugraph/pkg/orient"
	"github.com/alchemeast/thesugraph/pkg/render"
	"github.com/alchemeast/thesugraph/pkg/rewrite"
)

// Runner encapsulates pipeline execution with caching and optional
// artifact persistence.
//
// The Runner is stateless except for its collaborators; multiple
// goroutines can safely share one Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Store, when set, receives a record of each completed run.
	Store artifact.Store

	// Oracle overrides the layout oracle used by the orient stage.
	// Tests use this to avoid running graphviz.
	Oracle orient.Oracle
}

// NewRunner creates a runner with the given cache and keyer.
// A nil keyer gets the DefaultKeyer; a nil cache disables caching.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs the complete load → filter → lower → rewrite → orient →
// export pipeline. Only an unreadable input is fatal; degraded stages
// log and continue.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	r.applyLogger(&opts)

	run := observability.NewRun()
	ctx = observability.WithRun(ctx, run)
	hooks := observability.Stages()
	hooks.OnRunStart(ctx, opts.Input)

	start := time.Now()
	result := &Result{
		RunID:     run.ID.String(),
		Artifacts: make(map[string][]byte),
	}
	var runErr error
	defer func() { hooks.OnRunComplete(ctx, time.Since(start), runErr) }()

	// Stage 1: load
	loadStart := time.Now()
	hooks.OnStageStart(ctx, observability.StageLoad)
	c, err := r.load(ctx, &opts)
	hooks.OnStageComplete(ctx, observability.StageLoad, time.Since(loadStart), err)
	if err != nil {
		runErr = fmt.Errorf("load: %w", err)
		return nil, runErr
	}
	result.Stats.LoadTime = time.Since(loadStart)

	// Stages 2-4: filter, lower, rewrite
	buildStart := time.Now()
	g := r.build(ctx, c, opts, hooks)
	result.Stats.BuildTime = time.Since(buildStart)
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = len(g.Edges())

	opts.Logger.Info("built graph",
		"nodes", result.Stats.NodeCount,
		"edges", result.Stats.EdgeCount,
		"duration", result.Stats.BuildTime)

	// Stage 5: orient
	orientStart := time.Now()
	hooks.OnStageStart(ctx, observability.StageOrient)
	result.CacheInfo.OrientHit = r.orient(ctx, g, opts)
	hooks.OnStageComplete(ctx, observability.StageOrient, time.Since(orientStart), nil)
	result.Stats.OrientTime = time.Since(orientStart)

	result.Graph = g
	result.DOT = render.RemapColors(graph.ToDOT(g), opts.Colors)
	result.DOTHash = cache.Hash([]byte(result.DOT))

	// Stage 6: export
	exportStart := time.Now()
	hooks.OnStageStart(ctx, observability.StageExport)
	artifacts, exportHit, err := r.export(ctx, result.DOT, result.DOTHash, opts)
	hooks.OnStageComplete(ctx, observability.StageExport, time.Since(exportStart), err)
	if err != nil {
		runErr = fmt.Errorf("export: %w", err)
		return nil, runErr
	}
	result.Artifacts = artifacts
	result.CacheInfo.ExportHit = exportHit
	result.Stats.ExportTime = time.Since(exportStart)
	result.Stats.Total = time.Since(start)

	opts.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.ExportTime)

	r.persist(ctx, result, opts)
	return result, nil
}

// load reads the corpus from a local path or an http(s) URL.
func (r *Runner) load(ctx context.Context, opts *Options) (*corpus.Corpus, error) {
	if opts.Name == "" {
		base := filepath.Base(opts.Input)
		opts.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if strings.HasPrefix(opts.Input, "http://") || strings.HasPrefix(opts.Input, "https://") {
		data, err := httputil.Fetch(ctx, nil, nil, opts.Input)
		if err != nil {
			return nil, err
		}
		doc, err := document.Parse(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return corpus.New(doc, corpus.LoadOptions{
			BaseDir: opts.BaseDir,
			Logger:  opts.Logger,
		}), nil
	}

	return corpus.Load(opts.Input, corpus.LoadOptions{
		BaseDir: opts.BaseDir,
		Logger:  opts.Logger,
	})
}

// build runs the in-memory stages: document filtering, lowering to the
// statement tree, and the rewriting passes.
func (r *Runner) build(ctx context.Context, c *corpus.Corpus, opts Options, hooks observability.StageHooks) *graph.Graph {
	filterStart := time.Now()
	hooks.OnStageStart(ctx, observability.StageFilter)
	filter.New(opts.Filter, opts.Logger).Apply(c)
	hooks.OnStageComplete(ctx, observability.StageFilter, time.Since(filterStart), nil)

	lowerStart := time.Now()
	hooks.OnStageStart(ctx, observability.StageLower)
	g := lower.Lower(c, lower.Options{
		Logger:                  opts.Logger,
		FilterPropositions:      opts.Filter.FilterPropositions,
		FilterMatchingSequences: opts.Filter.FilterMatchingSequences,
	})
	hooks.OnStageComplete(ctx, observability.StageLower, time.Since(lowerStart), nil)

	rewriteStart := time.Now()
	hooks.OnStageStart(ctx, observability.StageRewrite)
	g = rewrite.New(rewrite.Options{
		Logger:  opts.Logger,
		Doc:     c.Doc,
		Exclude: opts.Filter.ExcludeElements,
	}).Run(g)
	hooks.OnStageComplete(ctx, observability.StageRewrite, time.Since(rewriteStart), nil)

	return g
}

// orient fixes arrow directions from laid-out node positions, serving
// positions from cache when the DOT content has been seen before.
// Returns whether the positions came from cache.
func (r *Runner) orient(ctx context.Context, g *graph.Graph, opts Options) bool {
	oracle := r.Oracle
	if oracle == nil {
		oracle = &orient.Graphviz{}
	}
	cached := &cachingOracle{
		inner:   oracle,
		cache:   r.Cache,
		keyer:   r.Keyer,
		opts:    opts.LayoutKeyOpts(),
		refresh: opts.Refresh,
	}

	orient.New(orient.Options{
		Logger:  opts.Logger,
		Oracle:  cached,
		Timeout: opts.OrientTimeout,
	}).Apply(ctx, g)

	return cached.hit
}

// export renders the requested formats, serving them from cache when
// the DOT content and render settings match a previous run.
func (r *Runner) export(ctx context.Context, dot, dotHash string, opts Options) (map[string][]byte, bool, error) {
	exporter := render.New(render.Options{
		Logger:   opts.Logger,
		Engine:   opts.Engine,
		Settings: opts.EngineSettings,
		Info:     opts.infoBox(),
		PDF:      opts.PDF,
		PNG:      opts.PNG,
	})

	artifacts := make(map[string][]byte, len(opts.Formats))
	missing := []string{}
	for _, format := range opts.Formats {
		if opts.Refresh {
			missing = append(missing, format)
			continue
		}
		key := r.Keyer.ArtifactKey(dotHash, opts.ArtifactKeyOpts(format))
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, key)
			artifacts[format] = data
		} else {
			observability.Cache().OnCacheMiss(ctx, key)
			missing = append(missing, format)
		}
	}
	if len(missing) == 0 {
		return artifacts, true, nil
	}

	prepared := exporter.Prepare(dot)
	for _, format := range missing {
		var data []byte
		var err error
		switch format {
		case FormatDOT:
			data = []byte(dot)
		case FormatSVG:
			data, err = exporter.SVG(ctx, prepared)
		case FormatPDF:
			data, err = exporter.PDF(ctx, prepared)
		case FormatPNG:
			data, err = exporter.PNG(ctx, prepared)
		default:
			err = ValidateFormat(format)
		}
		if err != nil {
			return nil, false, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data

		key := r.Keyer.ArtifactKey(dotHash, opts.ArtifactKeyOpts(format))
		if cerr := r.Cache.Set(ctx, key, data, cache.TTLArtifact); cerr == nil {
			observability.Cache().OnCacheSet(ctx, key, len(data))
		}
	}
	return artifacts, false, nil
}

// persist records the finished run in the artifact store, if one is
// configured. Persistence failures are logged, not fatal.
func (r *Runner) persist(ctx context.Context, result *Result, opts Options) {
	if r.Store == nil {
		return
	}
	rec := &artifact.Record{
		ID:        result.RunID,
		Corpus:    opts.Input,
		DOT:       result.DOT,
		Engine:    opts.Engine,
		NodeCount: result.Stats.NodeCount,
		EdgeCount: result.Stats.EdgeCount,
		Duration:  result.Stats.Total,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.Store.Put(ctx, rec); err != nil {
		opts.Logger.Warn("could not persist run artifact", "run", result.RunID, "error", err)
	}
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// cachingOracle wraps a layout oracle with position caching keyed by
// the DOT content hash.
type cachingOracle struct {
	inner   orient.Oracle
	cache   cache.Cache
	keyer   cache.Keyer
	opts    cache.LayoutKeyOpts
	refresh bool

	hit bool
}

func (o *cachingOracle) Positions(ctx context.Context, dot string) (map[string]orient.Point, error) {
	key := o.keyer.LayoutKey(cache.Hash([]byte(dot)), o.opts)

	if !o.refresh {
		if data, hit, err := o.cache.Get(ctx, key); err == nil && hit {
			var pos map[string]orient.Point
			if err := json.Unmarshal(data, &pos); err == nil {
				observability.Cache().OnCacheHit(ctx, key)
				o.hit = true
				return pos, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, key)
	}

	pos, err := o.inner.Positions(ctx, dot)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(pos); err == nil {
		if cerr := o.cache.Set(ctx, key, data, cache.TTLLayout); cerr == nil {
			observability.Cache().OnCacheSet(ctx, key, len(data))
		}
	}
	return pos, nil
}
