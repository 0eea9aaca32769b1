// Package pipeline runs the complete corpus-to-artifact pipeline:
// load → filter → lower → rewrite → orient → export. The CLI and the
// HTTP server both drive it through a [Runner], which adds caching and
// artifact persistence around the stages.
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.FromSettings(cfg)
//	result, err := runner.Execute(ctx, opts)
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/cache"
	"github.com/alchemeast/thesugraph/pkg/config"
	"github.com/alchemeast/thesugraph/pkg/filter"
	"github.com/alchemeast/thesugraph/pkg/graph"
	"github.com/alchemeast/thesugraph/pkg/render"
)

// Layout engines supported by the export stage.
const (
	EngineDot   = "dot"
	EngineFdp   = "fdp"
	EngineNeato = "neato"
)

// ValidEngines is the set of supported layout engines.
var ValidEngines = map[string]bool{
	EngineDot:   true,
	EngineFdp:   true,
	EngineNeato: true,
}

// Output format constants. The DOT text is always produced and
// returned on the Result; FormatDOT additionally exposes it as an
// artifact, which callers like the HTTP API use for uniform handling.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPDF = "pdf"
	FormatPNG = "png"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
	FormatPDF: true,
	FormatPNG: true,
}

// DefaultOrientTimeout bounds the layout pass that fixes arrow
// directions before export.
const DefaultOrientTimeout = 30 * time.Second

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Input is the corpus document: a local path or an http(s) URL.
	Input string `json:"input"`

	// BaseDir anchors relative include and source references. Defaults
	// to the input's directory for local input.
	BaseDir string `json:"base_dir,omitempty"`

	// Name labels the run in the info box and artifact records.
	// Defaults to the input base name.
	Name string `json:"name,omitempty"`

	// Filter configures the document filtering stage.
	Filter filter.Config `json:"filter,omitempty"`

	// Engine selects the layout engine: dot, fdp or neato.
	Engine string `json:"engine,omitempty"`

	// EngineSettings is the graph-level parameter table for the engine.
	EngineSettings map[string]any `json:"engine_settings,omitempty"`

	// Formats selects the rendered outputs.
	Formats []string `json:"formats,omitempty"`

	PDF render.FormatOptions `json:"pdf,omitempty"`
	PNG render.FormatOptions `json:"png,omitempty"`

	// Colors remaps color literals in the generated DOT, overriding the
	// built-in palette per-deployment.
	Colors map[string]string `json:"colors,omitempty"`

	// Refresh bypasses cached layouts and artifacts.
	Refresh bool `json:"refresh,omitempty"`

	// OrientTimeout bounds the arrow-direction layout pass.
	OrientTimeout time.Duration `json:"orient_timeout,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// FromSettings maps a loaded configuration onto pipeline options.
func FromSettings(cfg config.Settings) Options {
	formats := []string{}
	if cfg.Output.SVG {
		formats = append(formats, FormatSVG)
	}
	if cfg.Output.PDF {
		formats = append(formats, FormatPDF)
	}
	if cfg.Output.PNG {
		formats = append(formats, FormatPNG)
	}

	return Options{
		Input:   cfg.InputPath(),
		BaseDir: cfg.Paths.BaseDir,
		Name:    cfg.Paths.XMLName,
		Filter: filter.Config{
			Sources:                  cfg.Filters.SourcesToSelect,
			CustomPropositionFilters: relationExprs(cfg.Filters.CustomPropositions),
			CustomSequenceFilters:    relationExprs(cfg.Filters.CustomSequences),
			FilterPropositions:       cfg.Filters.FilterPropositions,
			FilterMatchingSequences:  cfg.Filters.FilterMatchingPropSeqs,
			FilterAllSequences:       cfg.Filters.FilterAllSequences,
			FilterExtrinsic:          cfg.Filters.FilterExtrinsic,
			ThesisFocus:              cfg.Filters.ThesisFocusIDs,
			ExcludeElements:          cfg.Filters.ElementsToExclude,
		},
		Engine:         cfg.Layout.DefaultEngine,
		EngineSettings: cfg.EngineSettings(cfg.Layout.DefaultEngine),
		Formats:        formats,
		Colors:         cfg.Colors,
		PDF: render.FormatOptions{
			Size: cfg.Output.PDFSettings.Size,
			DPI:  cfg.Output.PDFSettings.DPI,
		},
		PNG: render.FormatOptions{
			Size:         cfg.Output.PNGSettings.Size,
			DPI:          cfg.Output.PNGSettings.DPI,
			MaxWarningMB: cfg.Output.PNGSettings.MaxWarningMB,
		},
	}
}

// relationExprs flattens a target → anchors map back into the
// "<anchor> to <target>" expressions the filter engine parses.
func relationExprs(m map[string][]string) []string {
	var exprs []string
	for target, anchors := range m {
		for _, anchor := range anchors {
			exprs = append(exprs, anchor+" to "+target)
		}
	}
	return exprs
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies this run in logs and artifact records.
	RunID string

	// Graph is the finished statement tree.
	Graph *graph.Graph

	// DOT is the canonical serialized graph.
	DOT string

	// DOTHash is the content hash of the DOT text.
	DOTHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	LoadTime   time.Duration
	BuildTime  time.Duration
	OrientTime time.Duration
	ExportTime time.Duration
	Total      time.Duration
}

// CacheInfo tracks cache hits per stage.
type CacheInfo struct {
	// OrientHit reports whether node positions came from cache.
	OrientHit bool

	// ExportHit reports whether every requested artifact came from
	// cache.
	ExportHit bool
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: dot, svg, pdf, png)", format)
	}
	return nil
}

// ValidateEngine checks that a layout engine is valid.
func ValidateEngine(engine string) error {
	if !ValidEngines[engine] {
		return fmt.Errorf("invalid engine: %q (must be one of: dot, fdp, neato)", engine)
	}
	return nil
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent: calling it multiple times has the same
// effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Input == "" {
		return fmt.Errorf("input is required")
	}

	if o.Engine == "" {
		o.Engine = EngineDot
	}
	if err := ValidateEngine(o.Engine); err != nil {
		return err
	}

	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	for _, f := range o.Formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}

	if o.OrientTimeout == 0 {
		o.OrientTimeout = DefaultOrientTimeout
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// LayoutKeyOpts returns cache key options for the orient stage.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{Engine: o.Engine}
}

// ArtifactKeyOpts returns cache key options for a rendered format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	opts := cache.ArtifactKeyOpts{Format: format, Engine: o.Engine}
	switch format {
	case FormatPDF:
		opts.Size = o.PDF.Size
		opts.DPI = o.PDF.DPI
	case FormatPNG:
		opts.Size = o.PNG.Size
		opts.DPI = o.PNG.DPI
	}
	return opts
}

// infoBox builds the info-box description of this run.
func (o *Options) infoBox() render.InfoBox {
	return render.InfoBox{
		XMLName: o.Name,
		Sources: o.Filter.Sources,
		Engine:  o.Engine,
		Filters: render.FilterSummary{
			Propositions:      o.Filter.FilterPropositions,
			MatchingSequences: o.Filter.FilterMatchingSequences,
			AllSequences:      o.Filter.FilterAllSequences,
			Extrinsic:         o.Filter.FilterExtrinsic,
			Excluded:          o.Filter.ExcludeElements,
			CustomProps:       filter.ParseRelationFilters(o.Filter.CustomPropositionFilters, o.Logger),
			CustomSeqs:        filter.ParseRelationFilters(o.Filter.CustomSequenceFilters, o.Logger),
			ThesisFocus:       o.Filter.ThesisFocus,
		},
	}
}
