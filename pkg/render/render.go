package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-graphviz"
)

// screenDPI is the nominal SVG resolution rsvg-convert assumes.
const screenDPI = 96.0

// FormatOptions tunes raster and print output.
type FormatOptions struct {
	// Size is the graphviz page size in inches, e.g. "11.7,16.5".
	Size string

	// DPI sets the output resolution for raster formats.
	DPI int

	// MaxWarningMB logs a warning when the output exceeds this size.
	MaxWarningMB float64
}

// Options configures an Exporter.
type Options struct {
	// Logger receives progress output. Defaults to a discard logger.
	Logger *log.Logger

	// Engine is the layout engine: dot, fdp or neato. Defaults to dot.
	Engine string

	// Settings is the engine parameter table written into the graph
	// attribute block.
	Settings map[string]any

	// Info populates the info-box label drawn above the graph.
	Info InfoBox

	PDF FormatOptions
	PNG FormatOptions
}

// Exporter renders prepared DOT text into output formats.
type Exporter struct {
	logger   *log.Logger
	engine   string
	settings map[string]any
	info     InfoBox
	pdf      FormatOptions
	png      FormatOptions
}

// New creates an Exporter.
func New(opts Options) *Exporter {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	engine := opts.Engine
	if engine == "" {
		engine = "dot"
	}
	return &Exporter{
		logger:   logger,
		engine:   engine,
		settings: opts.Settings,
		info:     opts.Info,
		pdf:      opts.PDF,
		png:      opts.PNG,
	}
}

// Prepare returns the DOT text ready for layout: layout parameters and
// the info box injected after the header, and node margins widened for
// display. The caller keeps the original DOT as the canonical artifact.
func (e *Exporter) Prepare(dot string) string {
	params := LayoutParams(e.engine, e.settings, e.info)
	return InjectParams(BumpNodeMargins(dot), params)
}

// SVG lays out the prepared DOT with the configured engine and returns
// normalized SVG bytes.
func (e *Exporter) SVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(layoutFor(e.engine))

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render svg: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// PDF renders the prepared DOT as a PDF document.
func (e *Exporter) PDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := e.SVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return ToPDF(svg)
}

// PNG renders the prepared DOT as a PNG image at the configured DPI.
func (e *Exporter) PNG(ctx context.Context, dot string) ([]byte, error) {
	svg, err := e.SVG(ctx, dot)
	if err != nil {
		return nil, err
	}

	scale := 1.0
	if e.png.DPI > 0 {
		scale = float64(e.png.DPI) / screenDPI
	}
	data, err := ToPNG(svg, scale)
	if err != nil {
		return nil, err
	}

	if e.png.MaxWarningMB > 0 {
		if mb := float64(len(data)) / (1 << 20); mb > e.png.MaxWarningMB {
			e.logger.Warn("large PNG output",
				"size_mb", fmt.Sprintf("%.1f", mb),
				"limit_mb", e.png.MaxWarningMB,
				"hint", "lower the PNG dpi setting")
		}
	}
	return data, nil
}

func layoutFor(engine string) graphviz.Layout {
	switch engine {
	case "fdp":
		return graphviz.FDP
	case "neato":
		return graphviz.NEATO
	default:
		return graphviz.DOT
	}
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the opening svg tag so the image scales in
// browsers regardless of the point-based size graphviz emits.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
