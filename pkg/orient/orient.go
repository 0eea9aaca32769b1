// Package orient corrects edge arrow directions against the laid-out
// node coordinates. Graphviz occasionally routes an edge upward even
// though it was declared top-down; the corrector lays the graph out,
// compares endpoint heights, and marks such edges to draw their arrow
// at the tail instead.
//
// The layout is advisory. When it cannot be obtained the graph passes
// through untouched.
package orient

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/graph"
)

// Point is a laid-out node position in Graphviz plain-text
// coordinates, with Y increasing upward.
type Point struct {
	X float64
	Y float64
}

// Oracle lays out a DOT graph and reports node positions by ID.
type Oracle interface {
	Positions(ctx context.Context, dot string) (map[string]Point, error)
}

// DefaultTimeout bounds a single layout run.
const DefaultTimeout = 30 * time.Second

// Options configures the direction corrector.
type Options struct {
	// Logger receives a summary of flipped edges and layout failures.
	Logger *log.Logger

	// Oracle supplies node positions. Nil defaults to an in-process
	// Graphviz layout.
	Oracle Oracle

	// Timeout bounds the layout run. Zero means [DefaultTimeout].
	Timeout time.Duration
}

// Corrector flips the arrow rendering of edges whose source ends up
// below its target in the layout.
type Corrector struct {
	logger  *log.Logger
	oracle  Oracle
	timeout time.Duration
}

// New builds a corrector from options.
func New(opts Options) *Corrector {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Oracle == nil {
		opts.Oracle = Graphviz{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Corrector{logger: opts.Logger, oracle: opts.Oracle, timeout: opts.Timeout}
}

// Apply lays the graph out and sets dir="back" on every edge whose
// source sits below its target, so the arrowhead still points the
// declared way on screen. Edges that are invisible or already carry an
// explicit direction are left alone. Any layout failure leaves the
// graph unchanged.
func (c *Corrector) Apply(ctx context.Context, g *graph.Graph) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pos, err := c.oracle.Positions(ctx, graph.ToDOT(g))
	if err != nil {
		c.logger.Warn("layout unavailable, arrow directions unchanged", "err", err)
		return
	}

	flipped := 0
	for _, e := range g.Edges() {
		if skipEdge(e) {
			continue
		}
		src, okSrc := pos[e.From]
		dst, okDst := pos[e.To]
		if !okSrc || !okDst {
			continue
		}
		if src.Y < dst.Y {
			e.Attrs.Set("dir", "back")
			flipped++
		}
	}
	if flipped > 0 {
		c.logger.Debug("corrected upward edges", "count", flipped)
	}
}

func skipEdge(e *graph.Edge) bool {
	if strings.Contains(e.Attrs.Value("style"), "invis") {
		return true
	}
	switch e.Attrs.Value("dir") {
	case "none", "back", "both":
		return true
	}
	return false
}
