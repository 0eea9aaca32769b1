// Package rewrite post-processes the lowered graph: it reconciles
// legacy identifiers, reorganizes statements by source, validates and
// redirects dangling edges, prunes disconnected exclusion placeholders,
// and deduplicates repeated definitions.
//
// The passes run in a fixed order against the in-memory statement tree.
// The graph is serialized once, after the last pass, so no pass ever
// re-parses text it produced itself.
package rewrite

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
)

// Options configures the rewriting pipeline.
type Options struct {
	// Logger receives per-pass summaries.
	Logger *log.Logger

	// Doc is the corpus document, consulted for ancestor redirection
	// and excluded element typing. A nil Doc degrades gracefully:
	// redirection is skipped and types are inferred from IDs.
	Doc *document.Document

	// Exclude lists element IDs whose definitions are stripped and
	// replaced by filtered placeholders.
	Exclude []string
}

// Pipeline runs the rewriting passes.
type Pipeline struct {
	logger   *log.Logger
	doc      *document.Document
	excluded map[string]bool
}

// New builds a pipeline from options.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	excluded := make(map[string]bool, len(opts.Exclude))
	for _, id := range opts.Exclude {
		if id = strings.TrimSpace(id); id != "" {
			excluded[id] = true
		}
	}
	return &Pipeline{logger: opts.Logger, doc: opts.Doc, excluded: excluded}
}

// Run applies every pass in order and returns the rewritten graph. The
// reorganization pass rebuilds the statement tree, so the returned
// graph may be a different instance than the input.
func (p *Pipeline) Run(g *graph.Graph) *graph.Graph {
	p.reconcile(g)
	g = p.reorganize(g)
	if len(p.excluded) > 0 {
		p.removeExcludedDefinitions(g)
	}
	p.validate(g)
	if len(p.excluded) > 0 {
		p.prune(g)
	}
	p.dedupe(g)
	return g
}

// removeExcludedDefinitions strips the node definitions of excluded
// elements while leaving their edges in place. The validation pass then
// substitutes those edges with filtered placeholders.
func (p *Pipeline) removeExcludedDefinitions(g *graph.Graph) {
	removed := 0
	g.FilterStmts(func(s graph.Stmt) bool {
		if n, ok := s.(*graph.Node); ok && p.excluded[n.ID] {
			removed++
			return false
		}
		return true
	})
	if removed > 0 {
		p.logger.Debug("removed excluded node definitions", "count", removed)
	}
}

// dedupe keeps the first occurrence of any repeated node or edge
// statement. Identity is the serialized statement, so two definitions
// of one node with different attributes both survive.
func (p *Pipeline) dedupe(g *graph.Graph) {
	seen := map[string]bool{}
	dropped := 0
	g.FilterStmts(func(s graph.Stmt) bool {
		var key string
		switch v := s.(type) {
		case *graph.Node:
			key = "n:" + v.ID + "[" + v.Attrs.String() + "]"
		case *graph.Edge:
			key = "e:" + v.From + "->" + v.To + "[" + v.Attrs.String() + "]"
		default:
			return true
		}
		if seen[key] {
			dropped++
			return false
		}
		seen[key] = true
		return true
	})
	if dropped > 0 {
		p.logger.Debug("dropped duplicate statements", "count", dropped)
	}
}
