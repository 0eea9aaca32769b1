// Package pkg provides the core libraries for thesugraph corpus
// visualization.
//
// # Overview
//
// Thesugraph turns argumentation corpus documents into directed graph
// visualizations: theses, supports, objections and their textual
// evidence become DOT statements laid out with Graphviz. The pkg
// directory splits into:
//
//  1. [document], [corpus] - XML parsing and corpus resolution
//  2. [filter] - document-level filtering before graph construction
//  3. [graph], [lower], [rewrite], [orient] - the statement tree and
//     its construction and rewriting passes
//  4. [render] - layout parameters and SVG/PDF/PNG export
//  5. [pipeline] - orchestration (load → filter → lower → rewrite →
//     orient → export)
//  6. [cache], [artifact], [httputil], [observability], [config] -
//     supporting infrastructure
//
// # Data Flow
//
//	corpus XML document
//	         ↓
//	    [corpus] (load, resolve includes and source texts)
//	         ↓
//	    [filter] (source selection, match and sequence filters)
//	         ↓
//	    [lower] (elements → nodes, edges, clusters)
//	         ↓
//	    [rewrite] (reconcile, reorganize, validate, prune)
//	         ↓
//	    [orient] + [render] (layout, arrow fixup, export)
//	         ↓
//	    DOT / SVG / PDF / PNG output
//
// # Quick Start
//
// Run the whole pipeline through a runner:
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Input: "corpus.xml"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("corpus.dot", []byte(result.DOT), 0o644)
//
// [document]: github.com/alchemeast/thesugraph/pkg/document
// [corpus]: github.com/alchemeast/thesugraph/pkg/corpus
// [filter]: github.com/alchemeast/thesugraph/pkg/filter
// [graph]: github.com/alchemeast/thesugraph/pkg/graph
// [lower]: github.com/alchemeast/thesugraph/pkg/lower
// [rewrite]: github.com/alchemeast/thesugraph/pkg/rewrite
// [orient]: github.com/alchemeast/thesugraph/pkg/orient
// [render]: github.com/alchemeast/thesugraph/pkg/render
// [pipeline]: github.com/alchemeast/thesugraph/pkg/pipeline
// [cache]: github.com/alchemeast/thesugraph/pkg/cache
// [artifact]: github.com/alchemeast/thesugraph/pkg/artifact
// [httputil]: github.com/alchemeast/thesugraph/pkg/httputil
// [observability]: github.com/alchemeast/thesugraph/pkg/observability
// [config]: github.com/alchemeast/thesugraph/pkg/config
package pkg
