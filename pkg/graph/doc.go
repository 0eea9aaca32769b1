// Package graph holds the in-memory model of the generated argument
// graph and its DOT serialization.
//
// The model is a statement tree: nodes, edges, clusters (sequence and
// entailment groupings), and per-source sections, kept in emission
// order. The lowering stage builds the tree once, the rewriting passes
// mutate it in place, and [ToDOT] serializes it once at the end of a
// run. Attribute lists preserve insertion order so output is stable
// across runs with identical input.
//
// # Core Types
//
//   - [Graph]: the statement tree plus a node index
//   - [Node], [Edge]: leaf statements
//   - [Cluster], [Section]: nested container statements
//   - [Attrs]: ordered attribute list with raw/quoted values
//
// Node IDs mirror the source document element IDs (e.g. "q1.T1");
// synthetic mediator IDs are allocated by pkg/ident against the graph
// acting as collision oracle via [Graph.Has].
package graph
