package graph

import "errors"

var (
	// ErrInvalidNodeID is returned by [Graph.AddNode] when the node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrInvalidEdgeEndpoint is returned by [Graph.AddEdge] when either
	// endpoint is empty.
	ErrInvalidEdgeEndpoint = errors.New("edge endpoint must not be empty")
)

// Kind classifies a node by the source entity or synthetic role it stands for.
type Kind int

const (
	// KindThesis is a THESIS entity node.
	KindThesis Kind = iota
	// KindSupport is a SUPPORT entity node.
	KindSupport
	// KindMisc is a MISC entity node.
	KindMisc
	// KindProposition is a PROPOSITION entity node.
	KindProposition
	// KindPhase is a sequence phase node.
	KindPhase
	// KindMediator is a synthetic node standing for a relation instance
	// (entailment, etiology, analogy, reference, matching proposition,
	// support function, employed element, or an invisible bridge).
	KindMediator
	// KindFilteredPlaceholder stands in for a deliberately excluded node.
	KindFilteredPlaceholder
	// KindSource is a source container marker.
	KindSource
)

// String returns the kind name used in logs and tests.
func (k Kind) String() string {
	switch k {
	case KindThesis:
		return "thesis"
	case KindSupport:
		return "support"
	case KindMisc:
		return "misc"
	case KindProposition:
		return "proposition"
	case KindPhase:
		return "phase"
	case KindMediator:
		return "mediator"
	case KindFilteredPlaceholder:
		return "filtered"
	case KindSource:
		return "source"
	}
	return "unknown"
}

// Stmt is a serializable graph statement: a node definition, an edge,
// a cluster, or a per-source section.
type Stmt interface{ stmt() }

// Node is a node definition statement.
type Node struct {
	ID    string
	Kind  Kind
	Attrs *Attrs
}

func (*Node) stmt() {}

// Edge is a directed edge statement. Edges may reference nodes that are
// defined elsewhere in the graph or not at all; the rewriting pipeline
// resolves dangling endpoints.
type Edge struct {
	From  string
	To    string
	Attrs *Attrs
}

func (*Edge) stmt() {}

// Undirected reports whether the edge carries dir=none.
func (e *Edge) Undirected() bool { return e.Attrs.Value("dir") == "none" }

// Cluster is a named visual grouping emitted contiguously as a
// `subgraph cluster_<ID>` block. Label is emitted verbatim (it may be
// an HTML-like string).
type Cluster struct {
	ID    string
	Label string
	Attrs *Attrs
	Stmts []Stmt
}

func (*Cluster) stmt() {}

// Section groups statements under one source container, emitted as a
// `subgraph source_<ID>` block. The empty ID is the catch-all section.
type Section struct {
	ID    string
	Label string
	Stmts []Stmt
}

func (*Section) stmt() {}

// Graph is the in-memory graph model the lowering stage builds and the
// rewriting pipeline mutates. Statements keep their emission order;
// serialization happens once, at the end of the run.
//
// Graph is not safe for concurrent use.
type Graph struct {
	Name  string
	Attrs *Attrs

	stmts []Stmt
	nodes map[string]*Node // first definition wins
}

// New creates an empty graph with the standard header attributes.
func New() *Graph {
	attrs := NewAttrs()
	attrs.SetRaw("compound", "true")
	attrs.SetRaw("newrank", "true")
	attrs.Set("rankdir", "TB")
	attrs.SetRaw("splines", "curved")
	return &Graph{Name: "G", Attrs: attrs, nodes: make(map[string]*Node)}
}

// NewEmpty creates a graph with no header attributes. Used by passes
// that rebuild a graph from an existing one.
func NewEmpty() *Graph {
	return &Graph{Name: "G", Attrs: NewAttrs(), nodes: make(map[string]*Node)}
}

// NewNode builds a node statement with an empty attribute list.
func NewNode(id string, kind Kind) *Node {
	return &Node{ID: id, Kind: kind, Attrs: NewAttrs()}
}

// NewEdge builds an edge statement with an empty attribute list.
func NewEdge(from, to string) *Edge {
	return &Edge{From: from, To: to, Attrs: NewAttrs()}
}

// Append adds a statement at the top level.
func (g *Graph) Append(s Stmt) {
	g.stmts = append(g.stmts, s)
	g.index(s)
}

// AppendTo adds a statement inside a cluster. The cluster itself must
// already be (or later be) appended to the graph or a section.
func (g *Graph) AppendTo(c *Cluster, s Stmt) {
	c.Stmts = append(c.Stmts, s)
	g.index(s)
}

// AppendToSection adds a statement inside a section.
func (g *Graph) AppendToSection(sec *Section, s Stmt) {
	sec.Stmts = append(sec.Stmts, s)
	g.index(s)
}

// AddNode appends a node definition at the top level.
func (g *Graph) AddNode(n *Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if n.Attrs == nil {
		n.Attrs = NewAttrs()
	}
	g.Append(n)
	return nil
}

// AddEdge appends an edge at the top level.
func (g *Graph) AddEdge(e *Edge) error {
	if e.From == "" || e.To == "" {
		return ErrInvalidEdgeEndpoint
	}
	if e.Attrs == nil {
		e.Attrs = NewAttrs()
	}
	g.Append(e)
	return nil
}

func (g *Graph) index(s Stmt) {
	switch v := s.(type) {
	case *Node:
		if _, ok := g.nodes[v.ID]; !ok {
			g.nodes[v.ID] = v
		}
	case *Cluster:
		for _, inner := range v.Stmts {
			g.index(inner)
		}
	case *Section:
		for _, inner := range v.Stmts {
			g.index(inner)
		}
	}
}

// Node returns the first definition of id, if any.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Has reports whether a node definition for id exists, or any edge
// references id. Used by the identifier generator as the collision
// oracle over everything committed so far.
func (g *Graph) Has(id string) bool {
	if _, ok := g.nodes[id]; ok {
		return true
	}
	for _, e := range g.Edges() {
		if e.From == id || e.To == id {
			return true
		}
	}
	return false
}

// Stmts returns the top-level statement list.
func (g *Graph) Stmts() []Stmt { return g.stmts }

// Nodes returns all node definitions in document order, including
// duplicates and nodes nested in clusters or sections.
func (g *Graph) Nodes() []*Node {
	var out []*Node
	g.Walk(func(s Stmt) bool {
		if n, ok := s.(*Node); ok {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Edges returns all edges in document order, including edges nested in
// clusters or sections.
func (g *Graph) Edges() []*Edge {
	var out []*Edge
	g.Walk(func(s Stmt) bool {
		if e, ok := s.(*Edge); ok {
			out = append(out, e)
		}
		return true
	})
	return out
}

// NodeCount returns the number of distinct defined node IDs.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Walk visits every statement depth-first in document order. Returning
// false from fn skips the children of a cluster or section.
func (g *Graph) Walk(fn func(Stmt) bool) {
	walkStmts(g.stmts, fn)
}

func walkStmts(stmts []Stmt, fn func(Stmt) bool) {
	for _, s := range stmts {
		descend := fn(s)
		if !descend {
			continue
		}
		switch v := s.(type) {
		case *Cluster:
			walkStmts(v.Stmts, fn)
		case *Section:
			walkStmts(v.Stmts, fn)
		}
	}
}

// RemoveNodes deletes every node definition whose ID is in ids, and
// every edge touching one of them. The node index is rebuilt.
func (g *Graph) RemoveNodes(ids map[string]bool) {
	if len(ids) == 0 {
		return
	}
	g.stmts = removeStmts(g.stmts, ids)
	g.reindex()
}

func removeStmts(stmts []Stmt, ids map[string]bool) []Stmt {
	out := stmts[:0]
	for _, s := range stmts {
		switch v := s.(type) {
		case *Node:
			if ids[v.ID] {
				continue
			}
		case *Edge:
			if ids[v.From] || ids[v.To] {
				continue
			}
		case *Cluster:
			v.Stmts = removeStmts(v.Stmts, ids)
		case *Section:
			v.Stmts = removeStmts(v.Stmts, ids)
		}
		out = append(out, s)
	}
	return out
}

// RemoveEdgesIf deletes every edge for which pred returns true.
func (g *Graph) RemoveEdgesIf(pred func(*Edge) bool) {
	g.stmts = removeEdges(g.stmts, pred)
}

func removeEdges(stmts []Stmt, pred func(*Edge) bool) []Stmt {
	out := stmts[:0]
	for _, s := range stmts {
		switch v := s.(type) {
		case *Edge:
			if pred(v) {
				continue
			}
		case *Cluster:
			v.Stmts = removeEdges(v.Stmts, pred)
		case *Section:
			v.Stmts = removeEdges(v.Stmts, pred)
		}
		out = append(out, s)
	}
	return out
}

// FilterStmts rebuilds the statement tree keeping only statements for
// which keep returns true. Containers are always descended into and
// kept (possibly emptied).
func (g *Graph) FilterStmts(keep func(Stmt) bool) {
	g.stmts = filterStmts(g.stmts, keep)
	g.reindex()
}

func filterStmts(stmts []Stmt, keep func(Stmt) bool) []Stmt {
	out := stmts[:0]
	for _, s := range stmts {
		switch v := s.(type) {
		case *Cluster:
			v.Stmts = filterStmts(v.Stmts, keep)
			out = append(out, s)
			continue
		case *Section:
			v.Stmts = filterStmts(v.Stmts, keep)
			out = append(out, s)
			continue
		}
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (g *Graph) reindex() {
	g.nodes = make(map[string]*Node)
	g.Walk(func(s Stmt) bool {
		if n, ok := s.(*Node); ok {
			if _, exists := g.nodes[n.ID]; !exists {
				g.nodes[n.ID] = n
			}
		}
		return true
	})
}

// Adjacency returns an undirected neighbour map over all edges.
func (g *Graph) Adjacency() map[string]map[string]bool {
	adj := make(map[string]map[string]bool)
	add := func(a, b string) {
		if adj[a] == nil {
			adj[a] = make(map[string]bool)
		}
		adj[a][b] = true
	}
	for _, e := range g.Edges() {
		add(e.From, e.To)
		add(e.To, e.From)
	}
	return adj
}
