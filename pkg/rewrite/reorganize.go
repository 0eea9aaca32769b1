package rewrite

import (
	"strings"

	"github.com/alchemeast/thesugraph/pkg/graph"
	"github.com/alchemeast/thesugraph/pkg/ident"
)

// reorganize rebuilds the statement tree grouped by source. Element
// nodes land in their source's section together with their mediators,
// clusters, and attached edges; each proposition is placed next to the
// thesis its first match points at, split evenly before and after when
// a thesis has several. Everything placed is tracked write-once, and
// whatever remains unplaced goes to a catch-all tail so no statement is
// ever lost.
func (p *Pipeline) reorganize(g *graph.Graph) *graph.Graph {
	st := collectReorgState(g)

	out := graph.NewEmpty()
	out.Name = g.Name
	out.Attrs = g.Attrs
	st.out = out

	propsBefore, propsAfter := st.splitPropositions()

	for _, src := range st.sourceOrder {
		sec := &graph.Section{ID: src, Label: src}
		st.section = sec

		for _, n := range st.placeable {
			if st.nodeSource[n.ID] != src || st.placedNodes[n.ID] {
				continue
			}
			if st.isProposition(n.ID) || ident.IsMediator(n.ID) {
				continue
			}
			if n.Kind == graph.KindThesis {
				for _, prop := range propsBefore[n.ID] {
					st.emitProposition(prop)
				}
				st.emitNodeWithAttachments(n)
				for _, prop := range propsAfter[n.ID] {
					st.emitProposition(prop)
				}
				continue
			}
			st.emitNodeWithAttachments(n)
		}

		for _, e := range st.edges {
			if st.placedEdges[e] || st.touchesProposition(e) {
				continue
			}
			// Edges into omitted placeholders trail the graph with the
			// rest of the catch-all.
			if st.omittedIDs[e.From] || st.omittedIDs[e.To] {
				continue
			}
			if st.edgeSource(e) == src {
				st.place(e)
			}
		}

		st.section = nil
		if len(sec.Stmts) > 0 {
			out.Append(sec)
		}
	}

	// Catch-all: unmatched propositions first, then every statement the
	// source grouping did not claim, in original order.
	for _, n := range st.placeable {
		if st.isProposition(n.ID) && !st.placedNodes[n.ID] {
			st.emitProposition(n.ID)
		}
	}
	for _, n := range st.placeable {
		if !st.placedNodes[n.ID] {
			st.place(n)
		}
	}
	for _, cl := range st.clusters {
		if !st.placedClusters[cl.ID] {
			st.placeCluster(cl)
		}
	}
	for _, e := range st.edges {
		if !st.placedEdges[e] {
			st.place(e)
		}
	}
	return out
}

type reorgState struct {
	out     *graph.Graph
	section *graph.Section

	placeable   []*graph.Node // nodes eligible for direct placement, first occurrence
	nodeByID    map[string]*graph.Node
	nodeCluster map[string]*graph.Cluster // ENTAILED wrapper around the node
	clusters    []*graph.Cluster
	edges       []*graph.Edge

	nodeSource  map[string]string
	sourceOrder []string

	propIDs     map[string]bool
	omittedIDs  map[string]bool
	matchThesis map[string]string // matc mediator -> thesis
	propThesis  map[string]string // proposition -> thesis
	propOrder   []string

	funcEdges     map[string][]*graph.Edge
	employedEdges map[string][]*graph.Edge
	xlabelEdges   map[string][]*graph.Edge
	clusterNodes  map[string][]string

	placedNodes    map[string]bool
	placedClusters map[string]bool
	placedEdges    map[*graph.Edge]bool
}

func collectReorgState(g *graph.Graph) *reorgState {
	st := &reorgState{
		nodeByID:       map[string]*graph.Node{},
		nodeCluster:    map[string]*graph.Cluster{},
		nodeSource:     map[string]string{},
		propIDs:        map[string]bool{},
		omittedIDs:     map[string]bool{},
		matchThesis:    map[string]string{},
		propThesis:     map[string]string{},
		funcEdges:      map[string][]*graph.Edge{},
		employedEdges:  map[string][]*graph.Edge{},
		xlabelEdges:    map[string][]*graph.Edge{},
		clusterNodes:   map[string][]string{},
		placedNodes:    map[string]bool{},
		placedClusters: map[string]bool{},
		placedEdges:    map[*graph.Edge]bool{},
	}

	seenSource := map[string]bool{}
	addSource := func(src string) {
		if src != "" && !seenSource[src] {
			seenSource[src] = true
			st.sourceOrder = append(st.sourceOrder, src)
		}
	}

	registerNode := func(n *graph.Node, entailed *graph.Cluster) {
		if _, dup := st.nodeByID[n.ID]; dup {
			return
		}
		st.nodeByID[n.ID] = n
		st.placeable = append(st.placeable, n)
		if entailed != nil {
			st.nodeCluster[n.ID] = entailed
		}
		if n.Kind == graph.KindProposition {
			st.propIDs[n.ID] = true
			st.propOrder = append(st.propOrder, n.ID)
		}
		if n.Attrs.Value("gephi_omitted") == "true" {
			st.omittedIDs[n.ID] = true
		}
		if src := n.Attrs.Value("source"); src != "" {
			st.nodeSource[n.ID] = src
		}
	}

	var walk func(stmts []graph.Stmt, cluster *graph.Cluster)
	walk = func(stmts []graph.Stmt, cluster *graph.Cluster) {
		for _, s := range stmts {
			switch v := s.(type) {
			case *graph.Node:
				switch {
				case cluster == nil:
					registerNode(v, nil)
				case strings.HasSuffix(cluster.ID, "_ENTAILED"):
					registerNode(v, cluster)
				default:
					// Phase nodes stay inside their cluster; only
					// remembered for xlabel edge placement.
					st.clusterNodes[cluster.ID] = append(st.clusterNodes[cluster.ID], v.ID)
				}
			case *graph.Edge:
				if cluster == nil {
					st.edges = append(st.edges, v)
				}
			case *graph.Cluster:
				if cluster == nil {
					st.clusters = append(st.clusters, v)
					walk(v.Stmts, v)
				}
			case *graph.Section:
				addSource(v.ID)
				walk(v.Stmts, cluster)
			}
		}
	}
	walk(g.Stmts(), nil)

	// Sources discovered only through node attributes come after the
	// existing sections.
	for _, n := range st.placeable {
		addSource(st.nodeSource[n.ID])
	}

	for _, e := range st.edges {
		if e.Attrs.Has("xlabel") {
			st.xlabelEdges[e.From] = append(st.xlabelEdges[e.From], e)
		}
		if strings.HasSuffix(e.From, "_func") {
			st.funcEdges[e.From] = append(st.funcEdges[e.From], e)
		}
		if strings.HasSuffix(e.To, "_employed") {
			st.employedEdges[e.To] = append(st.employedEdges[e.To], e)
		}
		// A matc mediator's outgoing edge names the owning thesis.
		if from, ok := st.nodeByID[e.From]; ok && from.Attrs.Value("gephi_label") == "matc" {
			if to, ok := st.nodeByID[e.To]; ok && to.Kind == graph.KindThesis {
				st.matchThesis[e.From] = e.To
			}
		}
	}
	for _, e := range st.edges {
		if st.propIDs[e.From] {
			if thesis, ok := st.matchThesis[e.To]; ok {
				if _, assigned := st.propThesis[e.From]; !assigned {
					st.propThesis[e.From] = thesis
				}
			}
		}
	}
	return st
}

// splitPropositions distributes each thesis's matched propositions:
// the first half (rounding up) goes after the thesis, the rest before.
func (st *reorgState) splitPropositions() (before, after map[string][]string) {
	before = map[string][]string{}
	after = map[string][]string{}
	total := map[string]int{}
	for _, prop := range st.propOrder {
		if thesis, ok := st.propThesis[prop]; ok {
			total[thesis]++
		}
	}
	placedAfter := map[string]int{}
	for _, prop := range st.propOrder {
		thesis, ok := st.propThesis[prop]
		if !ok {
			continue
		}
		if placedAfter[thesis] < (total[thesis]+1)/2 {
			after[thesis] = append(after[thesis], prop)
			placedAfter[thesis]++
		} else {
			before[thesis] = append(before[thesis], prop)
		}
	}
	return before, after
}

func (st *reorgState) isProposition(id string) bool { return st.propIDs[id] }

func (st *reorgState) touchesProposition(e *graph.Edge) bool {
	return st.propIDs[e.From] || st.propIDs[e.To]
}

// edgeSource resolves an edge's source from its endpoints; cross-source
// edges resolve to "" and fall through to the catch-all tail.
func (st *reorgState) edgeSource(e *graph.Edge) string {
	fs, ts := st.nodeSource[e.From], st.nodeSource[e.To]
	switch {
	case fs != "" && ts != "":
		if fs == ts {
			return fs
		}
		return ""
	case fs != "":
		return fs
	default:
		return ts
	}
}

func (st *reorgState) place(s graph.Stmt) {
	switch v := s.(type) {
	case *graph.Node:
		if st.placedNodes[v.ID] {
			return
		}
		st.placedNodes[v.ID] = true
	case *graph.Edge:
		if st.placedEdges[v] {
			return
		}
		st.placedEdges[v] = true
	}
	if st.section != nil {
		st.out.AppendToSection(st.section, s)
	} else {
		st.out.Append(s)
	}
}

func (st *reorgState) placeCluster(cl *graph.Cluster) {
	if st.placedClusters[cl.ID] {
		return
	}
	st.placedClusters[cl.ID] = true
	for _, inner := range cl.Stmts {
		if n, ok := inner.(*graph.Node); ok {
			st.placedNodes[n.ID] = true
		}
	}
	if st.section != nil {
		st.out.AppendToSection(st.section, cl)
	} else {
		st.out.Append(cl)
	}
}

// emitNodeWithAttachments writes a node (inside its ENTAILED wrapper if
// it has one), then its mediators with their edges, then its sequence
// clusters with their anchoring and cross-link edges.
func (st *reorgState) emitNodeWithAttachments(n *graph.Node) {
	if st.placedNodes[n.ID] {
		return
	}
	if wrapper := st.nodeCluster[n.ID]; wrapper != nil {
		st.placeCluster(wrapper)
	} else {
		st.place(n)
	}

	for _, sn := range st.placeable {
		if st.placedNodes[sn.ID] || !ident.IsMediator(sn.ID) {
			continue
		}
		if !strings.HasPrefix(sn.ID, n.ID+"_") && !strings.HasSuffix(sn.ID, "_"+n.ID) {
			continue
		}
		st.place(sn)
		for _, e := range st.funcEdges[sn.ID] {
			st.place(e)
		}
		for _, e := range st.employedEdges[sn.ID] {
			st.place(e)
		}
	}

	prefix := strings.ReplaceAll(n.ID, ".", "_") + "_"
	for _, cl := range st.clusters {
		if st.placedClusters[cl.ID] || strings.HasSuffix(cl.ID, "_ENTAILED") {
			continue
		}
		if !strings.HasPrefix(cl.ID, prefix) {
			continue
		}
		st.placeCluster(cl)
		for _, e := range st.edges {
			if !st.placedEdges[e] && e.From == n.ID && e.Attrs.Value("lhead") == graph.ClusterName(cl.ID) {
				st.place(e)
			}
		}
		for _, member := range st.clusterNodes[cl.ID] {
			for _, e := range st.xlabelEdges[member] {
				st.place(e)
			}
		}
	}
}

// emitProposition writes a proposition with its clusters and every edge
// still touching it.
func (st *reorgState) emitProposition(propID string) {
	n, ok := st.nodeByID[propID]
	if !ok || st.placedNodes[propID] {
		return
	}
	st.emitNodeWithAttachments(n)
	for _, e := range st.edges {
		if !st.placedEdges[e] && (e.From == propID || e.To == propID) {
			st.place(e)
		}
	}
}
