package rewrite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alchemeast/thesugraph/pkg/graph"
	"github.com/alchemeast/thesugraph/pkg/ident"
)

// prune removes filtered placeholders that cannot reach any unfiltered
// node through mediators, then iteratively removes mediators left
// dangling by that, and finally draws dashed edges between surviving
// placeholders that used to be connected through pruned ones.
func (p *Pipeline) prune(g *graph.Graph) {
	defined := map[string]bool{}
	for _, n := range g.Nodes() {
		defined[n.ID] = true
	}
	edges := g.Edges()

	filtered := map[string]bool{}
	mediators := map[string]bool{}
	unfiltered := map[string]bool{}
	for id := range defined {
		switch {
		case strings.HasSuffix(id, "_filtered"):
			filtered[id] = true
		case ident.IsMediator(id):
			mediators[id] = true
		default:
			unfiltered[id] = true
		}
	}
	if len(filtered) == 0 {
		return
	}

	adj := map[string]map[string]bool{}
	link := func(a, b string) {
		if adj[a] == nil {
			adj[a] = map[string]bool{}
		}
		adj[a][b] = true
	}
	for _, e := range edges {
		link(e.From, e.To)
		link(e.To, e.From)
	}

	// A placeholder survives when a mediator-only walk reaches any
	// unfiltered node; other placeholders do not count as bridges.
	keep := map[string]bool{}
	for _, f := range sortedSet(filtered) {
		if reachesUnfiltered(f, adj, mediators, unfiltered) {
			keep[f] = true
		}
	}
	toRemove := map[string]bool{}
	for id := range filtered {
		if !keep[id] {
			toRemove[id] = true
		}
	}

	// Indirect connections are computed before pruning, on the subgraph
	// of placeholders and mediators only.
	indirect := p.indirectConnections(edges, filtered, mediators, keep)

	removedMediators := p.dropDanglingMediators(edges, mediators, unfiltered, keep, toRemove)

	purge := map[string]bool{}
	for id := range toRemove {
		purge[id] = true
	}
	for id := range removedMediators {
		purge[id] = true
	}
	if len(purge) > 0 {
		g.RemoveNodes(purge)
	}

	for _, ie := range indirect {
		e := graph.NewEdge(ie.from, ie.to)
		e.Attrs.Set("style", "dashed")
		e.Attrs.Set("color", "#999999")
		if ie.pruned > 0 {
			e.Attrs.Set("xlabel", fmt.Sprintf("via %d filtered", ie.pruned))
		} else {
			e.Attrs.Set("xlabel", "indirectly connected")
		}
		e.Attrs.Set("fontsize", "9")
		e.Attrs.Set("fontcolor", "#999999")
		g.Append(e)
	}

	p.logger.Debug("pruned exclusion placeholders",
		"removed", len(toRemove),
		"dangling_mediators", len(removedMediators),
		"indirect_edges", len(indirect))
}

func reachesUnfiltered(start string, adj map[string]map[string]bool, mediators, unfiltered map[string]bool) bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, nb := range sortedSet(adj[curr]) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			if unfiltered[nb] {
				return true
			}
			if mediators[nb] {
				queue = append(queue, nb)
			}
		}
	}
	return false
}

type indirectEdge struct {
	from, to string
	pruned   int
}

// indirectConnections walks the placeholder+mediator subgraph and, per
// connected component with two or more surviving placeholders, builds a
// BFS spanning tree over them. Each tree edge records how many pruned
// placeholders sit on the path and votes on a direction from the
// original edge orientations along it.
func (p *Pipeline) indirectConnections(edges []*graph.Edge, filtered, mediators, keep map[string]bool) []indirectEdge {
	if len(keep) < 2 {
		return nil
	}

	restricted := map[string]bool{}
	for id := range filtered {
		restricted[id] = true
	}
	for id := range mediators {
		restricted[id] = true
	}

	rAdj := map[string]map[string]bool{}
	directed := map[[2]string]bool{}
	link := func(a, b string) {
		if rAdj[a] == nil {
			rAdj[a] = map[string]bool{}
		}
		rAdj[a][b] = true
	}
	for _, e := range edges {
		if restricted[e.From] && restricted[e.To] {
			link(e.From, e.To)
			link(e.To, e.From)
			directed[[2]string{e.From, e.To}] = true
		}
	}

	var out []indirectEdge
	compVisited := map[string]bool{}
	for _, start := range sortedSet(filtered) {
		if compVisited[start] {
			continue
		}
		compFiltered := map[string]bool{}
		queue := []string{start}
		compVisited[start] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			if filtered[node] {
				compFiltered[node] = true
			}
			for _, nb := range sortedSet(rAdj[node]) {
				if !compVisited[nb] {
					compVisited[nb] = true
					queue = append(queue, nb)
				}
			}
		}

		keptInComp := map[string]bool{}
		for id := range compFiltered {
			if keep[id] {
				keptInComp[id] = true
			}
		}
		if len(keptInComp) < 2 {
			continue
		}
		out = append(out, spanningTreeEdges(keptInComp, filtered, mediators, rAdj, directed)...)
	}
	return out
}

type chainStep struct {
	node   string
	pruned int
	fwd    int
	bwd    int
}

func spanningTreeEdges(kept, filtered, mediators map[string]bool, rAdj map[string]map[string]bool, directed map[[2]string]bool) []indirectEdge {
	var out []indirectEdge
	root := sortedSet(kept)[0]
	treeVisited := map[string]bool{root: true}
	treeQueue := []string{root}

	for len(treeQueue) > 0 {
		fNode := treeQueue[0]
		treeQueue = treeQueue[1:]

		innerVisited := map[string]bool{fNode: true}
		inner := []chainStep{{node: fNode}}
		for len(inner) > 0 {
			curr := inner[0]
			inner = inner[1:]
			for _, nb := range sortedSet(rAdj[curr.node]) {
				if innerVisited[nb] {
					continue
				}
				innerVisited[nb] = true
				isFwd := directed[[2]string{curr.node, nb}]
				fwd, bwd := curr.fwd, curr.bwd
				if isFwd {
					fwd++
				} else {
					bwd++
				}
				switch {
				case kept[nb]:
					if !treeVisited[nb] {
						treeVisited[nb] = true
						treeQueue = append(treeQueue, nb)
						if fwd >= bwd {
							out = append(out, indirectEdge{from: fNode, to: nb, pruned: curr.pruned})
						} else {
							out = append(out, indirectEdge{from: nb, to: fNode, pruned: curr.pruned})
						}
					}
				case mediators[nb]:
					inner = append(inner, chainStep{node: nb, pruned: curr.pruned, fwd: fwd, bwd: bwd})
				case filtered[nb]:
					inner = append(inner, chainStep{node: nb, pruned: curr.pruned + 1, fwd: fwd, bwd: bwd})
				}
			}
		}
	}
	return out
}

// dropDanglingMediators repeatedly removes mediators that bridge fewer
// than two real nodes, where real means unfiltered or a surviving
// placeholder. A mediator with one direct real neighbour survives only
// when a mediator chain from it reaches a second real node.
func (p *Pipeline) dropDanglingMediators(edges []*graph.Edge, mediators, unfiltered, keep, toRemove map[string]bool) map[string]bool {
	real := map[string]bool{}
	for id := range unfiltered {
		real[id] = true
	}
	for id := range keep {
		real[id] = true
	}

	removed := map[string]bool{}
	for changed := true; changed; {
		changed = false

		adj := map[string]map[string]bool{}
		link := func(a, b string) {
			if adj[a] == nil {
				adj[a] = map[string]bool{}
			}
			adj[a][b] = true
		}
		for _, e := range edges {
			if toRemove[e.From] || toRemove[e.To] || removed[e.From] || removed[e.To] {
				continue
			}
			link(e.From, e.To)
			link(e.To, e.From)
		}

		for _, med := range sortedSet(mediators) {
			if removed[med] {
				continue
			}
			realNeighbours := 0
			hasMediatorNeighbour := false
			for nb := range adj[med] {
				if real[nb] {
					realNeighbours++
				} else if mediators[nb] && !removed[nb] {
					hasMediatorNeighbour = true
				}
			}
			if realNeighbours >= 2 {
				continue
			}
			if realNeighbours == 1 && hasMediatorNeighbour &&
				chainReachesTwoReal(med, adj, mediators, removed, real) {
				continue
			}
			removed[med] = true
			changed = true
		}
	}
	return removed
}

func chainReachesTwoReal(med string, adj map[string]map[string]bool, mediators, removed, real map[string]bool) bool {
	visited := map[string]bool{med: true}
	queue := []string{med}
	reached := map[string]bool{}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for nb := range adj[curr] {
			if visited[nb] || removed[nb] {
				continue
			}
			visited[nb] = true
			if real[nb] {
				reached[nb] = true
			} else if mediators[nb] {
				queue = append(queue, nb)
			}
		}
	}
	return len(reached) >= 2
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
