package orient

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/graph"
)

type stubOracle struct {
	pos map[string]Point
	err error
}

func (s stubOracle) Positions(ctx context.Context, dot string) (map[string]Point, error) {
	return s.pos, s.err
}

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func testGraph(edges ...*graph.Edge) *graph.Graph {
	g := graph.New()
	seen := map[string]bool{}
	for _, e := range edges {
		for _, id := range []string{e.From, e.To} {
			if !seen[id] {
				seen[id] = true
				g.Append(graph.NewNode(id, graph.KindThesis))
			}
		}
	}
	for _, e := range edges {
		g.Append(e)
	}
	return g
}

func TestApplyFlipsUpwardEdges(t *testing.T) {
	up := graph.NewEdge("q1.S1", "q1.T1")
	down := graph.NewEdge("q1.T1", "q1.T2")
	g := testGraph(up, down)

	c := New(Options{
		Logger: discardLogger(),
		Oracle: stubOracle{pos: map[string]Point{
			"q1.S1": {X: 1, Y: 2}, // below its target
			"q1.T1": {X: 1, Y: 5},
			"q1.T2": {X: 2, Y: 3},
		}},
	})
	c.Apply(context.Background(), g)

	if got := up.Attrs.Value("dir"); got != "back" {
		t.Errorf("upward edge dir = %q, want back", got)
	}
	if down.Attrs.Has("dir") {
		t.Errorf("downward edge gained dir = %q", down.Attrs.Value("dir"))
	}
}

func TestApplyLeavesExplicitDirectionsAlone(t *testing.T) {
	none := graph.NewEdge("a", "b")
	none.Attrs.Set("dir", "none")
	back := graph.NewEdge("c", "b")
	back.Attrs.Set("dir", "back")
	both := graph.NewEdge("d", "b")
	both.Attrs.Set("dir", "both")
	invis := graph.NewEdge("e", "b")
	invis.Attrs.Set("style", "invis")
	g := testGraph(none, back, both, invis)

	// Every source sits below the shared target, so any eligible edge
	// would flip.
	pos := map[string]Point{
		"a": {Y: 1}, "c": {Y: 1}, "d": {Y: 1}, "e": {Y: 1},
		"b": {Y: 9},
	}
	New(Options{Logger: discardLogger(), Oracle: stubOracle{pos: pos}}).
		Apply(context.Background(), g)

	for _, tc := range []struct {
		name string
		edge *graph.Edge
		want string
	}{
		{"dir none", none, "none"},
		{"dir back", back, "back"},
		{"dir both", both, "both"},
		{"invisible", invis, ""},
	} {
		if got := tc.edge.Attrs.Value("dir"); got != tc.want {
			t.Errorf("%s: dir = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestApplyIsNoOpWhenLayoutFails(t *testing.T) {
	e := graph.NewEdge("q1.S1", "q1.T1")
	g := testGraph(e)

	c := New(Options{
		Logger: discardLogger(),
		Oracle: stubOracle{err: errors.New("layout crashed")},
	})
	c.Apply(context.Background(), g)

	if e.Attrs.Has("dir") {
		t.Errorf("edge gained dir = %q after layout failure", e.Attrs.Value("dir"))
	}
}

func TestApplySkipsEdgesWithoutPositions(t *testing.T) {
	e := graph.NewEdge("q1.S1", "missing")
	g := testGraph(e)

	c := New(Options{
		Logger: discardLogger(),
		Oracle: stubOracle{pos: map[string]Point{"q1.S1": {Y: 1}}},
	})
	c.Apply(context.Background(), g)

	if e.Attrs.Has("dir") {
		t.Errorf("edge with unknown endpoint gained dir = %q", e.Attrs.Value("dir"))
	}
}

func TestParsePlain(t *testing.T) {
	plain := strings.Join([]string{
		`graph 1 8.5 11`,
		`node "q1.T1" 1.25 9.5 1.5 0.5 "THESIS" solid box black white`,
		`node plain 2.5 3 1 0.5 plain solid box black white`,
		`node "has \"quote\"" 4 4 1 0.5 x solid box black white`,
		`edge "q1.T1" plain 4 1.25 9 1.3 8 2 4 2.4 3.2 solid black`,
		`stop`,
	}, "\n")

	pos, err := parsePlain(strings.NewReader(plain))
	if err != nil {
		t.Fatalf("parsePlain: %v", err)
	}
	if len(pos) != 3 {
		t.Fatalf("got %d positions, want 3", len(pos))
	}
	if p := pos["q1.T1"]; p.X != 1.25 || p.Y != 9.5 {
		t.Errorf("q1.T1 at (%v, %v), want (1.25, 9.5)", p.X, p.Y)
	}
	if p := pos["plain"]; p.X != 2.5 || p.Y != 3 {
		t.Errorf("plain at (%v, %v), want (2.5, 3)", p.X, p.Y)
	}
	if _, ok := pos[`has "quote"`]; !ok {
		t.Errorf("quoted name with escape not parsed: %v", pos)
	}
}
