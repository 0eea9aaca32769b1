package rewrite

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
)

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func parseDoc(t *testing.T, src string) *document.Document {
	t.Helper()
	doc, err := document.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func node(g *graph.Graph, id string, kind graph.Kind, attrs ...string) *graph.Node {
	n := graph.NewNode(id, kind)
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs.Set(attrs[i], attrs[i+1])
	}
	g.Append(n)
	return n
}

func edge(g *graph.Graph, from, to string) *graph.Edge {
	e := graph.NewEdge(from, to)
	g.Append(e)
	return e
}

func findEdge(g *graph.Graph, from, to string) *graph.Edge {
	for _, e := range g.Edges() {
		if e.From == from && e.To == to {
			return e
		}
	}
	return nil
}

func TestReconcileLegacyEndpoints(t *testing.T) {
	g := graph.New()
	node(g, "x.q000000001", graph.KindPhase, "original_xml_id", "x.H000001")
	node(g, "x.T1", graph.KindThesis)
	node(g, "y.H000001", graph.KindPhase) // different prefix, same legacy suffix
	edge(g, "x.T1", "x.H000001")          // full legacy reference
	edge(g, "z.H000001", "x.T1")          // suffix-only legacy reference

	New(Options{Logger: discardLogger()}).reconcile(g)

	if findEdge(g, "x.T1", "x.q000000001") == nil {
		t.Error("full legacy endpoint not rewritten")
	}
	if findEdge(g, "z.q000000001", "x.T1") == nil {
		t.Error("suffix legacy endpoint not rewritten")
	}
	n, _ := g.Node("x.q000000001")
	if n.Attrs.Has("original_xml_id") {
		t.Error("original_xml_id attribute not stripped")
	}
}

func TestValidateRedirectsToAncestorThesis(t *testing.T) {
	doc := parseDoc(t, `<corpus xmlns="http://alchemeast.eu/thesu/ns/1.0">
		<THESIS xml:id="q1.T1">
			<sequence xml:id="q1.T1.seq"/>
		</THESIS>
	</corpus>`)

	g := graph.New()
	node(g, "q1.T1", graph.KindThesis)
	node(g, "q1.S1", graph.KindSupport)
	edge(g, "q1.S1", "q1.T1.seq") // target undefined, inside the thesis
	edge(g, "q1.T1", "q1.T1.seq") // becomes a self-loop after redirect
	edge(g, "q1.S1", "nowhere")   // unresolvable

	New(Options{Logger: discardLogger(), Doc: doc}).validate(g)

	if findEdge(g, "q1.S1", "q1.T1") == nil {
		t.Error("missing endpoint not redirected to ancestor thesis")
	}
	if findEdge(g, "q1.T1", "q1.T1") != nil {
		t.Error("self-loop survived redirection")
	}
	if findEdge(g, "q1.S1", "nowhere") != nil {
		t.Error("unresolvable edge not dropped")
	}
}

func TestValidateSubstitutesFilteredPlaceholder(t *testing.T) {
	g := graph.New()
	node(g, "q1.S1", graph.KindSupport)
	edge(g, "q1.S1", "q1.T9")

	p := New(Options{Logger: discardLogger(), Exclude: []string{"q1.T9"}})
	p.validate(g)

	if findEdge(g, "q1.S1", "q1.T9_filtered") == nil {
		t.Fatal("edge not rewired to the filtered placeholder")
	}
	ph, ok := g.Node("q1.T9_filtered")
	if !ok {
		t.Fatal("placeholder definition not appended")
	}
	if ph.Attrs.Value("gephi_filtered") != "true" {
		t.Error("placeholder missing gephi_filtered marker")
	}
	if ph.Attrs.Value("gephi_label") != "THES" {
		t.Errorf("placeholder type = %q, want THES (inferred from T-prefixed ID)", ph.Attrs.Value("gephi_label"))
	}
	if ph.Attrs.Value("source") != "q1" {
		t.Errorf("placeholder source = %q, want q1", ph.Attrs.Value("source"))
	}
	if !strings.Contains(ph.Attrs.Value("label"), "(filtered)") {
		t.Errorf("placeholder label = %q", ph.Attrs.Value("label"))
	}
}

func TestInferElementType(t *testing.T) {
	tests := []struct{ id, want string }{
		{"q1.T190127", "THESIS"},
		{"q1.S184328", "SUPPORT"},
		{"q1.M1", "THESIS"},
		{"bare", "THESIS"},
	}
	for _, tt := range tests {
		if got := inferElementType(tt.id); got != tt.want {
			t.Errorf("inferElementType(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestPruneRemovesUnreachablePlaceholders(t *testing.T) {
	g := graph.New()
	node(g, "q1.T1", graph.KindThesis)
	node(g, "q1.T2_filtered", graph.KindFilteredPlaceholder)
	node(g, "q1.T3_filtered", graph.KindFilteredPlaceholder)
	node(g, "q1.T2_to_q1.T1_1", graph.KindMediator)
	node(g, "q1.T3_to_q1.T2_1", graph.KindMediator)
	// T2_filtered reaches the real thesis through its mediator.
	edge(g, "q1.T2_filtered", "q1.T2_to_q1.T1_1")
	edge(g, "q1.T2_to_q1.T1_1", "q1.T1")
	// T3_filtered only reaches another placeholder.
	edge(g, "q1.T3_filtered", "q1.T3_to_q1.T2_1")
	edge(g, "q1.T3_to_q1.T2_1", "q1.T2_filtered")

	p := New(Options{Logger: discardLogger(), Exclude: []string{"q1.T2", "q1.T3"}})
	p.prune(g)

	if _, ok := g.Node("q1.T2_filtered"); !ok {
		t.Error("connected placeholder was pruned")
	}
	if _, ok := g.Node("q1.T3_filtered"); ok {
		t.Error("unreachable placeholder survived")
	}
	if _, ok := g.Node("q1.T3_to_q1.T2_1"); ok {
		t.Error("dangling mediator survived")
	}
	if _, ok := g.Node("q1.T2_to_q1.T1_1"); !ok {
		t.Error("bridging mediator was removed")
	}
}

func TestPruneDrawsIndirectEdges(t *testing.T) {
	// A -- m1 -- F1 -- m2 -- F2 -- m3 -- F3 -- m4 -- B
	// F2 cannot reach a real node through mediators alone, so it is
	// pruned; F1 and F3 get a dashed edge noting the pruned hop.
	g := graph.New()
	node(g, "q1.T1", graph.KindThesis)
	node(g, "q1.T9", graph.KindThesis)
	node(g, "q1.A2_filtered", graph.KindFilteredPlaceholder)
	node(g, "q1.A3_filtered", graph.KindFilteredPlaceholder)
	node(g, "q1.A4_filtered", graph.KindFilteredPlaceholder)
	node(g, "q1.A2_to_q1.T1_1", graph.KindMediator)
	node(g, "q1.A3_to_q1.A2_1", graph.KindMediator)
	node(g, "q1.A4_to_q1.A3_1", graph.KindMediator)
	node(g, "q1.A4_to_q1.T9_1", graph.KindMediator)
	edge(g, "q1.A2_filtered", "q1.A2_to_q1.T1_1")
	edge(g, "q1.A2_to_q1.T1_1", "q1.T1")
	edge(g, "q1.A3_filtered", "q1.A3_to_q1.A2_1")
	edge(g, "q1.A3_to_q1.A2_1", "q1.A2_filtered")
	edge(g, "q1.A4_filtered", "q1.A4_to_q1.A3_1")
	edge(g, "q1.A4_to_q1.A3_1", "q1.A3_filtered")
	edge(g, "q1.A4_filtered", "q1.A4_to_q1.T9_1")
	edge(g, "q1.A4_to_q1.T9_1", "q1.T9")

	p := New(Options{Logger: discardLogger(), Exclude: []string{"q1.A2", "q1.A3", "q1.A4"}})
	p.prune(g)

	if _, ok := g.Node("q1.A3_filtered"); ok {
		t.Fatal("middle placeholder should be pruned")
	}

	var dashed *graph.Edge
	for _, e := range g.Edges() {
		if e.Attrs.Value("style") == "dashed" && e.Attrs.Value("color") == "#999999" {
			dashed = e
		}
	}
	if dashed == nil {
		t.Fatal("no indirect dashed edge drawn")
	}
	if got := dashed.Attrs.Value("xlabel"); got != "via 1 filtered" {
		t.Errorf("xlabel = %q, want via 1 filtered", got)
	}
	ends := dashed.From + " " + dashed.To
	if !strings.Contains(ends, "q1.A2_filtered") || !strings.Contains(ends, "q1.A4_filtered") {
		t.Errorf("indirect edge connects %s -> %s", dashed.From, dashed.To)
	}
}

func TestDedupeKeepsFirstOccurrence(t *testing.T) {
	g := graph.New()
	node(g, "q1.T1", graph.KindThesis, "shape", "box")
	node(g, "q1.T1", graph.KindThesis, "shape", "box")
	edge(g, "q1.T1", "q1.T2")
	edge(g, "q1.T1", "q1.T2")

	New(Options{Logger: discardLogger()}).dedupe(g)

	nodes := 0
	for _, n := range g.Nodes() {
		if n.ID == "q1.T1" {
			nodes++
		}
	}
	if nodes != 1 {
		t.Errorf("duplicate node definitions = %d, want 1", nodes)
	}
	if len(g.Edges()) != 1 {
		t.Errorf("edges = %d, want 1", len(g.Edges()))
	}
}

func TestReorganizeGroupsBySource(t *testing.T) {
	g := graph.New()
	node(g, "q1.T1", graph.KindThesis, "source", "q1", "gephi_label", "THES")
	node(g, "q1.M1", graph.KindMisc, "source", "q1", "gephi_label", "MISC")
	node(g, "q1.P1", graph.KindProposition, "gephi_label", "PROP")
	node(g, "q1.P1_to_q1.T1_1", graph.KindMediator, "gephi_label", "matc")
	edge(g, "q1.P1", "q1.P1_to_q1.T1_1")
	edge(g, "q1.P1_to_q1.T1_1", "q1.T1")

	out := New(Options{Logger: discardLogger()}).reorganize(g)

	var sec *graph.Section
	for _, s := range out.Stmts() {
		if v, ok := s.(*graph.Section); ok && v.ID == "q1" {
			sec = v
		}
	}
	if sec == nil {
		t.Fatal("no section for source q1")
	}

	var order []string
	for _, s := range sec.Stmts {
		if n, ok := s.(*graph.Node); ok {
			order = append(order, n.ID)
		}
	}
	// The proposition trails its matched thesis, ahead of the misc.
	want := []string{"q1.T1", "q1.P1", "q1.P1_to_q1.T1_1", "q1.M1"}
	if len(order) != len(want) {
		t.Fatalf("section nodes = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("section nodes = %v, want %v", order, want)
		}
	}
	if out.NodeCount() != g.NodeCount() {
		t.Errorf("reorganize lost nodes: %d vs %d", out.NodeCount(), g.NodeCount())
	}
	if len(out.Edges()) != 2 {
		t.Errorf("edges = %d, want 2", len(out.Edges()))
	}
}

func TestReorganizeSplitsPropositionsAroundThesis(t *testing.T) {
	g := graph.New()
	node(g, "q1.T1", graph.KindThesis, "source", "q1")
	for _, p := range []string{"q1.P1", "q1.P2", "q1.P3"} {
		node(g, p, graph.KindProposition)
		mid := p + "_to_q1.T1_1"
		node(g, mid, graph.KindMediator, "gephi_label", "matc")
		edge(g, p, mid)
		edge(g, mid, "q1.T1")
	}

	out := New(Options{Logger: discardLogger()}).reorganize(g)

	var sec *graph.Section
	for _, s := range out.Stmts() {
		if v, ok := s.(*graph.Section); ok && v.ID == "q1" {
			sec = v
		}
	}
	if sec == nil {
		t.Fatal("no section for source q1")
	}

	pos := map[string]int{}
	i := 0
	for _, s := range sec.Stmts {
		if n, ok := s.(*graph.Node); ok {
			pos[n.ID] = i
			i++
		}
	}
	// Two propositions after (rounding up), one before.
	if !(pos["q1.P3"] < pos["q1.T1"]) {
		t.Errorf("q1.P3 at %d should precede the thesis at %d", pos["q1.P3"], pos["q1.T1"])
	}
	if !(pos["q1.T1"] < pos["q1.P1"] && pos["q1.T1"] < pos["q1.P2"]) {
		t.Errorf("q1.P1/q1.P2 should follow the thesis: %v", pos)
	}
}

func TestRunPreservesHeaderAndExcludesEndToEnd(t *testing.T) {
	doc := parseDoc(t, `<corpus xmlns="http://alchemeast.eu/thesu/ns/1.0">
		<source id="q1"><AEsystem>
			<THESIS xml:id="q1.T1"/>
			<THESIS xml:id="q1.T2"/>
		</AEsystem></source>
	</corpus>`)

	g := graph.New()
	node(g, "q1.T1", graph.KindThesis, "source", "q1")
	node(g, "q1.T2", graph.KindThesis, "source", "q1")
	node(g, "q1.T2_to_q1.T1_1", graph.KindMediator)
	edge(g, "q1.T2", "q1.T2_to_q1.T1_1")
	edge(g, "q1.T2_to_q1.T1_1", "q1.T1")

	out := New(Options{
		Logger:  discardLogger(),
		Doc:     doc,
		Exclude: []string{"q1.T2"},
	}).Run(g)

	if !out.Attrs.Has("compound") {
		t.Error("header attributes lost across reorganization")
	}
	if _, ok := out.Node("q1.T2"); ok {
		t.Error("excluded node definition survived")
	}
	ph, ok := out.Node("q1.T2_filtered")
	if !ok {
		t.Fatal("no filtered placeholder for the excluded thesis")
	}
	if ph.Attrs.Value("gephi_label") != "THES" {
		t.Errorf("placeholder type = %q, want THES", ph.Attrs.Value("gephi_label"))
	}
	if findEdge(out, "q1.T2_filtered", "q1.T2_to_q1.T1_1") == nil {
		t.Error("edge into mediator not rewired to the placeholder")
	}
}
