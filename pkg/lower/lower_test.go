package lower

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/corpus"
	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
)

func discardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func loadCorpus(t *testing.T, src string) *corpus.Corpus {
	t.Helper()
	doc, err := document.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return corpus.New(doc, corpus.LoadOptions{BaseDir: t.TempDir()})
}

const fixtureXML = `<corpus xmlns="http://alchemeast.eu/thesu/ns/1.0">
  <source id="q1" ref="x.xml">
    <AEsystem>
      <THESIS xml:id="q1.T1">
        <entailment>
          <entailedBy ref="#q1.T2" entailedAs="#implication"/>
        </entailment>
        <matchingPropositionsGroup>
          <matchingProposition propRef="#q1.P1" extended="true"/>
        </matchingPropositionsGroup>
        <thesisType>
          <sequencesGroup>
            <sequence xml:id="q1.T1.s1">
              <phasesGroup>
                <phase><paraphrasis>first step</paraphrasis></phase>
                <phase><paraphrasis>second step</paraphrasis></phase>
              </phasesGroup>
            </sequence>
          </sequencesGroup>
        </thesisType>
      </THESIS>
      <THESIS xml:id="q1.T2"/>
      <SUPPORT xml:id="q1.S1">
        <supportType>
          <supportFunctionsGroup>
            <argumentation for="rej" rank="1"/>
            <exposition rank="2"/>
          </supportFunctionsGroup>
          <targetsGroup>
            <target ref="#q1.T1"/>
            <omittedTargets>
              <omittedTHESES number="2"/>
            </omittedTargets>
          </targetsGroup>
          <employedElements>
            <elementRef ref="#q1.M1"/>
          </employedElements>
        </supportType>
      </SUPPORT>
      <MISC xml:id="q1.M1" extrinsic="true"/>
    </AEsystem>
  </source>
  <PROPOSITION id="q1.P1">
    <propositionType>
      <sequencesGroup>
        <sequence xml:id="q1.P1.s1">
          <phasesGroup>
            <newPhases>
              <phase><paraphrasis>claim part one</paraphrasis></phase>
              <phase><paraphrasis>claim part two</paraphrasis></phase>
            </newPhases>
          </phasesGroup>
        </sequence>
      </sequencesGroup>
    </propositionType>
  </PROPOSITION>
</corpus>`

func lowerFixture(t *testing.T) *graph.Graph {
	t.Helper()
	c := loadCorpus(t, fixtureXML)
	return Lower(c, Options{Logger: discardLogger()})
}

func mustNode(t *testing.T, g *graph.Graph, id string) *graph.Node {
	t.Helper()
	n, ok := g.Node(id)
	if !ok {
		t.Fatalf("node %q not in graph", id)
	}
	return n
}

func findEdge(g *graph.Graph, from, to string) *graph.Edge {
	for _, e := range g.Edges() {
		if e.From == from && e.To == to {
			return e
		}
	}
	return nil
}

func TestLowerThesisNode(t *testing.T) {
	g := lowerFixture(t)
	n := mustNode(t, g, "q1.T2")

	if n.Kind != graph.KindThesis {
		t.Errorf("kind = %v, want thesis", n.Kind)
	}
	checks := map[string]string{
		"gephi_label":   "THES",
		"shape":         "box",
		"fillcolor":     thesisFill,
		"color":         thesisBorder,
		"style":         "rounded,filled",
		"manifestation": "explicit",
		"source":        "q1",
		"margin":        "0.30,0.1",
	}
	for attr, want := range checks {
		if got := n.Attrs.Value(attr); got != want {
			t.Errorf("%s = %q, want %q", attr, got, want)
		}
	}
}

func TestLowerSourceSection(t *testing.T) {
	g := lowerFixture(t)

	var sec *graph.Section
	for _, s := range g.Stmts() {
		if v, ok := s.(*graph.Section); ok && v.ID == "q1" {
			sec = v
		}
	}
	if sec == nil {
		t.Fatal("no section for source q1")
	}
	if sec.Label != "q1" {
		t.Errorf("section label = %q, want q1", sec.Label)
	}
	if len(sec.Stmts) == 0 {
		t.Error("source section is empty")
	}
}

func TestLowerEntailment(t *testing.T) {
	g := lowerFixture(t)

	m := mustNode(t, g, "q1.T2_to_q1.T1_1")
	if m.Attrs.Value("shape") != "house" {
		t.Errorf("mediator shape = %q, want house", m.Attrs.Value("shape"))
	}
	if !strings.Contains(m.Attrs.Value("label"), "ENTAILS") {
		t.Errorf("mediator label = %q, want ENTAILS phrase", m.Attrs.Value("label"))
	}
	if !strings.Contains(m.Attrs.Value("label"), "implication") {
		t.Errorf("mediator label = %q, want entailedAs mode", m.Attrs.Value("label"))
	}

	in := findEdge(g, "q1.T2", "q1.T2_to_q1.T1_1")
	if in == nil {
		t.Fatal("missing edge from entailing thesis into mediator")
	}
	if !in.Undirected() {
		t.Error("edge into mediator should carry dir=none")
	}
	if out := findEdge(g, "q1.T2_to_q1.T1_1", "q1.T1"); out == nil {
		t.Error("missing edge from mediator to entailed thesis")
	} else if out.Undirected() {
		t.Error("edge out of mediator should stay directed")
	}

	// The entailed thesis sits in its own dotted cluster.
	var cluster *graph.Cluster
	g.Walk(func(s graph.Stmt) bool {
		if v, ok := s.(*graph.Cluster); ok && v.ID == "q1_T1_ENTAILED" {
			cluster = v
		}
		return true
	})
	if cluster == nil {
		t.Fatal("no ENTAILED cluster around q1.T1")
	}
	if cluster.Attrs.Value("style") != "dotted" {
		t.Errorf("cluster style = %q, want dotted", cluster.Attrs.Value("style"))
	}
}

func TestLowerSupportFunction(t *testing.T) {
	g := lowerFixture(t)

	// argumentation for="rej" outranks exposition.
	fn := mustNode(t, g, "q1.S1_func")
	if got := fn.Attrs.Value("label"); got != FuncRefutes {
		t.Errorf("function label = %q, want %q", got, FuncRefutes)
	}
	if got := fn.Attrs.Value("gephi_label"); got != "ref" {
		t.Errorf("function gephi tag = %q, want ref", got)
	}

	anchor := findEdge(g, "q1.S1", "q1.S1_func")
	if anchor == nil {
		t.Fatal("missing support-to-function edge")
	}
	if !anchor.Undirected() {
		t.Error("support-to-function edge should carry dir=none")
	}
	if findEdge(g, "q1.S1_func", "q1.T1") == nil {
		t.Error("missing function-to-target edge")
	}

	sup := mustNode(t, g, "q1.S1")
	if got := sup.Attrs.Value("fillcolor"); got != functionStyles[FuncRefutes][false].Fill {
		t.Errorf("support fill = %q, want the REFUTES fill", got)
	}
	if got := sup.Attrs.Value("shape"); got != "ellipse" {
		t.Errorf("support shape = %q, want ellipse", got)
	}
}

func TestLowerOmittedTargets(t *testing.T) {
	g := lowerFixture(t)

	for _, id := range []string{
		"q1.S1_to_omitted_TARGET_THESIS_1",
		"q1.S1_to_omitted_TARGET_THESIS_2",
	} {
		n := mustNode(t, g, id)
		if n.Attrs.Value("gephi_omitted") != "true" {
			t.Errorf("%s: gephi_omitted = %q, want true", id, n.Attrs.Value("gephi_omitted"))
		}
		if n.Attrs.Value("fillcolor") != thesisFill {
			t.Errorf("%s: fill = %q, want the thesis fill", id, n.Attrs.Value("fillcolor"))
		}
		if n.Attrs.Value("gephi_unspecified") != "" {
			t.Errorf("%s: counted placeholders are not unspecified", id)
		}
		if findEdge(g, "q1.S1_func", id) == nil {
			t.Errorf("%s: missing function-to-placeholder edge", id)
		}
	}
}

func TestLowerEmployedElements(t *testing.T) {
	g := lowerFixture(t)

	em := mustNode(t, g, "q1.S1_employed")
	if got := em.Attrs.Value("label"); got != "EMPLOYED IN" {
		t.Errorf("label = %q, want EMPLOYED IN", got)
	}

	if e := findEdge(g, "q1.S1_employed", "q1.S1"); e == nil {
		t.Error("missing employed-to-support edge")
	} else if e.Undirected() {
		t.Error("employed-to-support edge should stay directed")
	}
	if e := findEdge(g, "q1.M1", "q1.S1_employed"); e == nil {
		t.Error("missing employed element edge")
	} else if !e.Undirected() {
		t.Error("employed element edge should carry dir=none")
	}
}

func TestLowerMiscNode(t *testing.T) {
	g := lowerFixture(t)
	n := mustNode(t, g, "q1.M1")

	checks := map[string]string{
		"gephi_label":   "MISC",
		"shape":         "cylinder",
		"manifestation": "extrinsic",
		"fillcolor":     miscMutedFill,
		"style":         "dashed,filled",
	}
	for attr, want := range checks {
		if got := n.Attrs.Value(attr); got != want {
			t.Errorf("%s = %q, want %q", attr, got, want)
		}
	}
	if n.Attrs.Has("paraphrasis") {
		t.Error("misc nodes carry no paraphrasis attribute")
	}
	if !strings.Contains(n.Attrs.Value("label"), "extr. MISC") {
		t.Errorf("label = %q, want extr. prefix", n.Attrs.Value("label"))
	}
}

func TestLowerProposition(t *testing.T) {
	g := lowerFixture(t)

	p := mustNode(t, g, "q1.P1")
	if p.Attrs.Value("shape") != "doubleoctagon" {
		t.Errorf("shape = %q, want doubleoctagon", p.Attrs.Value("shape"))
	}
	if p.Attrs.Value("gephi_label") != "PROP" {
		t.Errorf("gephi_label = %q, want PROP", p.Attrs.Value("gephi_label"))
	}

	// Phase IDs derive from the sequence xml:id with a zero-padded
	// counter.
	first := mustNode(t, g, "q1.P1.s1001")
	if first.Attrs.Value("phase_number") != "1" {
		t.Errorf("phase_number = %q, want 1", first.Attrs.Value("phase_number"))
	}
	mustNode(t, g, "q1.P1.s1002")

	chain := findEdge(g, "q1.P1.s1001", "q1.P1.s1002")
	if chain == nil {
		t.Fatal("missing phase chain edge")
	}
	if !chain.Undirected() {
		t.Error("phase chain edges carry dir=none")
	}

	head := findEdge(g, "q1.P1", "q1.P1.s1001")
	if head == nil {
		t.Fatal("missing proposition-to-first-phase edge")
	}
	if got := head.Attrs.Value("lhead"); got != "cluster_q1_P1_q1_P1_s1" {
		t.Errorf("lhead = %q, want cluster_q1_P1_q1_P1_s1", got)
	}
}

func TestLowerMatchingProposition(t *testing.T) {
	g := lowerFixture(t)

	m := mustNode(t, g, "q1.P1_to_q1.T1_1")
	if m.Attrs.Value("gephi_label") != "matc" {
		t.Errorf("gephi_label = %q, want matc", m.Attrs.Value("gephi_label"))
	}
	if !strings.Contains(m.Attrs.Value("label"), "extending") {
		t.Errorf("label = %q, want the extending qualifier", m.Attrs.Value("label"))
	}

	// Match edges come last in emission order.
	edges := g.Edges()
	if len(edges) < 2 {
		t.Fatal("too few edges")
	}
	last, prev := edges[len(edges)-1], edges[len(edges)-2]
	if prev.From != "q1.P1" || prev.To != "q1.P1_to_q1.T1_1" {
		t.Errorf("second-to-last edge = %s -> %s, want q1.P1 -> mediator", prev.From, prev.To)
	}
	if last.From != "q1.P1_to_q1.T1_1" || last.To != "q1.T1" {
		t.Errorf("last edge = %s -> %s, want mediator -> q1.T1", last.From, last.To)
	}
}

func TestLowerThesisSequence(t *testing.T) {
	g := lowerFixture(t)

	mustNode(t, g, "q1.T1.s1001")
	mustNode(t, g, "q1.T1.s1002")

	head := findEdge(g, "q1.T1", "q1.T1.s1001")
	if head == nil {
		t.Fatal("missing thesis-to-first-phase edge")
	}
	if got := head.Attrs.Value("lhead"); got != "cluster_q1_T1_q1_T1_s1" {
		t.Errorf("lhead = %q, want cluster_q1_T1_q1_T1_s1", got)
	}

	chain := findEdge(g, "q1.T1.s1001", "q1.T1.s1002")
	if chain == nil {
		t.Fatal("missing phase chain edge")
	}
	if got := chain.Attrs.Value("style"); got != "solid" {
		t.Errorf("explicit thesis chain style = %q, want solid", got)
	}
}

func TestLowerIsDeterministic(t *testing.T) {
	a, b := lowerFixture(t), lowerFixture(t)
	if a.NodeCount() != b.NodeCount() {
		t.Fatalf("node counts differ: %d vs %d", a.NodeCount(), b.NodeCount())
	}
	an, bn := a.Nodes(), b.Nodes()
	for i := range an {
		if an[i].ID != bn[i].ID {
			t.Fatalf("node order differs at %d: %q vs %q", i, an[i].ID, bn[i].ID)
		}
	}
}

func TestSupportFunctionRanking(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{
			name: "argumentation accepts by default",
			xml:  `<supportFunctionsGroup><argumentation/></supportFunctionsGroup>`,
			want: FuncJustifies,
		},
		{
			name: "argumentation rejecting",
			xml:  `<supportFunctionsGroup><argumentation for="rej"/></supportFunctionsGroup>`,
			want: FuncRefutes,
		},
		{
			name: "argumentation mixed",
			xml:  `<supportFunctionsGroup><argumentation for="mix"/></supportFunctionsGroup>`,
			want: FuncDiscusses,
		},
		{
			name: "lowest rank wins",
			xml: `<supportFunctionsGroup>
				<exposition rank="2"/>
				<contextualization rank="1"/>
			</supportFunctionsGroup>`,
			want: FuncContextualizes,
		},
		{
			name: "unranked loses to ranked",
			xml: `<supportFunctionsGroup>
				<expansion/>
				<exposition rank="3"/>
			</supportFunctionsGroup>`,
			want: FuncExplains,
		},
		{
			name: "no functions",
			xml:  `<supportFunctionsGroup/>`,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := document.Parse(strings.NewReader(
				`<SUPPORT xmlns="http://alchemeast.eu/thesu/ns/1.0">` + tt.xml + `</SUPPORT>`))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := supportFunction(doc.Root); got != tt.want {
				t.Errorf("supportFunction() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDominantOmittedFunction(t *testing.T) {
	doc, err := document.Parse(strings.NewReader(
		`<omittedSUPPORTS xmlns="http://alchemeast.eu/thesu/ns/1.0">
			<omittedSupportsFunctions omittedExpansionRank="1" omittedArgumentationRank="2"/>
		</omittedSUPPORTS>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := dominantOmittedFunction(doc.Root); got != FuncExpandsOn {
		t.Errorf("dominantOmittedFunction() = %q, want %q", got, FuncExpandsOn)
	}

	doc, err = document.Parse(strings.NewReader(
		`<omittedSUPPORTS xmlns="http://alchemeast.eu/thesu/ns/1.0"/>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := dominantOmittedFunction(doc.Root); got != FuncJustifies {
		t.Errorf("default dominant function = %q, want %q", got, FuncJustifies)
	}
}

func TestParsePhasesRef(t *testing.T) {
	tests := []struct {
		ref  string
		want map[int][]int
	}{
		{"", map[int][]int{}},
		{"/", map[int][]int{}},
		{"2", map[int][]int{2: {}}},
		{"1.1", map[int][]int{1: {1}}},
		{"1.1,1.3", map[int][]int{1: {1, 3}}},
		{"1.4-5", map[int][]int{1: {4, 5}}},
		{"1.4-1.6", map[int][]int{1: {4, 5, 6}}},
		{"2-4", map[int][]int{2: {}, 3: {}, 4: {}}},
		{"1.1,1.4-5,2", map[int][]int{1: {1, 4, 5}, 2: {}}},
		{"bogus,1.2", map[int][]int{1: {2}}},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got := ParsePhasesRef(tt.ref)
			if len(got) != len(tt.want) {
				t.Fatalf("ParsePhasesRef(%q) = %v, want %v", tt.ref, got, tt.want)
			}
			for group, phases := range tt.want {
				gp, ok := got[group]
				if !ok || len(gp) != len(phases) {
					t.Fatalf("group %d = %v, want %v", group, gp, phases)
				}
				for i := range phases {
					if gp[i] != phases[i] {
						t.Errorf("group %d phase %d = %d, want %d", group, i, gp[i], phases[i])
					}
				}
			}
		})
	}
}

func TestMatchEdgeLabel(t *testing.T) {
	doc, err := document.Parse(strings.NewReader(
		`<matchingPropositionPhases xmlns="http://alchemeast.eu/thesu/ns/1.0" quoted="true" altered="true"/>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	label, gephi := matchEdgeLabel(doc.Root)
	if label != "is quoted in,<br/>alters" {
		t.Errorf("label = %q", label)
	}
	if gephi != "alts" {
		t.Errorf("gephi tag = %q, want alts", gephi)
	}

	doc, err = document.Parse(strings.NewReader(
		`<matchingPropositionPhases xmlns="http://alchemeast.eu/thesu/ns/1.0"/>`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	label, gephi = matchEdgeLabel(doc.Root)
	if label != "matches" || gephi != "matc" {
		t.Errorf("default label/tag = %q/%q, want matches/matc", label, gephi)
	}
}
