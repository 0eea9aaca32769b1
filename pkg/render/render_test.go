package render

import (
	"strings"
	"testing"
)

func TestLayoutParamsIncludesEngineSettings(t *testing.T) {
	params := LayoutParams("dot", map[string]any{
		"splines": "ortho",
		"nodesep": 0.25,
		"newrank": true,
	}, InfoBox{XMLName: "corpus", Engine: "dot"})

	for _, want := range []string{
		`splines="ortho"`,
		"nodesep=0.25",
		"newrank=true",
		"labelloc=t",
		"labeljust=l",
		`node [layer="front"];`,
		`edge [layer="back", arrowsize=0.7];`,
		"corpus.xml",
	} {
		if !strings.Contains(params, want) {
			t.Errorf("params missing %q:\n%s", want, params)
		}
	}
}

func TestLayoutParamsFilterSummary(t *testing.T) {
	info := InfoBox{
		XMLName: "corpus",
		Sources: []string{"src.alpha", "src.beta"},
		Filters: FilterSummary{
			MatchingSequences: true,
			Extrinsic:         true,
			Excluded:          []string{"a.1", "a.2"},
			CustomProps:       map[string][]string{"prop.1": {"thesis.1", "thesis.2"}},
			ThesisFocus:       []string{"thesis.9"},
		},
	}
	params := LayoutParams("fdp", nil, info)

	for _, want := range []string{
		"(b) Remove Matching Prop Seq/Phases",
		"(d) Remove 'Extrinsic' Elements",
		"(e) Exclude Elements (2):",
		"(f) Exclude Propositions (by thesis):",
		"Prop prop.1 &rarr; Theses: thesis.1, thesis.2",
		"Thesis Focus: thesis.9",
		"src.alpha<BR/>src.beta",
	} {
		if !strings.Contains(params, want) {
			t.Errorf("params missing %q", want)
		}
	}
	if strings.Contains(params, "(a) Remove All Propositions") {
		t.Error("(a) and (b) are mutually exclusive")
	}
	if strings.Contains(params, "(c)") {
		t.Error("inactive filter (c) should not be listed")
	}
}

func TestLayoutParamsEscapesFilterIDs(t *testing.T) {
	params := LayoutParams("dot", nil, InfoBox{
		Filters: FilterSummary{Excluded: []string{"a<b>"}},
	})
	if strings.Contains(params, "a<b>") {
		t.Error("element IDs must be HTML-escaped in the info box")
	}
	if !strings.Contains(params, "a&lt;b&gt;") {
		t.Error("escaped ID missing from info box")
	}
}

func TestWrapInfoLine(t *testing.T) {
	short := "a, b, c"
	if got := wrapInfoLine(short); got != short {
		t.Errorf("short line should be unchanged, got %q", got)
	}

	long := strings.Repeat("element.id, ", 10) + "last"
	wrapped := wrapInfoLine(long)
	if !strings.Contains(wrapped, "<BR/>") {
		t.Error("long line should be wrapped")
	}
	for _, line := range strings.Split(wrapped, "<BR/>") {
		if len(line) > infoBoxMaxChars {
			t.Errorf("wrapped line exceeds %d chars: %q", infoBoxMaxChars, line)
		}
	}
}

func TestInjectParams(t *testing.T) {
	dot := "digraph sources {\nrankdir=BT;\n\"n1\";\n}\n"
	out := InjectParams(dot, "graph [x=1];")

	header := strings.Index(out, "digraph sources {")
	params := strings.Index(out, "graph [x=1];")
	body := strings.Index(out, "rankdir=BT;")
	if header == -1 || params == -1 || body == -1 {
		t.Fatalf("missing content in output:\n%s", out)
	}
	if !(header < params && params < body) {
		t.Errorf("params not injected after header:\n%s", out)
	}
}

func TestInjectParamsWrapsHeaderlessDOT(t *testing.T) {
	out := InjectParams(`"n1" -> "n2";`, "graph [x=1];")
	if !strings.HasPrefix(out, "digraph G {") {
		t.Errorf("headerless DOT should be wrapped, got:\n%s", out)
	}
}

func TestBumpNodeMargins(t *testing.T) {
	dot := `node [shape=box, margin="0.30,0.1"];`
	out := BumpNodeMargins(dot)
	if !strings.Contains(out, `margin="0.35,0.12"`) {
		t.Errorf("margin not bumped: %s", out)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	svg := []byte(`<?xml version="1.0"?>
<svg width="100pt" height="200pt" viewBox="0.00 0.00 100.00 200.00" xmlns="http://www.w3.org/2000/svg">
<g></g>
</svg>`)
	out := string(normalizeViewBox(svg))
	if !strings.Contains(out, `viewBox="0 0 100.00 200.00"`) {
		t.Errorf("viewBox not normalized: %s", out)
	}
	if !strings.Contains(out, `width="100" height="200"`) {
		t.Errorf("pixel dimensions missing: %s", out)
	}
	if strings.Contains(out, "100pt") {
		t.Errorf("point-based size should be gone: %s", out)
	}
}

func TestNormalizeViewBoxPassThrough(t *testing.T) {
	svg := []byte("<svg>no viewbox</svg>")
	if got := normalizeViewBox(svg); string(got) != string(svg) {
		t.Errorf("svg without viewBox should pass through unchanged")
	}
}

func TestLayoutForDefaultsToDot(t *testing.T) {
	if layoutFor("") != layoutFor("dot") {
		t.Error("empty engine should default to dot")
	}
	if layoutFor("fdp") == layoutFor("dot") {
		t.Error("fdp must select a distinct layout")
	}
}

func TestPrepareCombinesSteps(t *testing.T) {
	e := New(Options{
		Engine:   "dot",
		Settings: map[string]any{"ranksep": 0.30},
		Info:     InfoBox{XMLName: "corpus"},
	})
	dot := "digraph sources {\nnode [margin=\"0.30,0.1\"];\n}\n"
	out := e.Prepare(dot)
	if !strings.Contains(out, `margin="0.35,0.12"`) {
		t.Error("Prepare should bump margins")
	}
	if !strings.Contains(out, "ranksep=0.3") {
		t.Error("Prepare should inject engine settings")
	}
	if !strings.Contains(out, "corpus.xml") {
		t.Error("Prepare should inject the info box")
	}
}

func TestRemapColors(t *testing.T) {
	dot := `n1 [fillcolor="#dae8fc", color="#7c9ac7", label=<<font color='#dae8fc'>x</font>>];`
	out := RemapColors(dot, map[string]string{"#dae8fc": "#e8f0fe"})

	if strings.Contains(out, "#dae8fc") {
		t.Errorf("old color survived remap: %s", out)
	}
	if !strings.Contains(out, `fillcolor="#e8f0fe"`) || !strings.Contains(out, `color='#e8f0fe'`) {
		t.Errorf("remap missed an occurrence: %s", out)
	}
	if !strings.Contains(out, `color="#7c9ac7"`) {
		t.Errorf("unmapped color changed: %s", out)
	}
}

func TestRemapColorsEmptyTable(t *testing.T) {
	dot := `n1 [fillcolor="#dae8fc"];`
	if got := RemapColors(dot, nil); got != dot {
		t.Errorf("nil table should be a no-op, got %s", got)
	}
	if got := RemapColors(dot, map[string]string{"": "#fff", "#abc": ""}); got != dot {
		t.Errorf("empty entries should be ignored, got %s", got)
	}
}
