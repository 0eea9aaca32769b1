package render

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"
)

// infoBoxMaxChars caps a single info-box line before wrapping.
const infoBoxMaxChars = 55

// InfoBox describes the run configuration panel drawn at the top-left
// of every rendered graph.
type InfoBox struct {
	// XMLName is the corpus document base name.
	XMLName string

	// Sources lists the selected source IDs, empty meaning all.
	Sources []string

	// Engine is the layout engine in use.
	Engine string

	Filters FilterSummary
}

// FilterSummary mirrors the active document filters for display.
type FilterSummary struct {
	Propositions      bool
	MatchingSequences bool
	AllSequences      bool
	Extrinsic         bool
	Excluded          []string
	CustomProps       map[string][]string
	CustomSeqs        map[string][]string
	ThesisFocus       []string
}

// LayoutParams renders the graph-level parameter block injected into
// the DOT text before layout: the info-box label plus the engine's
// parameter table, followed by node/edge layering defaults.
func LayoutParams(engine string, settings map[string]any, info InfoBox) string {
	rows := []string{}
	if info.XMLName != "" {
		rows = append(rows, fmt.Sprintf(`<TR><TD ALIGN="LEFT">XML File:</TD><TD ALIGN="LEFT">%s.xml</TD></TR>`, html.EscapeString(info.XMLName)))
	}
	if len(info.Sources) > 0 {
		escaped := make([]string, len(info.Sources))
		for i, s := range info.Sources {
			escaped[i] = html.EscapeString(s)
		}
		rows = append(rows, fmt.Sprintf(`<TR><TD ALIGN="LEFT" VALIGN="TOP">Sources:</TD><TD ALIGN="LEFT">%s</TD></TR>`, strings.Join(escaped, "<BR/>")))
	}
	rows = append(rows, fmt.Sprintf(`<TR><TD ALIGN="LEFT">Engine:</TD><TD ALIGN="LEFT">%s</TD></TR>`, engine))

	if filterLines := info.Filters.lines(); len(filterLines) > 0 {
		rows = append(rows, fmt.Sprintf(`<TR><TD ALIGN="LEFT" VALIGN="TOP">Active Filters:</TD><TD ALIGN="LEFT">%s</TD></TR>`, strings.Join(filterLines, "<BR/>")))
	}

	keys := sortedKeys(settings)
	paramLines := make([]string, 0, len(keys))
	for _, k := range keys {
		paramLines = append(paramLines, fmt.Sprintf("%s = %v", k, settings[k]))
	}
	rows = append(rows, fmt.Sprintf(`<TR><TD ALIGN="LEFT" VALIGN="TOP">Parameters:</TD><TD ALIGN="LEFT">%s</TD></TR>`, strings.Join(paramLines, "<BR/>")))

	table := `<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0" CELLPADDING="6" WIDTH="400">` +
		strings.Join(rows, "") + `</TABLE>`

	var b strings.Builder
	b.WriteString("graph [\n")
	fmt.Fprintf(&b, "label=<%s>\n", table)
	b.WriteString("labelloc=t\n")
	b.WriteString("labeljust=l\n")
	for _, k := range keys {
		switch v := settings[k].(type) {
		case string:
			escaped := strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `"`, `\"`)
			fmt.Fprintf(&b, "%s=\"%s\"\n", k, escaped)
		default:
			fmt.Fprintf(&b, "%s=%v\n", k, v)
		}
	}
	b.WriteString("];\n")
	b.WriteString(`node [layer="front"];` + "\n")
	b.WriteString(`edge [layer="back", arrowsize=0.7];`)
	return b.String()
}

// lines renders the filter summary in the lettered order users know
// from the filter toggles.
func (f FilterSummary) lines() []string {
	var out []string
	if f.Propositions {
		out = append(out, "(a) Remove All Propositions")
	} else if f.MatchingSequences {
		out = append(out, "(b) Remove Matching Prop Seq/Phases")
	}
	if f.AllSequences {
		out = append(out, "(c) Remove All Sequence Elements")
	}
	if f.Extrinsic {
		out = append(out, "(d) Remove 'Extrinsic' Elements")
	}
	if len(f.Excluded) > 0 {
		out = append(out, fmt.Sprintf("(e) Exclude Elements (%d):", len(f.Excluded)))
		escaped := make([]string, len(f.Excluded))
		for i, id := range f.Excluded {
			escaped[i] = html.EscapeString(id)
		}
		out = append(out, wrapInfoLine(strings.Join(escaped, ", ")))
	}
	out = append(out, customFilterLines("(f) Exclude Propositions (by thesis):", "Prop", f.CustomProps)...)
	out = append(out, customFilterLines("(g) Exclude Sequences (by thesis):", "Seq", f.CustomSeqs)...)
	if len(f.ThesisFocus) > 0 {
		escaped := make([]string, len(f.ThesisFocus))
		for i, id := range f.ThesisFocus {
			escaped[i] = html.EscapeString(id)
		}
		out = append(out, wrapInfoLine("&bull; Thesis Focus: "+strings.Join(escaped, ", ")))
	}
	return out
}

func customFilterLines(header, noun string, filters map[string][]string) []string {
	if len(filters) == 0 {
		return nil
	}
	out := []string{"", header}
	var details []string
	for _, id := range sortedKeys(filters) {
		theses := make([]string, len(filters[id]))
		for i, t := range filters[id] {
			theses[i] = html.EscapeString(t)
		}
		line := fmt.Sprintf("&nbsp;&nbsp;&nbsp;&nbsp;&bull; %s %s &rarr; Theses: %s",
			noun, html.EscapeString(id), strings.Join(theses, ", "))
		details = append(details, wrapInfoLine(line))
	}
	return append(out, strings.Join(details, "<BR/>"))
}

// wrapInfoLine wraps long text at comma boundaries for HTML labels.
func wrapInfoLine(text string) string {
	if len(text) <= infoBoxMaxChars {
		return text
	}
	var parts []string
	current := ""
	for _, segment := range strings.Split(text, ", ") {
		switch {
		case current == "":
			current = segment
		case len(current)+len(segment)+2 <= infoBoxMaxChars:
			current += ", " + segment
		default:
			parts = append(parts, current)
			current = segment
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return strings.Join(parts, "<BR/>")
}

var digraphRe = regexp.MustCompile(`digraph\s+\S*\s*\{`)

// InjectParams inserts the parameter block right after the digraph
// opening brace. DOT without a recognizable header gets wrapped.
func InjectParams(dot, params string) string {
	if loc := digraphRe.FindStringIndex(dot); loc != nil {
		return dot[:loc[1]] + "\n" + params + "\n" + dot[loc[1]:]
	}
	return "digraph G {\n" + params + "\n" + dot + "\n}\n"
}

// BumpNodeMargins widens box-node margins slightly so long labels do
// not touch the border. The stored DOT keeps the original margins.
func BumpNodeMargins(dot string) string {
	return strings.ReplaceAll(dot, `margin="0.30,0.1"`, `margin="0.35,0.12"`)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
