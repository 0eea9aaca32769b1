package lower

import (
	"fmt"
	"strings"

	"github.com/alchemeast/thesugraph/pkg/corpus"
	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
	"github.com/alchemeast/thesugraph/pkg/ident"
)

// fragment returns the part of a reference after the last '#'.
func fragment(ref string) string {
	if idx := strings.LastIndex(ref, "#"); idx >= 0 {
		return ref[idx+1:]
	}
	return ref
}

// matchAttrNames lists the proposition-match qualifiers in label order.
var matchAttrNames = []string{"extended", "partial", "generalized", "specified", "quoted", "altered"}

// matchNounPhrases renders qualifiers for the MATCHES mediator label.
var matchNounPhrases = map[string]string{
	"extended":    "extending",
	"partial":     "being part of",
	"generalized": "generalizing",
	"specified":   "specifying",
	"quoted":      "being quoted",
	"altered":     "altering",
}

// matchVerbPhrases renders qualifiers for phase cross-link labels, with
// their short gephi tags.
var matchVerbPhrases = map[string][2]string{
	"extended":    {"extends", "exts"},
	"partial":     {"is part of", "part"},
	"generalized": {"generalizes", "gens"},
	"specified":   {"specifies", "spec"},
	"quoted":      {"is quoted in", "qted"},
	"altered":     {"alters", "alts"},
}

func (l *Lowerer) lowerThesis(el *document.Element, id, snippet, text, locus, sourceID string) {
	speaker := corpus.Speakers(el)
	para := corpus.WrapLabel(corpus.Paraphrasis(el))

	kind, prefix, implicit := manifestation(el)
	fill, border, style := thesisFill, thesisBorder, "rounded,filled"
	if implicit {
		fill, border, style = mutedFill, mutedBorder, "rounded,filled,dashed"
	}

	node := graph.NewNode(id, graph.KindThesis)
	node.Attrs.SetRaw("label", fmt.Sprintf(
		`<<b>%sTHESIS</b><br/>%s<br/>%s<br/><i>%s</i><font point-size="12">"%s"</font>>`,
		prefix, corpus.PadCenter(speaker, 30), locus, para, snippet))
	node.Attrs.Set("gephi_label", "THES")
	node.Attrs.Set("locus", displayLocus(locus))
	node.Attrs.Set("speaker", strings.TrimSpace(speaker))
	node.Attrs.Set("text", text)
	node.Attrs.Set("paraphrasis", attrParaphrasis(para))
	node.Attrs.Set("manifestation", kind)
	if sourceID != "" {
		node.Attrs.Set("source", sourceID)
	}
	node.Attrs.Set("fillcolor", fill)
	node.Attrs.Set("color", border)
	node.Attrs.Set("style", style)
	node.Attrs.Set("shape", "box")
	node.Attrs.Set("margin", "0.30,0.1")

	entailments := thesisEntailments(el)
	if len(entailments) > 0 {
		// An entailed thesis sits in its own dotted cluster.
		cluster := &graph.Cluster{
			ID:    strings.ReplaceAll(id+"_ENTAILED", ".", "_"),
			Label: fmt.Sprintf(`<<font color=%q>Entailed</font>>`, border),
			Attrs: graph.NewAttrs().Set("style", "dotted"),
		}
		l.addToCluster(cluster, node)
		l.add(cluster)
	} else {
		l.add(node)
	}

	for _, ent := range entailments {
		mid := ident.Allocate(l.g, ident.RoleEntailment, ent.by, id, ident.NumericSeed(1)).String()
		m := graph.NewNode(mid, graph.KindMediator)
		m.Attrs.SetRaw("label", fmt.Sprintf("<by %s,<br/>ENTAILS>", ent.as))
		m.Attrs.Set("fontsize", "11")
		m.Attrs.Set("style", style)
		m.Attrs.Set("fillcolor", fill)
		m.Attrs.Set("color", border)
		m.Attrs.Set("shape", "house")
		l.add(m)
		edges := relationEdges(ent.by, mid, id, border)
		l.add(edges[0])
		l.add(edges[1])
	}

	for _, et := range thesisEtiologies(el, id, l.c.Doc) {
		mid := ident.Allocate(l.g, ident.RoleEtiology, et.ref, id, ident.NumericSeed(1)).String()
		m := graph.NewNode(mid, graph.KindMediator)
		m.Attrs.SetRaw("label", "<"+et.label+">")
		m.Attrs.Set("fontsize", "11")
		m.Attrs.Set("style", style)
		m.Attrs.Set("fillcolor", etiologyFill)
		m.Attrs.Set("color", etiologyBorder)
		m.Attrs.Set("shape", "diamond")
		l.add(m)
		edges := relationEdges(et.ref, mid, id, etiologyBorder)
		l.add(edges[0])
		l.add(edges[1])
	}

	for _, an := range thesisAnalogies(el) {
		mid := ident.Allocate(l.g, ident.RoleAnalogy, an.ref, id, ident.NumericSeed(1)).String()
		label := "COMPARED IN"
		if an.comparans {
			label = "<i>as source</i>,<br/>COMPARED IN"
		}
		m := graph.NewNode(mid, graph.KindMediator)
		m.Attrs.SetRaw("label", "<"+label+">")
		m.Attrs.Set("fontsize", "11")
		m.Attrs.Set("style", style)
		m.Attrs.Set("fillcolor", analogyFill)
		m.Attrs.Set("color", analogyBorder)
		m.Attrs.Set("shape", "diamond")
		l.add(m)
		edges := relationEdges(an.ref, mid, id, analogyBorder)
		l.add(edges[0])
		l.add(edges[1])
	}

	for _, ref := range thesisReferences(el) {
		mid := ident.Allocate(l.g, ident.RoleReference, ref, id, ident.NumericSeed(1)).String()
		m := graph.NewNode(mid, graph.KindMediator)
		m.Attrs.SetRaw("label", "<IS REFERENCED IN>")
		m.Attrs.Set("fontsize", "11")
		m.Attrs.Set("style", "rounded,filled")
		m.Attrs.Set("fillcolor", referenceFill)
		m.Attrs.Set("color", referenceBorder)
		m.Attrs.Set("shape", "note")
		l.add(m)
		edges := relationEdges(ref, mid, id, referenceBorder)
		l.add(edges[0])
		l.add(edges[1])
	}

	l.lowerMatchingPropositions(el, id)
	l.lowerThesisSequences(el, id, implicit, fill, border, style)
}

// relationEdges builds the canonical mediator edge pair: an undirected
// edge from the related element into the mediator and a directed edge
// from the mediator to the anchor.
func relationEdges(from, mediator, to, color string) [2]*graph.Edge {
	in := graph.NewEdge(from, mediator)
	in.Attrs.SetRaw("dir", "none")
	in.Attrs.Set("color", color)
	out := graph.NewEdge(mediator, to)
	out.Attrs.Set("color", color)
	return [2]*graph.Edge{in, out}
}

type entailment struct{ by, as string }

func thesisEntailments(el *document.Element) []entailment {
	group := el.FirstChild("entailment")
	if group == nil {
		return nil
	}
	var out []entailment
	index := map[string]int{}
	for _, e := range group.Descendants("entailedBy") {
		by := fragment(e.Attr(document.NSThesu, "ref"))
		if by == "" {
			continue
		}
		as := fragment(e.Attr(document.NSThesu, "entailedAs"))
		if i, seen := index[by]; seen {
			out[i].as = as
			continue
		}
		index[by] = len(out)
		out = append(out, entailment{by: by, as: as})
	}
	return out
}

type etiologyRef struct {
	ref   string
	label string
}

// thesisEtiologies collects external etiology members: references to
// elements that exist in the document and are not descendants of the
// thesis itself.
func thesisEtiologies(el *document.Element, id string, doc *document.Document) []etiologyRef {
	tt := el.FirstChild("thesisType")
	if tt == nil {
		return nil
	}
	group := tt.FirstChild("etiologiesGroup")
	if group == nil {
		return nil
	}
	var out []etiologyRef
	seen := map[string]int{}
	for _, etiology := range group.ChildrenNamed("etiology") {
		members := etiology.ChildrenNamed("etiologyMember")
		hasCause, hasEnd := false, false
		for _, m := range members {
			hasCause = hasCause || m.Attr(document.NSThesu, "cause") == "true"
			hasEnd = hasEnd || m.Attr(document.NSThesu, "end") == "true"
		}
		for _, m := range members {
			ref := m.FirstChild("elementRef")
			if ref == nil {
				continue
			}
			refID := fragment(ref.Attr(document.NSThesu, "ref"))
			if refID == "" || refID == id {
				continue
			}
			target := doc.FindByID(refID)
			if target == nil || isDescendantOf(target, el) {
				continue
			}
			label := etiologyLabel(
				m.Attr(document.NSThesu, "cause") == "true",
				m.Attr(document.NSThesu, "end") == "true",
				hasCause, hasEnd)
			if i, ok := seen[refID]; ok {
				out[i].label = label
				continue
			}
			seen[refID] = len(out)
			out = append(out, etiologyRef{ref: refID, label: label})
		}
	}
	return out
}

// etiologyLabel names the relation from the thesis's point of view:
// what the thesis is to the referenced element.
func etiologyLabel(isCause, isEnd, hasCauseSiblings, hasEndSiblings bool) string {
	switch {
	case isCause:
		return "ITS EFFECT<br/>in etiology"
	case isEnd:
		return "ITS MEANS<br/>in etiology"
	case hasCauseSiblings && hasEndSiblings:
		return "ITS CAUSE & PURPOSE<br/>in etiology"
	case hasCauseSiblings:
		return "ITS CAUSE<br/>in etiology"
	case hasEndSiblings:
		return "ITS PURPOSE<br/>in etiology"
	default:
		return "CORRELATED<br/>in etiology"
	}
}

func isDescendantOf(el, ancestor *document.Element) bool {
	for p := el.Parent(); p != nil; p = p.Parent() {
		if p == ancestor {
			return true
		}
	}
	return false
}

type analogyRef struct {
	ref       string
	comparans bool
}

func thesisAnalogies(el *document.Element) []analogyRef {
	tt := el.FirstChild("thesisType")
	if tt == nil {
		return nil
	}
	group := tt.FirstChild("analogiesGroup")
	if group == nil {
		return nil
	}
	var out []analogyRef
	seen := map[string]int{}
	for _, analogy := range group.ChildrenNamed("analogy") {
		for _, m := range analogy.ChildrenNamed("analogyMember") {
			ref := m.FirstChild("elementRef")
			if ref == nil {
				continue
			}
			refID := fragment(ref.Attr(document.NSThesu, "ref"))
			if refID == "" {
				continue
			}
			comparans := m.Attr(document.NSThesu, "comparans") == "true"
			if i, ok := seen[refID]; ok {
				out[i].comparans = comparans
				continue
			}
			seen[refID] = len(out)
			out = append(out, analogyRef{ref: refID, comparans: comparans})
		}
	}
	return out
}

// thesisReferences collects ids referenced through includedRef blocks
// and the macro-themes group.
func thesisReferences(el *document.Element) []string {
	var out []string
	seen := map[string]bool{}
	collect := func(refs []*document.Element) {
		for _, r := range refs {
			id := fragment(r.Attr(document.NSThesu, "ref"))
			if id != "" && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	for _, inc := range el.Descendants("includedRef") {
		collect(inc.Descendants("elementRef"))
	}
	if tt := el.FirstChild("thesisType"); tt != nil {
		if mt := tt.FirstChild("macroThemesGroup"); mt != nil {
			collect(mt.Descendants("elementRef"))
		}
	}
	return out
}

// lowerMatchingPropositions emits the referenced proposition (once),
// a MATCHES mediator per match, and the deferred edges linking them.
func (l *Lowerer) lowerMatchingPropositions(el *document.Element, id string) {
	group := el.FirstChild("matchingPropositionsGroup")
	if group == nil {
		return
	}

	var refs []string
	types := map[string]string{}
	for _, mp := range group.Descendants("matchingProposition") {
		ref := fragment(mp.Attr(document.NSThesu, "propRef"))
		if ref == "" {
			continue
		}
		if _, seen := types[ref]; !seen {
			refs = append(refs, ref)
		}
		var parts []string
		for _, name := range matchAttrNames {
			if mp.Attr(document.NSThesu, name) == "true" {
				parts = append(parts, matchNounPhrases[name])
			}
		}
		types[ref] = strings.Join(parts, ",<br/>")
	}

	for _, ref := range refs {
		l.emitProposition(ref)

		label := "MATCHES"
		if types[ref] != "" {
			label = fmt.Sprintf("MATCHES<br/><i>%s</i>", types[ref])
		}
		mid := ident.Allocate(l.g, ident.RoleMatchingProposition, ref, id, ident.NumericSeed(1)).String()
		m := graph.NewNode(mid, graph.KindMediator)
		m.Attrs.SetRaw("label", "<"+label+">")
		m.Attrs.Set("gephi_label", "matc")
		m.Attrs.Set("fontsize", "11")
		m.Attrs.Set("shape", "doubleoctagon")
		m.Attrs.Set("style", "rounded,filled")
		m.Attrs.Set("fillcolor", propositionFill)
		m.Attrs.Set("color", propositionBorder)
		l.add(m)

		// Match edges come last in the output so the layout settles
		// element positions before cross-element pulls apply.
		in := graph.NewEdge(ref, mid)
		in.Attrs.SetRaw("dir", "none")
		in.Attrs.Set("color", propositionBorder)
		out := graph.NewEdge(mid, id)
		out.Attrs.Set("color", propositionBorder)
		l.storedEdges = append(l.storedEdges, in, out)
	}
}
