package rewrite

import (
	"fmt"
	"strings"

	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
)

// Placeholder styling mirrors the omitted-target palette.
var filteredStyles = map[string]struct {
	fill, border, shape, style, gephi string
}{
	"THESIS":  {"#f0faf0", "#82b366", "box", "rounded,filled", "THES"},
	"SUPPORT": {"#dae8fc", "#7c9ac7", "ellipse", "rounded,filled", "SUPP"},
}

// validate resolves every edge endpoint that has no node definition.
// Excluded endpoints become filtered placeholders with a synthesized
// typed definition; other missing endpoints redirect to their nearest
// defined ancestor THESIS; edges that still cannot resolve, and
// self-loops created by redirection, are dropped.
func (p *Pipeline) validate(g *graph.Graph) {
	defined := map[string]bool{}
	for _, n := range g.Nodes() {
		defined[n.ID] = true
	}

	var placeholderOrder []string
	placeholders := map[string]bool{}
	needPlaceholder := func(id string) string {
		if !placeholders[id] {
			placeholders[id] = true
			placeholderOrder = append(placeholderOrder, id)
		}
		return id + "_filtered"
	}

	resolve := func(id string) (string, bool) {
		if defined[id] {
			return id, true
		}
		if p.excluded[id] {
			return needPlaceholder(id), true
		}
		if ancestor := p.thesisAncestor(id, defined); ancestor != "" {
			return ancestor, true
		}
		return "", false
	}

	drop := map[*graph.Edge]bool{}
	dropped, redirected := 0, 0
	edges := g.Edges()
	for i := len(edges) - 1; i >= 0; i-- {
		e := edges[i]
		from, okFrom := resolve(e.From)
		if !okFrom {
			drop[e] = true
			dropped++
			continue
		}
		to, okTo := resolve(e.To)
		if !okTo {
			drop[e] = true
			dropped++
			continue
		}
		if from == to {
			drop[e] = true
			dropped++
			continue
		}
		if from != e.From || to != e.To {
			e.From, e.To = from, to
			redirected++
		}
	}
	if len(drop) > 0 {
		g.RemoveEdgesIf(func(e *graph.Edge) bool { return drop[e] })
	}

	for _, id := range placeholderOrder {
		g.Append(p.makeFilteredNode(id))
	}

	if dropped > 0 || redirected > 0 || len(placeholderOrder) > 0 {
		p.logger.Debug("validated edges",
			"dropped", dropped, "redirected", redirected,
			"placeholders", len(placeholderOrder))
	}
}

// thesisAncestor finds a defined THESIS the missing ID belongs to,
// looking the element up by its full ID and then by its local suffix.
func (p *Pipeline) thesisAncestor(id string, defined map[string]bool) string {
	if p.doc == nil {
		return ""
	}
	el := p.doc.FindByID(id)
	if el == nil {
		if suffix, ok := idSuffix(id); ok {
			el = p.doc.FindByID(suffix)
		}
	}
	if el == nil {
		return ""
	}
	if el.Is(document.TagThesis) {
		if tid := definedElementID(el, defined); tid != "" {
			return tid
		}
	}
	if ancestor := el.Ancestor(document.TagThesis); ancestor != nil {
		return definedElementID(ancestor, defined)
	}
	return ""
}

func definedElementID(el *document.Element, defined map[string]bool) string {
	for _, cand := range []string{
		el.Attr(document.NSThesu, "id"),
		el.Attr(document.NSXML, "id"),
	} {
		if cand != "" && defined[cand] {
			return cand
		}
	}
	return ""
}

func (p *Pipeline) makeFilteredNode(excludedID string) *graph.Node {
	elemType := p.excludedElementType(excludedID)
	st, ok := filteredStyles[elemType]
	if !ok {
		st = filteredStyles["THESIS"]
	}

	n := graph.NewNode(excludedID+"_filtered", graph.KindFilteredPlaceholder)
	n.Attrs.SetRaw("label", fmt.Sprintf("<<b>%s</b><br/><i>(filtered)</i>>", elemType))
	n.Attrs.Set("gephi_label", st.gephi)
	n.Attrs.Set("gephi_filtered", "true")
	n.Attrs.Set("fontsize", "11")
	n.Attrs.Set("fillcolor", st.fill)
	n.Attrs.Set("color", st.border)
	n.Attrs.Set("style", st.style)
	n.Attrs.Set("shape", st.shape)
	if dot := strings.LastIndex(excludedID, "."); dot > 0 {
		n.Attrs.Set("source", excludedID[:dot])
	}
	return n
}

// excludedElementType resolves THESIS or SUPPORT from the document,
// falling back to the ID naming convention (T-prefixed local part is a
// thesis, S-prefixed a support).
func (p *Pipeline) excludedElementType(id string) string {
	if p.doc != nil {
		el := p.doc.FindByID(id)
		if el == nil {
			if suffix, ok := idSuffix(id); ok {
				el = p.doc.FindByID(suffix)
			}
		}
		if el != nil {
			switch {
			case el.Is(document.TagThesis):
				return "THESIS"
			case el.Is(document.TagSupport):
				return "SUPPORT"
			}
		}
	}
	return inferElementType(id)
}

func inferElementType(id string) string {
	local := id
	if suffix, ok := idSuffix(id); ok {
		local = suffix
	}
	if len(local) >= 2 && local[1] >= '0' && local[1] <= '9' {
		switch local[0] {
		case 'T', 't':
			return "THESIS"
		case 'S', 's':
			return "SUPPORT"
		}
	}
	return "THESIS"
}
