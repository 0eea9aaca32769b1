package lower

import (
	"fmt"
	"strings"

	"github.com/alchemeast/thesugraph/pkg/corpus"
	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
	"github.com/alchemeast/thesugraph/pkg/ident"
)

func (l *Lowerer) lowerSupport(el *document.Element, id, snippet, text, locus, sourceID string) {
	speaker := corpus.Speakers(el)
	para := corpus.WrapLabel(corpus.Paraphrasis(el))

	function := supportFunction(el)
	form := corpus.Form(el)

	kind, prefix, implicit := manifestation(el)
	implicitStyle := "filled"
	if implicit {
		implicitStyle = "dashed,filled"
	}

	supFill, supBorder := thesisFill, thesisBorder
	tStyle := style{GephiLabel: "tar", Fill: "#ffffff", Peripheries: "#000000", Shape: "ellipse"}
	if fs, ok := functionStyles[function]; ok {
		s := fs[implicit]
		supFill, supBorder = s.Fill, s.Peripheries
		tStyle = s
	}

	sup := &supportContext{
		id:            id,
		function:      function,
		implicit:      implicit,
		implicitStyle: implicitStyle,
		fill:          supFill,
		border:        supBorder,
		target:        tStyle,
		sourceID:      sourceID,
	}

	l.lowerExplicitTargets(el, sup)
	l.lowerOmittedTargets(el, sup)
	l.lowerEmployedElements(el, sup)

	formLabel := form
	if formLabel == "" {
		formLabel = "unspecified"
	}

	node := graph.NewNode(id, graph.KindSupport)
	node.Attrs.SetRaw("label", fmt.Sprintf(
		`<<b>%sSUPPORT</b><br/>%s<br/>%s<br/><i>form: %s</i><br/><font point-size="12">"%s"</font>>`,
		prefix, corpus.PadCenter(speaker, 30), locus, formLabel, snippet))
	node.Attrs.Set("gephi_label", "SUPP")
	node.Attrs.Set("text", text)
	node.Attrs.Set("locus", displayLocus(locus))
	node.Attrs.Set("speaker", strings.TrimSpace(speaker))
	node.Attrs.Set("form", form)
	node.Attrs.Set("paraphrasis", attrParaphrasis(para))
	node.Attrs.Set("manifestation", kind)
	node.Attrs.Set("fillcolor", supFill)
	node.Attrs.Set("color", supBorder)
	node.Attrs.Set("style", implicitStyle)
	node.Attrs.Set("shape", "ellipse")
	node.Attrs.Set("margin", "0.05,0.02")
	if sourceID != "" {
		node.Attrs.Set("source", sourceID)
	}
	l.add(node)
}

// supportContext carries the per-support styling shared across target
// and employed-element emission.
type supportContext struct {
	id            string
	function      string
	implicit      bool
	implicitStyle string
	fill, border  string
	target        style
	sourceID      string

	funcNodeID     string
	employedNodeID string
}

// supportFunction picks the element's lowest-ranked function.
func supportFunction(el *document.Element) string {
	group := firstDescendant(el, "supportFunctionsGroup")
	if group == nil {
		return ""
	}
	var top *document.Element
	topRank := int(^uint(0) >> 1)
	for _, fn := range group.Children {
		rank := topRank
		if rv := fn.Attr(document.NSThesu, "rank"); rv != "" {
			if n, ok := parseInt(rv); ok {
				rank = n
			}
		}
		if top == nil || rank < topRank {
			top, topRank = fn, rank
		}
	}
	if top == nil {
		return ""
	}
	switch top.Local {
	case "argumentation":
		switch top.Attr(document.NSThesu, "for") {
		case "rej":
			return FuncRefutes
		case "mix":
			return FuncDiscusses
		default:
			return FuncJustifies
		}
	case "exposition":
		return FuncExplains
	case "expansion":
		return FuncExpandsOn
	case "contextualization":
		return FuncContextualizes
	}
	return ""
}

// ensureFuncNode lazily emits the support's function mediator and its
// anchoring edge. Supports without targets never get one.
func (l *Lowerer) ensureFuncNode(sup *supportContext) string {
	if sup.funcNodeID != "" {
		return sup.funcNodeID
	}
	sup.funcNodeID = ident.ForFunction(sup.id).String()

	n := graph.NewNode(sup.funcNodeID, graph.KindMediator)
	n.Attrs.Set("label", sup.function)
	n.Attrs.Set("gephi_label", sup.target.GephiLabel)
	n.Attrs.Set("gephi_omitted", "false")
	n.Attrs.Set("fontsize", "11")
	n.Attrs.Set("fillcolor", sup.fill)
	n.Attrs.Set("color", sup.border)
	n.Attrs.Set("style", sup.implicitStyle)
	n.Attrs.Set("shape", "ellipse")
	l.add(n)

	e := graph.NewEdge(sup.id, sup.funcNodeID)
	e.Attrs.SetRaw("dir", "none")
	e.Attrs.Set("color", sup.border)
	e.Attrs.Set("style", sup.implicitStyle)
	l.add(e)
	return sup.funcNodeID
}

// ensureEmployedNode lazily emits the shared EMPLOYED IN mediator. The
// edge points into the support to force vertical ordering.
func (l *Lowerer) ensureEmployedNode(sup *supportContext) string {
	if sup.employedNodeID != "" {
		return sup.employedNodeID
	}
	sup.employedNodeID = ident.ForEmployed(sup.id).String()

	n := graph.NewNode(sup.employedNodeID, graph.KindMediator)
	n.Attrs.Set("label", "EMPLOYED IN")
	n.Attrs.Set("gephi_label", "in")
	n.Attrs.Set("fontsize", "11")
	n.Attrs.Set("fillcolor", employedFill)
	n.Attrs.Set("color", employedBorder)
	n.Attrs.Set("gephi_omitted", "false")
	n.Attrs.Set("shape", "ellipse")
	n.Attrs.Set("style", "filled")
	l.add(n)

	e := graph.NewEdge(sup.employedNodeID, sup.id)
	e.Attrs.Set("color", employedBorder)
	e.Attrs.Set("style", "solid")
	l.add(e)
	return sup.employedNodeID
}

func (l *Lowerer) lowerExplicitTargets(el *document.Element, sup *supportContext) {
	for _, tg := range el.Descendants("targetsGroup") {
		for _, target := range tg.ChildrenNamed("target") {
			ref := fragment(target.Attr(document.NSThesu, "ref"))
			if ref == "" {
				continue
			}
			funcID := l.ensureFuncNode(sup)
			e := graph.NewEdge(funcID, ref)
			e.Attrs.Set("color", sup.target.Peripheries)
			e.Attrs.Set("style", sup.implicitStyle)
			l.add(e)
		}
	}
}

func (l *Lowerer) lowerOmittedTargets(el *document.Element, sup *supportContext) {
	for _, tg := range el.Descendants("targetsGroup") {
		for _, omitted := range tg.ChildrenNamed("omittedTargets") {
			if len(omitted.Children) == 0 {
				nodeID := l.emitOmittedUnspecified(sup, "omitted_ELEMENTS")
				funcID := l.ensureFuncNode(sup)
				e := graph.NewEdge(funcID, nodeID)
				e.Attrs.Set("color", sup.target.Peripheries)
				e.Attrs.Set("style", sup.implicitStyle)
				l.add(e)
				continue
			}
			for _, child := range omitted.Children {
				l.lowerOmittedGroup(child, sup, "omitted_TARGET_", func(nodeID string) {
					funcID := l.ensureFuncNode(sup)
					e := graph.NewEdge(funcID, nodeID)
					e.Attrs.Set("color", sup.target.Peripheries)
					e.Attrs.Set("style", sup.implicitStyle)
					l.add(e)
				})
			}
		}
	}
}

func (l *Lowerer) lowerEmployedElements(el *document.Element, sup *supportContext) {
	for _, ee := range el.Descendants("employedElements") {
		for _, ref := range ee.ChildrenNamed("elementRef") {
			refID := fragment(ref.Attr(document.NSThesu, "ref"))
			if refID == "" {
				continue
			}
			employedID := l.ensureEmployedNode(sup)
			e := graph.NewEdge(refID, employedID)
			e.Attrs.SetRaw("dir", "none")
			e.Attrs.Set("color", employedBorder)
			e.Attrs.Set("style", "solid")
			l.add(e)
		}
		for _, omitted := range ee.ChildrenNamed("omittedEmployedElements") {
			if len(omitted.Children) == 0 {
				nodeID := l.emitOmittedUnspecified(sup, "omitted_ELEMENTS")
				employedID := l.ensureEmployedNode(sup)
				e := graph.NewEdge(nodeID, employedID)
				e.Attrs.SetRaw("dir", "none")
				e.Attrs.Set("color", employedBorder)
				e.Attrs.Set("style", "solid")
				l.add(e)
				continue
			}
			for _, child := range omitted.Children {
				l.lowerOmittedGroup(child, sup, "omitted_", func(nodeID string) {
					employedID := l.ensureEmployedNode(sup)
					e := graph.NewEdge(nodeID, employedID)
					e.Attrs.SetRaw("dir", "none")
					e.Attrs.Set("color", employedBorder)
					e.Attrs.Set("style", "solid")
					l.add(e)
				})
			}
		}
	}
}

// emitOmittedUnspecified emits the gray placeholder for a completely
// unspecified omitted-elements annotation.
func (l *Lowerer) emitOmittedUnspecified(sup *supportContext, refKind string) string {
	nodeID := ident.Allocate(l.g, ident.RoleTarget, sup.id, refKind, ident.StringSeed("unspecified")).String()
	n := graph.NewNode(nodeID, graph.KindMediator)
	n.Attrs.SetRaw("label", "<<b>ELEMENTS</b><br/><i>(unspecified,<br/>omitted,<br/>one or more)</i>>")
	n.Attrs.Set("gephi_label", "ELEM")
	n.Attrs.Set("gephi_omitted", "true")
	n.Attrs.Set("gephi_unspecified", "true")
	n.Attrs.Set("fontsize", "11")
	n.Attrs.Set("fillcolor", omittedUnspecFill)
	n.Attrs.Set("color", omittedUnspecBorder)
	n.Attrs.Set("style", "dotted,filled,rounded")
	n.Attrs.Set("shape", "box")
	if sup.sourceID != "" {
		n.Attrs.Set("source", sup.sourceID)
	}
	l.add(n)
	return nodeID
}

// lowerOmittedGroup expands one omittedTHESES/omittedSUPPORTS/
// omittedMISCS annotation into placeholder nodes, invoking connect for
// each.
func (l *Lowerer) lowerOmittedGroup(child *document.Element, sup *supportContext, idPrefix string, connect func(nodeID string)) {
	var displayType, fill, border, nodeStyle, shape string
	switch child.Local {
	case "omittedTHESES":
		displayType = "THESIS"
		fill, border = thesisFill, thesisBorder
		nodeStyle, shape = "rounded,filled", "box"
	case "omittedMISCS":
		displayType = "MISC"
		fill, border = miscFill, miscBorder
		nodeStyle, shape = "filled", "cylinder"
	case "omittedSUPPORTS":
		displayType = "SUPPORT"
		dominant := dominantOmittedFunction(child)
		if fs, ok := functionStyles[dominant]; ok {
			fill, border = fs[false].Fill, fs[false].Peripheries
		} else {
			fill, border = supportFallbackFill, supportFallbackBorder
		}
		nodeStyle, shape = "rounded,filled", "ellipse"
	default:
		return
	}

	countAttr := child.Attr(document.NSThesu, "number")
	if count, ok := parseInt(countAttr); ok && countAttr != "" {
		for i := 1; i <= count; i++ {
			nodeID := ident.Allocate(l.g, ident.RoleTarget, sup.id, idPrefix+displayType, ident.NumericSeed(i)).String()
			l.emitOmittedNode(nodeID, displayType, fill, border, nodeStyle, shape, false, sup.sourceID)
			connect(nodeID)
		}
		return
	}

	nodeID := ident.Allocate(l.g, ident.RoleTarget, sup.id, idPrefix+displayType, ident.StringSeed("unspecified")).String()
	l.emitOmittedNode(nodeID, displayType, fill, border, "dotted,filled", shape, true, sup.sourceID)
	connect(nodeID)
}

func (l *Lowerer) emitOmittedNode(nodeID, displayType, fill, border, nodeStyle, shape string, unspecified bool, sourceID string) {
	label := fmt.Sprintf("<<b>%s</b><br/><i>(omitted)</i>>", displayType)
	if unspecified {
		label = fmt.Sprintf("<<b>%s</b><br/><i>(omitted,<br/>one or more)</i>>", displayType)
	}
	n := graph.NewNode(nodeID, graph.KindMediator)
	n.Attrs.SetRaw("label", label)
	n.Attrs.Set("gephi_label", displayType[:4])
	n.Attrs.Set("gephi_omitted", "true")
	if unspecified {
		n.Attrs.Set("gephi_unspecified", "true")
	}
	n.Attrs.Set("fontsize", "11")
	n.Attrs.Set("fillcolor", fill)
	n.Attrs.Set("color", border)
	n.Attrs.Set("style", nodeStyle)
	n.Attrs.Set("shape", shape)
	if sourceID != "" {
		n.Attrs.Set("source", sourceID)
	}
	l.add(n)
}

// dominantOmittedFunction ranks an omitted support's possible functions
// and returns the best. Unranked functions default to 4; ties resolve
// in declaration order.
func dominantOmittedFunction(child *document.Element) string {
	order := []string{FuncJustifies, FuncExplains, FuncExpandsOn, FuncContextualizes}
	ranks := map[string]int{
		FuncJustifies: 4, FuncExplains: 4, FuncExpandsOn: 4, FuncContextualizes: 4,
	}
	if fn := firstDescendant(child, "omittedSupportsFunctions"); fn != nil {
		assign := func(attr, function string) {
			if v := fn.Attr(document.NSThesu, attr); v != "" {
				if n, ok := parseInt(v); ok {
					ranks[function] = n
				}
			}
		}
		assign("omittedArgumentationRank", FuncJustifies)
		assign("omittedExpositionRank", FuncExplains)
		assign("omittedExpansionRank", FuncExpandsOn)
		assign("omittedContextualisationRank", FuncContextualizes)
	}
	best := order[0]
	for _, f := range order[1:] {
		if ranks[f] < ranks[best] {
			best = f
		}
	}
	return best
}
