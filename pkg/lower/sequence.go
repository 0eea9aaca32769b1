package lower

import (
	"fmt"
	"strings"

	"github.com/alchemeast/thesugraph/pkg/corpus"
	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
	"github.com/alchemeast/thesugraph/pkg/ident"
)

// phaseWrapWidth is the label column for phase paraphrases; narrower
// than element labels so clusters stay compact.
const phaseWrapWidth = 30

// thesisPhase carries one phase of a thesis sequence through emission
// and cross-linking.
type thesisPhase struct {
	ID            string
	SequenceID    string
	Number        int
	GroupNumber   int // 0 when the phase sits outside any group
	NumberInGroup int
	Paraphrasis   string
	OriginalXMLID string
	el            *document.Element
}

// lowerThesisSequences emits the thesis's phase cluster and links it to
// matching proposition sequences.
func (l *Lowerer) lowerThesisSequences(el *document.Element, id string, implicit bool, fill, border, style string) {
	seq, phases := thesisSequencePhases(el, id)
	if seq == nil || len(phases) == 0 {
		return
	}

	clusterID := strings.ReplaceAll(id+"_"+phases[0].SequenceID, ".", "_")
	cluster := &graph.Cluster{
		ID:    clusterID,
		Label: fmt.Sprintf("<<font color='%s'>Sequence</font>>", border),
		Attrs: graph.NewAttrs().SetRaw("peripheries", "1"),
	}

	nodeFill, nodeBorder := fill, border
	gradient := !l.opts.FilterPropositions && !l.opts.FilterMatchingSequences &&
		seq.FirstChild("matchingPropositionSequence") != nil
	expected := len(seq.ChildrenNamed("matchingPropositionSequence"))

	for _, ph := range phases {
		if gradient && expected > 0 {
			ratio := verifiedMatchRatio(ph.el, expected)
			nodeFill = interpolateColor(unverifiedPhaseFill, fill, ratio)
			nodeBorder = interpolateColor(unverifiedPhaseBorder, border, ratio)
		}

		n := graph.NewNode(ph.ID, graph.KindPhase)
		n.Attrs.SetRaw("label", fmt.Sprintf("<<b>%d</b><br/><i>%s</i>>", ph.Number, ph.Paraphrasis))
		n.Attrs.Set("gephi_label", "ph.")
		n.Attrs.Set("phase_number", fmt.Sprintf("%d", ph.Number))
		n.Attrs.Set("paraphrasis", attrParaphrasis(ph.Paraphrasis))
		n.Attrs.Set("shape", "box")
		n.Attrs.Set("fillcolor", nodeFill)
		n.Attrs.Set("color", nodeBorder)
		n.Attrs.Set("style", style)
		if ph.OriginalXMLID != "" {
			n.Attrs.Set("original_xml_id", ph.OriginalXMLID)
		}
		l.addToCluster(cluster, n)
	}

	edgeStyle := "solid"
	if implicit {
		edgeStyle = "dashed"
	}
	for i := 0; i+1 < len(phases); i++ {
		e := graph.NewEdge(phases[i].ID, phases[i+1].ID)
		e.Attrs.SetRaw("dir", "none")
		e.Attrs.Set("color", nodeBorder)
		e.Attrs.Set("style", edgeStyle)
		l.addToCluster(cluster, e)
	}
	l.add(cluster)

	first := graph.NewEdge(id, phases[0].ID)
	first.Attrs.SetRaw("dir", "none")
	first.Attrs.Set("lhead", graph.ClusterName(clusterID))
	first.Attrs.Set("color", nodeBorder)
	l.add(first)

	l.linkMatchingSequences(el, seq, phases, clusterID, phases[0].ID)
}

// thesisSequencePhases reads the first substitutable-free sequence of
// the thesis and numbers its phases.
func thesisSequencePhases(el *document.Element, id string) (*document.Element, []*thesisPhase) {
	sg := firstChildOfDescendant(el, "thesisType", "sequencesGroup")
	if sg == nil {
		return nil, nil
	}
	var seq *document.Element
	for _, s := range sg.Descendants(document.TagSequence) {
		if len(s.Descendants("maySubstitute")) == 0 {
			seq = s
			break
		}
	}
	if seq == nil {
		return nil, nil
	}

	seqID := seq.Attr(document.NSThesu, "id")
	switch {
	case seqID != "":
		seqID = id + "_" + seqID
	case seq.Attr(document.NSXML, "id") != "":
		seqID = seq.Attr(document.NSXML, "id")
	default:
		seqID = id + "_Q100000"
	}

	groups := seq.Descendants("phasesGroup")
	groupOf := func(phase *document.Element) int {
		for i, g := range groups {
			for _, p := range g.Descendants("phase") {
				if p == phase {
					return i + 1
				}
			}
		}
		return 0
	}

	var phases []*thesisPhase
	lastGroup, inGroup := -1, 0
	for i, phase := range seq.Descendants("phase") {
		number := i + 1
		group := groupOf(phase)
		if group == lastGroup {
			inGroup++
		} else {
			inGroup = 1
		}
		lastGroup = group

		phases = append(phases, &thesisPhase{
			ID:            strings.ReplaceAll(seqID, "Q", "q") + fmt.Sprintf("%03d", number),
			SequenceID:    seqID,
			Number:        number,
			GroupNumber:   group,
			NumberInGroup: inGroup,
			Paraphrasis:   phaseParaphrasis(phase),
			OriginalXMLID: phase.Attr(document.NSXML, "id"),
			el:            phase,
		})
	}
	return seq, phases
}

// phaseParaphrasis prefers the phase's own paraphrase, then its
// micro-themed free text.
func phaseParaphrasis(phase *document.Element) string {
	text := ""
	if para := phase.FirstChild("paraphrasis"); para != nil {
		var b strings.Builder
		para.Walk(func(e *document.Element) {
			if e.Text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(e.Text)
			}
		})
		text = b.String()
	} else if mt := phase.FirstChild("microThemedFreeText"); mt != nil {
		if ft := mt.FirstChild("freeText"); ft != nil {
			text = ft.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		text = corpus.DefaultParaphrasis
	}
	return corpus.WrapLabelWidth(text, phaseWrapWidth)
}

// verifiedMatchRatio counts how many of the phase's expected match
// annotations carry a parseable phase reference.
func verifiedMatchRatio(phase *document.Element, expected int) float64 {
	valid := 0
	for i, mpp := range phase.ChildrenNamed("matchingPropositionPhases") {
		if i >= expected {
			break
		}
		ref := mpp.Attr(document.NSThesu, "phasesRef")
		if len(ParsePhasesRef(ref)) > 0 {
			valid++
		}
	}
	return float64(valid) / float64(expected)
}

// firstChildOfDescendant finds the first descendant named inner whose
// parent is named outer.
func firstChildOfDescendant(el *document.Element, outer, inner string) *document.Element {
	for _, cand := range el.Descendants(inner) {
		if p := cand.Parent(); p != nil && p.Is(outer) {
			return cand
		}
	}
	return nil
}

// linkMatchingSequences bridges the thesis sequence cluster to every
// proposition sequence its matches point at.
func (l *Lowerer) linkMatchingSequences(el, seq *document.Element, phases []*thesisPhase, clusterID, firstPhaseID string) {
	if len(el.Descendants("matchingPropositionsGroup")) == 0 {
		return
	}

	var seqRefs []string
	seen := map[string]bool{}
	for _, ms := range seq.Descendants("matchingPropositionSequence") {
		ref := fragment(ms.Attr(document.NSThesu, "sequenceRef"))
		if ref != "" && !seen[ref] {
			seen[ref] = true
			seqRefs = append(seqRefs, ref)
		}
	}

	for seqIndex, msid := range seqRefs {
		if !l.propositionSequenceExists(msid) {
			continue
		}

		var matched []*propPhase
		firstProp := ""
		propCluster := ""
		for _, pp := range l.propPhases {
			if strings.Contains(pp.SequenceID, msid) {
				matched = append(matched, pp)
				if firstProp == "" {
					firstProp = pp.ID
					propCluster = pp.ClusterID
				}
			}
		}
		if firstProp == "" || propCluster == "" {
			continue
		}

		for _, ph := range phases {
			mpps := ph.el.Descendants("matchingPropositionPhases")
			if seqIndex >= len(mpps) {
				continue
			}
			mpp := mpps[seqIndex]
			parsed := ParsePhasesRef(mpp.Attr(document.NSThesu, "phasesRef"))
			l.drawSequenceLinks(ph, mpp, parsed, matched, clusterID, propCluster, firstPhaseID, firstProp)
		}
	}
}

func (l *Lowerer) propositionSequenceExists(xmlID string) bool {
	for _, prop := range l.c.Propositions {
		for _, s := range prop.Descendants(document.TagSequence) {
			if s.Attr(document.NSXML, "id") == xmlID {
				return true
			}
		}
	}
	return false
}

// drawSequenceLinks emits the invisible bridge pinning two sequence
// clusters together, then the visible dotted match edges from
// proposition phases into the thesis phase.
func (l *Lowerer) drawSequenceLinks(ph *thesisPhase, mpp *document.Element, parsed map[int][]int, propPhases []*propPhase, clusterID, propClusterID, firstPhaseID, firstPropPhaseID string) {
	bridgeID := ident.Allocate(l.g, ident.RoleMatchingSequence, clusterID, propClusterID, ident.NumericSeed(1)).String()
	bridge := graph.NewNode(bridgeID, graph.KindMediator)
	bridge.Attrs.Set("shape", "point")
	bridge.Attrs.Set("style", "invis")
	bridge.Attrs.Set("gephi_invis", "true")
	l.add(bridge)

	toProp := graph.NewEdge(bridgeID, firstPropPhaseID)
	toProp.Attrs.SetRaw("dir", "none")
	toProp.Attrs.Set("lhead", graph.ClusterName(propClusterID))
	toProp.Attrs.Set("style", "invis")
	toProp.Attrs.Set("gephi_invis", "true")
	l.add(toProp)

	toThesis := graph.NewEdge(bridgeID, firstPhaseID)
	toThesis.Attrs.SetRaw("dir", "none")
	toThesis.Attrs.Set("lhead", graph.ClusterName(clusterID))
	toThesis.Attrs.Set("style", "invis")
	toThesis.Attrs.Set("gephi_invis", "true")
	l.add(toThesis)

	if len(parsed) == 0 {
		return
	}

	// Index proposition phases by (group, position within group).
	byGroup := map[int][]*propPhase{}
	for _, pp := range propPhases {
		byGroup[pp.GroupNumber] = append(byGroup[pp.GroupNumber], pp)
	}
	byNumber := map[[2]int]*propPhase{}
	for group, list := range byGroup {
		sortPropPhases(list)
		for i, pp := range list {
			byNumber[[2]int{group, i + 1}] = pp
		}
	}

	label, gephi := matchEdgeLabel(mpp)

	emit := func(pp *propPhase) {
		e := graph.NewEdge(pp.ID, ph.ID)
		e.Attrs.SetRaw("xlabel", "<"+label+">")
		e.Attrs.SetRaw("fontsize", "10")
		e.Attrs.Set("fontcolor", propositionBorder)
		e.Attrs.Set("fontname", "bold")
		e.Attrs.Set("color", propositionBorder)
		e.Attrs.Set("style", "dotted")
		e.Attrs.SetRaw("penwidth", "1.25")
		e.Attrs.SetRaw("gephi_label", gephi)
		l.add(e)
	}

	for _, group := range sortedKeys(parsed) {
		nums := parsed[group]
		if len(nums) == 0 {
			for _, pp := range byGroup[group] {
				emit(pp)
			}
			continue
		}
		for _, num := range nums {
			if pp, ok := byNumber[[2]int{group, num}]; ok {
				emit(pp)
			}
		}
	}
}

// matchEdgeLabel renders the qualifier phrases of one match annotation
// and picks its short tag.
func matchEdgeLabel(mpp *document.Element) (label, gephi string) {
	var parts []string
	gephi = "matc"
	for _, name := range matchAttrNames {
		if mpp.Attr(document.NSThesu, name) == "true" {
			phrase := matchVerbPhrases[name]
			parts = append(parts, phrase[0])
			gephi = phrase[1]
		}
	}
	if len(parts) == 0 {
		return "matches", gephi
	}
	return strings.Join(parts, ",<br/>"), gephi
}

func sortPropPhases(list []*propPhase) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j-1].NumberInGroup > list[j].NumberInGroup; j-- {
			list[j-1], list[j] = list[j], list[j-1]
		}
	}
}

func sortedKeys(m map[int][]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// ParsePhasesRef parses a phase reference expression such as
// "1.1,1.4-5,2" into group number to phase numbers. A bare group number
// (or group range) maps to an empty list meaning every phase in the
// group. Invalid parts are skipped; "/" and the empty string parse to
// an empty map.
func ParsePhasesRef(ref string) map[int][]int {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "/" {
		return map[int][]int{}
	}
	out := map[int][]int{}
	for _, part := range strings.Split(ref, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.Contains(part, "-"):
			lo, hi, ok := splitOnce(part, "-")
			if !ok {
				continue
			}
			if strings.Contains(lo, ".") {
				// Range of phases within one group, e.g. "1.4-5" or "1.4-1.6".
				gs, ps, ok := splitOnce(lo, ".")
				if !ok {
					continue
				}
				group, err1 := parseInt(gs)
				start, err2 := parseInt(ps)
				if !err1 || !err2 {
					continue
				}
				endStr := hi
				if strings.Contains(hi, ".") {
					_, endStr, _ = splitOnce(hi, ".")
				}
				end, ok := parseInt(endStr)
				if !ok {
					continue
				}
				for p := start; p <= end; p++ {
					out[group] = append(out[group], p)
				}
			} else {
				// Range of whole groups, e.g. "2-4".
				start, ok1 := parseInt(lo)
				end, ok2 := parseInt(hi)
				if !ok1 || !ok2 {
					continue
				}
				for g := start; g <= end; g++ {
					if _, exists := out[g]; !exists {
						out[g] = []int{}
					}
				}
			}
		case strings.Contains(part, "."):
			gs, ps, ok := splitOnce(part, ".")
			if !ok {
				continue
			}
			group, ok1 := parseInt(gs)
			phase, ok2 := parseInt(ps)
			if !ok1 || !ok2 {
				continue
			}
			out[group] = append(out[group], phase)
		default:
			group, ok := parseInt(part)
			if !ok {
				continue
			}
			if _, exists := out[group]; !exists {
				out[group] = []int{}
			}
		}
	}
	return out
}

func splitOnce(s, sep string) (string, string, bool) {
	idx := strings.Index(s, sep)
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+len(sep):], true
}

func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
