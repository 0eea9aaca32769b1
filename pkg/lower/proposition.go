package lower

import (
	"fmt"
	"strings"

	"github.com/alchemeast/thesugraph/pkg/corpus"
	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
)

// emitProposition writes the proposition node and its sequence clusters
// once per run. Unknown proposition ids stay unemitted; the edge
// validation pass resolves whatever still points at them.
func (l *Lowerer) emitProposition(id string) {
	if l.processedPropositions[id] {
		return
	}
	prop := l.c.Proposition(id)
	if prop == nil {
		l.logger.Debug("referenced proposition not in inventory", "proposition", id)
		return
	}
	l.processedPropositions[id] = true

	para := corpus.WrapLabel(corpus.Paraphrasis(prop))
	n := graph.NewNode(id, graph.KindProposition)
	n.Attrs.SetRaw("label", fmt.Sprintf("<<b>PROPOSITION</b><br/><i>%s</i>>", para))
	n.Attrs.Set("gephi_label", "PROP")
	n.Attrs.Set("shape", "doubleoctagon")
	n.Attrs.Set("style", "rounded,filled")
	n.Attrs.Set("fillcolor", propositionFill)
	n.Attrs.Set("color", propositionBorder)
	l.add(n)

	l.lowerPropositionSequences(prop, id)
}

// lowerPropositionSequences emits one cluster per proposition sequence
// and records every phase for later cross-linking.
func (l *Lowerer) lowerPropositionSequences(prop *document.Element, propID string) {
	sg := firstChildOfDescendant(prop, "propositionType", "sequencesGroup")
	if sg == nil {
		return
	}

	for _, seq := range sg.Descendants(document.TagSequence) {
		seqID := seq.Attr(document.NSThesu, "id")
		if seqID == "" {
			seqID = seq.Attr(document.NSXML, "id")
		}
		if seqID == "" {
			l.anonSequences++
			seqID = fmt.Sprintf("%s_Q%d", propID, l.anonSequences)
		}

		phases := propositionSequencePhases(seq, seqID)
		if len(phases) == 0 {
			continue
		}

		clusterID := strings.ReplaceAll(propID+"_"+seqID, ".", "_")
		cluster := &graph.Cluster{
			ID:    clusterID,
			Label: fmt.Sprintf("<<font color='%s'>Sequence</font>>", propositionBorder),
			Attrs: graph.NewAttrs().SetRaw("peripheries", "1"),
		}

		for _, ph := range phases {
			ph.ClusterID = clusterID
			l.propPhases = append(l.propPhases, ph)

			n := graph.NewNode(ph.ID, graph.KindPhase)
			n.Attrs.SetRaw("label", fmt.Sprintf("<<b>%d</b><br/><i>%s</i>>", ph.Number, ph.paraphrasis))
			n.Attrs.Set("gephi_label", "ph.")
			n.Attrs.Set("phase_number", fmt.Sprintf("%d", ph.Number))
			n.Attrs.Set("paraphrasis", attrParaphrasis(ph.paraphrasis))
			n.Attrs.Set("shape", "box")
			n.Attrs.Set("style", "rounded,filled")
			n.Attrs.Set("color", propositionBorder)
			n.Attrs.Set("fillcolor", propositionFill)
			l.addToCluster(cluster, n)
		}

		for i := 0; i+1 < len(phases); i++ {
			e := graph.NewEdge(phases[i].ID, phases[i+1].ID)
			e.Attrs.SetRaw("dir", "none")
			e.Attrs.Set("color", propositionBorder)
			l.addToCluster(cluster, e)
		}
		l.add(cluster)

		first := graph.NewEdge(propID, phases[0].ID)
		first.Attrs.SetRaw("dir", "none")
		first.Attrs.Set("lhead", graph.ClusterName(clusterID))
		first.Attrs.Set("color", propositionBorder)
		l.add(first)
	}
}

// propositionSequencePhases numbers a proposition sequence's phases
// across its phase groups. Unlike thesis sequences, proposition phases
// live under newPhases containers inside each group.
func propositionSequencePhases(seq *document.Element, seqID string) []*propPhase {
	var out []*propPhase
	number := 0
	for groupIdx, pg := range seq.Descendants("phasesGroup") {
		np := firstDescendant(pg, "newPhases")
		if np == nil {
			continue
		}
		inGroup := 0
		for _, phase := range np.Descendants("phase") {
			number++
			inGroup++
			out = append(out, &propPhase{
				ID:            strings.ReplaceAll(seqID, "Q", "q") + fmt.Sprintf("%03d", number),
				SequenceID:    seqID,
				Number:        number,
				GroupNumber:   groupIdx + 1,
				NumberInGroup: inGroup,
				paraphrasis:   propPhaseParaphrasis(phase),
			})
		}
	}
	return out
}

// propPhaseParaphrasis reads the phase's own paraphrase text, excluding
// markup children, falling back to the free-text body.
func propPhaseParaphrasis(phase *document.Element) string {
	text := ""
	if para := phase.FirstChild("paraphrasis"); para != nil {
		text = para.Text
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

func firstDescendant(el *document.Element, local string) *document.Element {
	ds := el.Descendants(local)
	if len(ds) == 0 {
		return nil
	}
	return ds[0]
}
