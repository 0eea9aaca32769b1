package lower

import (
	"fmt"
	"strings"

	"github.com/alchemeast/thesugraph/pkg/corpus"
	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
)

func (l *Lowerer) lowerMisc(el *document.Element, id, snippet, text, locus, sourceID string) {
	speaker := corpus.Speakers(el)
	para := corpus.WrapLabel(corpus.Paraphrasis(el))

	kind, prefix, implicit := manifestation(el)
	fill, border, nodeStyle := miscFill, miscBorder, "filled"
	if implicit {
		fill, border, nodeStyle = miscMutedFill, miscMutedBorder, "dashed,filled"
	}

	node := graph.NewNode(id, graph.KindMisc)
	node.Attrs.SetRaw("label", fmt.Sprintf(
		`<<br/><b>%sMISC</b><br/>%s<br/>%s<br/><i>%s</i><br/><font point-size="12">"%s"</font>>`,
		prefix, corpus.PadCenter(speaker, 30), locus, para, snippet))
	node.Attrs.Set("gephi_label", "MISC")
	node.Attrs.Set("text", text)
	node.Attrs.Set("locus", displayLocus(locus))
	node.Attrs.Set("speaker", strings.TrimSpace(speaker))
	node.Attrs.Set("manifestation", kind)
	if sourceID != "" {
		node.Attrs.Set("source", sourceID)
	}
	node.Attrs.Set("fillcolor", fill)
	node.Attrs.Set("color", border)
	node.Attrs.Set("style", nodeStyle)
	node.Attrs.Set("shape", "cylinder")
	node.Attrs.Set("margin", "0.30,0.1")
	l.add(node)
}
