package rewrite

import (
	"strings"

	"github.com/alchemeast/thesugraph/pkg/graph"
)

// reconcile rewrites edge endpoints that still use a legacy element ID
// recorded in an original_xml_id attribute, then strips the attribute.
// Both the full ID and its suffix (the part after the last dot) are
// mapped, so references with a differing document prefix still resolve.
func (p *Pipeline) reconcile(g *graph.Graph) {
	full := map[string]string{}
	suffix := map[string]string{}

	for _, n := range g.Nodes() {
		legacy := n.Attrs.Value("original_xml_id")
		if legacy == "" {
			continue
		}
		full[legacy] = n.ID
		if ls, ok := idSuffix(legacy); ok {
			if ns, ok := idSuffix(n.ID); ok {
				suffix[ls] = ns
			}
		}
	}
	if len(full) == 0 {
		p.stripLegacyAttrs(g)
		return
	}

	rewritten := 0
	for _, e := range g.Edges() {
		if to, ok := mapLegacyID(e.From, full, suffix); ok {
			e.From = to
			rewritten++
		}
		if to, ok := mapLegacyID(e.To, full, suffix); ok {
			e.To = to
			rewritten++
		}
	}
	if rewritten > 0 {
		p.logger.Debug("reconciled legacy edge endpoints", "count", rewritten)
	}
	p.stripLegacyAttrs(g)
}

func (p *Pipeline) stripLegacyAttrs(g *graph.Graph) {
	for _, n := range g.Nodes() {
		n.Attrs.Delete("original_xml_id")
	}
}

func mapLegacyID(id string, full, suffix map[string]string) (string, bool) {
	if q, ok := full[id]; ok {
		return q, true
	}
	dot := strings.LastIndex(id, ".")
	if dot < 0 {
		return "", false
	}
	if q, ok := suffix[id[dot+1:]]; ok {
		return id[:dot+1] + q, true
	}
	return "", false
}

func idSuffix(id string) (string, bool) {
	dot := strings.LastIndex(id, ".")
	if dot < 0 || dot == len(id)-1 {
		return "", false
	}
	return id[dot+1:], true
}
