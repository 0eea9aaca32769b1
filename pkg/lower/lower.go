// Package lower turns a filtered corpus into the in-memory graph
// model: one node per argumentative element, mediator nodes for every
// relation instance, and clustered sequence phases.
//
// Lowering walks sources in document order so identifier allocation and
// statement order are reproducible for identical input. Relation edges
// into proposition mediators are held back and appended after all
// element processing, matching the reading order of the output.
package lower

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/corpus"
	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/graph"
)

// Options configures lowering.
type Options struct {
	// Logger receives warnings about unresolvable references.
	Logger *log.Logger

	// FilterPropositions mirrors the filter toggle of the same name.
	// When set, phase nodes skip the match-verification gradient.
	FilterPropositions bool

	// FilterMatchingSequences likewise disables the gradient.
	FilterMatchingSequences bool
}

// Lowerer holds the per-run lowering state.
type Lowerer struct {
	c      *corpus.Corpus
	g      *graph.Graph
	logger *log.Logger
	opts   Options

	section *graph.Section // nil means top level

	processedElements     map[string]bool
	processedPropositions map[string]bool
	processedSources      map[string]bool

	propPhases    []*propPhase
	storedEdges   []*graph.Edge
	anonSequences int
}

// propPhase records an emitted proposition phase for later cross-links
// from thesis sequences.
type propPhase struct {
	ID            string
	SequenceID    string
	ClusterID     string
	Number        int
	GroupNumber   int
	NumberInGroup int
	paraphrasis   string
}

// Lower builds the graph for the corpus.
func Lower(c *corpus.Corpus, opts Options) *graph.Graph {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	l := &Lowerer{
		c:                     c,
		g:                     graph.New(),
		logger:                opts.Logger,
		opts:                  opts,
		processedElements:     map[string]bool{},
		processedPropositions: map[string]bool{},
		processedSources:      map[string]bool{},
	}

	for _, src := range c.Doc.Sources() {
		l.lowerSource(src)
	}
	l.lowerUnassigned()
	l.lowerReferencedPropositions()

	for _, e := range l.storedEdges {
		l.g.Append(e)
	}
	return l.g
}

// add appends a statement to the current source section, or to the top
// level outside any source.
func (l *Lowerer) add(s graph.Stmt) {
	if l.section != nil {
		l.g.AppendToSection(l.section, s)
	} else {
		l.g.Append(s)
	}
}

// addToCluster appends into a cluster while keeping the graph index
// current.
func (l *Lowerer) addToCluster(c *graph.Cluster, s graph.Stmt) {
	l.g.AppendTo(c, s)
}

// elementID prefers thesu:id over xml:id, the precedence corpus
// elements use for their graph identity.
func elementID(el *document.Element) string {
	if id := el.Attr(document.NSThesu, "id"); id != "" {
		return id
	}
	return el.Attr(document.NSXML, "id")
}

func (l *Lowerer) lowerSource(src *document.Element) {
	sourceID := elementID(src)
	if l.processedSources[sourceID] {
		l.logger.Warn("skipping duplicate source", "source", sourceID)
		return
	}
	l.processedSources[sourceID] = true

	if ref := src.Attr(document.NSThesu, "ref"); ref != "" {
		if _, err := l.c.Texts().SourceDocument(ref); err != nil {
			l.logger.Warn("source text unavailable, lowering annotations only",
				"source", sourceID, "ref", ref)
		}
	}

	sec := &graph.Section{ID: sourceID, Label: sourceID}
	l.section = sec
	l.lowerElementsUnder(src, sourceID)
	l.section = nil
	l.g.Append(sec)
}

// lowerElementsUnder processes every THESIS, SUPPORT, and MISC
// descendant of scope in document order.
func (l *Lowerer) lowerElementsUnder(scope *document.Element, fallbackSource string) {
	var els []*document.Element
	scope.Walk(func(el *document.Element) {
		if el == scope {
			return
		}
		if el.Is(document.TagThesis) || el.Is(document.TagSupport) || el.Is(document.TagMisc) {
			els = append(els, el)
		}
	})
	for _, el := range els {
		l.lowerElement(el, fallbackSource)
	}
}

func (l *Lowerer) lowerUnassigned() {
	for _, el := range l.c.Doc.TopElements() {
		l.lowerElement(el, "")
	}
}

func (l *Lowerer) lowerElement(el *document.Element, fallbackSource string) {
	id := elementID(el)
	if id == "" || l.processedElements[id] {
		return
	}
	l.processedElements[id] = true

	sourceID := corpus.SourceID(el)
	if sourceID == "" {
		sourceID = fallbackSource
	}

	snippet, text, locus := l.c.Texts().TextAndLocus(el)

	switch {
	case el.Is(document.TagThesis):
		l.lowerThesis(el, id, snippet, text, locus, sourceID)
	case el.Is(document.TagSupport):
		l.lowerSupport(el, id, snippet, text, locus, sourceID)
	case el.Is(document.TagMisc):
		l.lowerMisc(el, id, snippet, text, locus, sourceID)
	}
}

// lowerReferencedPropositions emits nodes for propositions referenced
// by proposition matches that no thesis already pulled in.
func (l *Lowerer) lowerReferencedPropositions() {
	seen := map[string]bool{}
	var refs []string
	for _, el := range l.c.Doc.TopElements() {
		group := el.FirstChild("matchingPropositionsGroup")
		if group == nil {
			continue
		}
		for _, mp := range group.Descendants("matchingProposition") {
			ref := mp.Ref("propRef")
			if ref != "" && !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	for _, ref := range refs {
		l.emitProposition(ref)
	}
}

// manifestation classifies an element's presence in the source.
func manifestation(el *document.Element) (kind, typeLabelPrefix string, implicit bool) {
	switch {
	case el.Attr(document.NSThesu, "extrinsic") == "true":
		return "extrinsic", "extr. ", true
	case el.Attr(document.NSThesu, "implicit") == "true":
		return "implicit", "impl. ", true
	default:
		return "explicit", "", false
	}
}

// displayLocus strips markup from a locus for plain attribute use.
func displayLocus(locus string) string {
	return corpus.DisplayLocus(locus)
}

// attrParaphrasis flattens a wrapped label for attribute use.
func attrParaphrasis(wrapped string) string {
	return strings.ReplaceAll(wrapped, "<br/>", " ")
}
