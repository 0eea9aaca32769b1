// Package filter prunes a corpus document before lowering.
//
// The engine applies an ordered series of steps: source selection,
// custom proposition filters, custom sequence filters, the global
// proposition and sequence toggles, extrinsic removal, and thesis
// focus. Every step tolerates already-removed targets, so applying the
// same configuration twice leaves the document unchanged.
//
// Element exclusion is configured here but enforced later: the
// rewriting passes substitute excluded elements with placeholder nodes
// so that every relation kind pointing at them survives, not only
// support targets.
package filter

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/corpus"
	"github.com/alchemeast/thesugraph/pkg/document"
)

// Config selects which filter steps run and what they target.
type Config struct {
	// Sources keeps only the listed source ids. Empty keeps all.
	Sources []string `toml:"sources"`

	// CustomPropositionFilters holds "<thesisId> to <propositionId>"
	// expressions removing single proposition matches.
	CustomPropositionFilters []string `toml:"proposition_filters"`

	// CustomSequenceFilters holds "<thesisId> to <sequenceId>"
	// expressions removing single sequence matches.
	CustomSequenceFilters []string `toml:"sequence_filters"`

	// FilterPropositions removes every proposition match and empties
	// the proposition inventory.
	FilterPropositions bool `toml:"filter_propositions"`

	// FilterMatchingSequences removes every sequence and phase match.
	// Subsumed by FilterPropositions.
	FilterMatchingSequences bool `toml:"filter_matching_sequences"`

	// FilterAllSequences removes every sequence element.
	FilterAllSequences bool `toml:"filter_all_sequences"`

	// FilterExtrinsic removes elements marked extrinsic.
	FilterExtrinsic bool `toml:"filter_extrinsic"`

	// ThesisFocus restricts each focused thesis's surroundings to the
	// focused theses themselves.
	ThesisFocus []string `toml:"thesis_focus"`

	// ExcludeElements lists element ids to replace with placeholder
	// nodes during rewriting.
	ExcludeElements []string `toml:"exclude_elements"`
}

// Active reports whether any step would modify the document.
func (c Config) Active() bool {
	return len(c.Sources) > 0 ||
		len(c.CustomPropositionFilters) > 0 ||
		len(c.CustomSequenceFilters) > 0 ||
		c.FilterPropositions ||
		c.FilterMatchingSequences ||
		c.FilterAllSequences ||
		c.FilterExtrinsic ||
		len(c.ThesisFocus) > 0
}

// Engine applies a filter configuration to corpora.
type Engine struct {
	cfg    Config
	logger *log.Logger
}

// New returns an engine for the configuration.
func New(cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Apply runs every configured step against the corpus in order.
func (e *Engine) Apply(c *corpus.Corpus) {
	e.selectSources(c)
	e.applyCustomPropositionFilters(c)
	e.applyCustomSequenceFilters(c)

	switch {
	case e.cfg.FilterPropositions:
		e.removeAllPropositionMatches(c)
	case e.cfg.FilterMatchingSequences:
		e.removeAllSequenceMatches(c)
	}
	if e.cfg.FilterAllSequences {
		e.removeAllSequences(c)
	}
	if e.cfg.FilterExtrinsic {
		e.removeExtrinsic(c)
	}
	e.applyThesisFocus(c)
}

// ParseRelationFilters parses "<anchorId> to <targetId>" expressions
// into a map of target id to anchor ids. A leading '#' on the target is
// stripped; malformed expressions are logged and skipped.
func ParseRelationFilters(exprs []string, logger *log.Logger) map[string][]string {
	filters := map[string][]string{}
	for _, expr := range exprs {
		parts := strings.Split(expr, " to ")
		if len(parts) != 2 {
			if logger != nil {
				logger.Warn("skipping malformed filter expression", "expr", expr)
			}
			continue
		}
		anchor := strings.TrimSpace(parts[0])
		target := strings.TrimPrefix(strings.TrimSpace(parts[1]), "#")
		if anchor == "" || target == "" {
			if logger != nil {
				logger.Warn("skipping malformed filter expression", "expr", expr)
			}
			continue
		}
		if !contains(filters[target], anchor) {
			filters[target] = append(filters[target], anchor)
		}
	}
	return filters
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (e *Engine) selectSources(c *corpus.Corpus) {
	if len(e.cfg.Sources) == 0 {
		return
	}
	keep := map[string]bool{}
	for _, id := range e.cfg.Sources {
		keep[id] = true
	}
	for _, src := range c.Doc.Sources() {
		id := src.Attr(document.NSThesu, "id")
		if id == "" {
			id = src.Attr(document.NSXML, "id")
		}
		if !keep[id] {
			e.logger.Debug("dropping unselected source", "source", id)
			src.Detach()
		}
	}
}

// thesisOf returns the nearest enclosing THESIS of el, or nil.
func thesisOf(el *document.Element) *document.Element {
	return el.Ancestor(document.TagThesis)
}

func (e *Engine) applyCustomPropositionFilters(c *corpus.Corpus) {
	filters := ParseRelationFilters(e.cfg.CustomPropositionFilters, e.logger)
	if len(filters) == 0 {
		return
	}

	// Pass 1: remove the proposition matches named by the filters,
	// remembering which theses each proposition id touched.
	affectedTheses := map[string][]*document.Element{}
	var toRemove []*document.Element
	for _, mp := range c.Doc.Root.Descendants("matchingProposition") {
		propRef := mp.Ref("propRef")
		if propRef == "" {
			continue
		}
		thesisIDs, ok := filters[propRef]
		if !ok {
			continue
		}
		thesis := thesisOf(mp)
		if thesis == nil {
			continue
		}
		if !contains(thesisIDs, thesis.ID()) {
			continue
		}
		toRemove = append(toRemove, mp)
		if !containsElement(affectedTheses[propRef], thesis) {
			affectedTheses[propRef] = append(affectedTheses[propRef], thesis)
		}
	}
	for _, mp := range toRemove {
		mp.Detach()
	}

	// Pass 2: drop sequence and phase matches pointing into the
	// filtered propositions' own sequences.
	processed := map[*document.Element]bool{}
	for propID, theses := range affectedTheses {
		prop := c.Proposition(propID)
		if prop == nil {
			continue
		}
		seqIDs := map[string]bool{}
		for _, seq := range prop.Descendants(document.TagSequence) {
			if id := seq.ID(); id != "" {
				seqIDs[id] = true
			}
		}
		if len(seqIDs) == 0 {
			continue
		}
		for _, thesis := range theses {
			e.removeSequenceMatches(thesis, func(ref string) bool { return seqIDs[ref] }, processed)
		}
	}
}

func (e *Engine) applyCustomSequenceFilters(c *corpus.Corpus) {
	filters := ParseRelationFilters(e.cfg.CustomSequenceFilters, e.logger)
	if len(filters) == 0 {
		return
	}
	processed := map[*document.Element]bool{}
	e.removeSequenceMatchesScoped(c.Doc.Root, func(ref string, thesis *document.Element) bool {
		thesisIDs, ok := filters[ref]
		return ok && thesis != nil && contains(thesisIDs, thesis.ID())
	}, processed)
}

// removeSequenceMatches removes matchingPropositionSequence children
// under scope whose sequenceRef satisfies match, together with the
// positionally corresponding matchingPropositionPhases. A parent
// sequence is processed at most once per filter run.
func (e *Engine) removeSequenceMatches(scope *document.Element, match func(ref string) bool, processed map[*document.Element]bool) {
	e.removeSequenceMatchesScoped(scope, func(ref string, _ *document.Element) bool { return match(ref) }, processed)
}

func (e *Engine) removeSequenceMatchesScoped(scope *document.Element, match func(ref string, thesis *document.Element) bool, processed map[*document.Element]bool) {
	type removal struct {
		mseq     *document.Element
		index    int
		siblings int
	}
	perParent := map[*document.Element][]removal{}
	var parents []*document.Element

	for _, mseq := range scope.Descendants("matchingPropositionSequence") {
		ref := mseq.Ref("sequenceRef")
		if ref == "" || !match(ref, thesisOf(mseq)) {
			continue
		}
		parent := mseq.Parent()
		if parent == nil || !parent.Is(document.TagSequence) {
			e.logger.Debug("skipping sequence match outside a sequence", "ref", ref)
			continue
		}
		if processed[parent] {
			continue
		}
		siblings := parent.ChildrenNamed("matchingPropositionSequence")
		idx := -1
		for i, s := range siblings {
			if s == mseq {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		if _, seen := perParent[parent]; !seen {
			parents = append(parents, parent)
		}
		perParent[parent] = append(perParent[parent], removal{mseq: mseq, index: idx, siblings: len(siblings)})
	}

	for _, parent := range parents {
		items := perParent[parent]

		// Phase matches live under the parent sequence's newPhases.
		var phaseHolders []*document.Element
		for _, np := range parent.Descendants("newPhases") {
			for _, phase := range np.ChildrenNamed("phase") {
				if phase.FirstChild("matchingPropositionPhases") != nil {
					phaseHolders = append(phaseHolders, phase)
				}
			}
		}

		var phaseRemovals []*document.Element
		for _, item := range items {
			for _, phase := range phaseHolders {
				mpps := phase.ChildrenNamed("matchingPropositionPhases")
				var target *document.Element
				switch {
				case item.siblings == 1 && len(mpps) == 1:
					target = mpps[0]
				case item.index < len(mpps):
					target = mpps[item.index]
				}
				if target != nil && !containsElement(phaseRemovals, target) {
					phaseRemovals = append(phaseRemovals, target)
				}
			}
		}

		for _, item := range items {
			item.mseq.Detach()
		}
		for _, mpp := range phaseRemovals {
			mpp.Detach()
		}
		processed[parent] = true
	}
}

func containsElement(list []*document.Element, el *document.Element) bool {
	for _, v := range list {
		if v == el {
			return true
		}
	}
	return false
}

// removeAllPropositionMatches removes every matchingProposition and
// empties the proposition inventory so nothing lowers from it.
func (e *Engine) removeAllPropositionMatches(c *corpus.Corpus) {
	for _, mp := range c.Doc.Root.Descendants("matchingProposition") {
		mp.Detach()
	}
	clear(c.Propositions)
}

// removeAllSequenceMatches removes every sequence and phase match, and
// the sequences inside propositions they would have pointed at.
func (e *Engine) removeAllSequenceMatches(c *corpus.Corpus) {
	for _, el := range c.Doc.Root.Descendants("matchingPropositionSequence") {
		el.Detach()
	}
	for _, el := range c.Doc.Root.Descendants("matchingPropositionPhases") {
		el.Detach()
	}
	for _, prop := range c.Propositions {
		for _, seq := range prop.Descendants(document.TagSequence) {
			seq.Detach()
		}
	}
}

func (e *Engine) removeAllSequences(c *corpus.Corpus) {
	for _, seq := range c.Doc.Root.Descendants(document.TagSequence) {
		seq.Detach()
	}
	if !e.cfg.FilterPropositions {
		for _, prop := range c.Propositions {
			for _, seq := range prop.Descendants(document.TagSequence) {
				seq.Detach()
			}
		}
	}
}

func (e *Engine) removeExtrinsic(c *corpus.Corpus) {
	var toRemove []*document.Element
	c.Doc.Root.Walk(func(el *document.Element) {
		if el.Attr(document.NSThesu, "extrinsic") == "true" {
			toRemove = append(toRemove, el)
		}
	})
	for _, el := range toRemove {
		el.Detach()
	}
}

// applyThesisFocus removes, for every focused thesis, each sibling
// that neither is a focused thesis nor contains one.
func (e *Engine) applyThesisFocus(c *corpus.Corpus) {
	if len(e.cfg.ThesisFocus) == 0 {
		return
	}
	focus := map[string]bool{}
	for _, id := range e.cfg.ThesisFocus {
		if id != "" {
			focus[id] = true
		}
	}

	toRemove := map[*document.Element]bool{}
	for id := range focus {
		target := c.Doc.FindByID(id)
		if target == nil || !target.Is(document.TagThesis) {
			e.logger.Warn("focused thesis not found", "thesis", id)
			continue
		}
		if !target.HasAncestor(document.TagSource) {
			e.logger.Warn("focused thesis is outside any source", "thesis", id)
			continue
		}
		parent := target.Parent()
		for _, sibling := range parent.Children {
			if sibling == target {
				continue
			}
			if sibling.Is(document.TagThesis) && focus[sibling.ID()] {
				continue
			}
			protected := false
			for _, desc := range sibling.Descendants(document.TagThesis) {
				if focus[desc.ID()] {
					protected = true
					break
				}
			}
			if !protected {
				toRemove[sibling] = true
			}
		}
	}

	for el := range toRemove {
		el.Detach()
	}
	if len(toRemove) > 0 {
		e.logger.Info("thesis focus removed elements", "count", len(toRemove))
	}
}
