package corpus

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alchemeast/thesugraph/pkg/document"
)

var digitRun = regexp.MustCompile(`\d`)

// Locus derives a citation locus for an element of a source document:
// the nearest milestone, division hierarchy, page break, or paragraph
// position, in that order of preference.
func Locus(el *document.Element, doc *document.Document) string {
	if !isTEI(doc) {
		if page := standardizedPageID(el); page != "" {
			return "p. " + page
		}
	}

	if ms := precedingNamed(doc, el, "milestone", func(m *document.Element) bool {
		return m.Attr("", "unit") != "tlnum" && m.Attr(document.NSTEI, "unit") != "tlnum"
	}); ms != nil {
		if v := densestNumericAttr(ms); v != "" {
			return v
		}
	}

	if divs := ancestorsNamed(el, "div", "div1", "div2", "div3"); len(divs) > 1 {
		// The outermost division is the work itself, not a locus.
		return locusFromAncestors(divs[:len(divs)-1], "div")
	}

	if pb := precedingNamed(doc, el, "pb", nil); pb != nil {
		if n := attrAnyNS(pb, "n"); n != "" {
			return "p. " + n
		}
	}

	if ps := ancestorsNamed(el, "p"); len(ps) > 0 {
		return locusFromAncestors(ps, "p")
	}

	return ""
}

func isTEI(doc *document.Document) bool {
	root := doc.Root
	return root.Space == document.NSTEI || strings.Contains(root.Local, "TEI")
}

// standardizedPageID looks for ancestor page containers produced by
// OCR or PDF-to-HTML conversion.
func standardizedPageID(el *document.Element) string {
	for p := el.Parent(); p != nil; p = p.Parent() {
		if p.Local != "div" {
			continue
		}
		id := p.Attr("", "id")
		switch {
		case strings.HasPrefix(id, "page_"):
			return strings.TrimPrefix(id, "page_")
		case strings.HasPrefix(id, "page") && strings.HasSuffix(id, "-div"):
			return strings.TrimSuffix(strings.TrimPrefix(id, "page"), "-div")
		case strings.HasPrefix(id, "page"):
			return strings.TrimPrefix(id, "page")
		}
		if n := p.Attr("", "data-page-number"); n != "" {
			return n
		}
	}
	return ""
}

// precedingNamed returns the last element with the given local name
// occurring before target in document order, optionally filtered.
func precedingNamed(doc *document.Document, target *document.Element, local string, match func(*document.Element) bool) *document.Element {
	var last *document.Element
	done := false
	doc.Root.Walk(func(el *document.Element) {
		if done {
			return
		}
		if el == target {
			done = true
			return
		}
		if el.Local == local && (match == nil || match(el)) {
			last = el
		}
	})
	if !done {
		return nil
	}
	return last
}

// ancestorsNamed returns ancestors with any of the given local names,
// outermost first.
func ancestorsNamed(el *document.Element, locals ...string) []*document.Element {
	match := map[string]bool{}
	for _, l := range locals {
		match[l] = true
	}
	var out []*document.Element
	for p := el.Parent(); p != nil; p = p.Parent() {
		if match[p.Local] {
			out = append([]*document.Element{p}, out...)
		}
	}
	return out
}

// locusFromAncestors builds a dotted locus from a division chain,
// preferring each level's most numeric attribute and falling back to
// the sibling position.
func locusFromAncestors(chain []*document.Element, kind string) string {
	var parts []string
	for _, el := range chain {
		if v := densestNumericAttr(el); v != "" {
			parts = append(parts, v)
		} else {
			parts = append(parts, strconv.Itoa(el.Index()+1))
		}
	}
	return strings.Join(parts, ".") + " (of <i>" + kind + "</i>)"
}

// densestNumericAttr picks the attribute value with the highest
// proportion of digits, or "" when no value contains a digit.
func densestNumericAttr(el *document.Element) string {
	best := ""
	bestDensity := 0.0
	for _, a := range el.Attrs() {
		if a.Value == "" || !digitRun.MatchString(a.Value) {
			continue
		}
		density := float64(len(digitRun.FindAllString(a.Value, -1))) / float64(len(a.Value))
		if density > bestDensity {
			best = a.Value
			bestDensity = density
		}
	}
	return best
}

func attrAnyNS(el *document.Element, local string) string {
	for _, a := range el.Attrs() {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// DisplayLocus strips label markup from a locus for plain attribute
// use: " (of " becomes "_" and the closing bracket and italics drop.
func DisplayLocus(locus string) string {
	locus = strings.ReplaceAll(locus, " (of ", "_")
	locus = strings.ReplaceAll(locus, ")", "")
	locus = strings.ReplaceAll(locus, "<i>", "")
	locus = strings.ReplaceAll(locus, "</i>", "")
	return locus
}
