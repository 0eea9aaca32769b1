package corpus

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/alchemeast/thesugraph/pkg/document"
)

// DefaultParaphrasis stands in for elements without a paraphrase.
const DefaultParaphrasis = "/"

// Word budgets for label text.
const (
	snippetHeadWords = 3
	snippetTailWords = 2
	fullTextMaxWords = 100
	wrapWidth        = 50
)

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Paraphrasis extracts the paraphrase text of an element, including
// text nested in child markup. Returns DefaultParaphrasis when absent
// or empty.
func Paraphrasis(el *document.Element) string {
	para := el.FirstChild("paraphrasis")
	if para == nil {
		return DefaultParaphrasis
	}
	var b strings.Builder
	para.Walk(func(e *document.Element) {
		if e.Text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(e.Text)
		}
	})
	text := normalizeSpace(b.String())
	if text == "" {
		return DefaultParaphrasis
	}
	return text
}

// WrapLabel breaks text into lines of at most wrapWidth characters for
// HTML-like DOT labels and escapes embedded quotes.
func WrapLabel(text string) string {
	return WrapLabelWidth(text, wrapWidth)
}

// WrapLabelWidth is WrapLabel with an explicit line width. Phase labels
// use a narrower column than element labels.
func WrapLabelWidth(text string, width int) string {
	text = normalizeSpace(text)
	if text == "" {
		return text
	}
	var b strings.Builder
	line := 0
	for _, word := range strings.Fields(text) {
		if line > 0 && line+1+len(word) > width {
			b.WriteString("<br/>")
			line = 0
		} else if line > 0 {
			b.WriteByte(' ')
			line++
		}
		b.WriteString(word)
		line += len(word)
	}
	b.WriteString("<br/>")
	return strings.ReplaceAll(b.String(), `"`, `\"`)
}

func isEllipsis(tok string) bool { return tok == "..." || tok == "…" }

// Snippet shortens text to its first three and last two words,
// preserving ellipses that were already present.
func Snippet(text string) string {
	tokens := strings.Fields(text)
	var words []int
	for i, tok := range tokens {
		if !isEllipsis(tok) {
			words = append(words, i)
		}
	}
	if len(words) <= snippetHeadWords+snippetTailWords {
		return text
	}

	headEnd := words[snippetHeadWords-1]
	tailStart := words[len(words)-snippetTailWords]

	parts := append([]string{}, tokens[:headEnd+1]...)
	if headEnd+1 < tailStart {
		parts = append(parts, "...")
	}
	parts = append(parts, tokens[tailStart:]...)

	out := strings.Join(parts, " ")
	return strings.ReplaceAll(out, "... ...", "...")
}

// capWords trims text to at most fullTextMaxWords words. A single
// continuous text keeps its first and last fifty words; discontinuous
// text distributes the budget over its segments, keeping at least the
// head and tail of each.
func capWords(text string, segments []string) string {
	countWords := func(s string) int {
		n := 0
		for _, tok := range strings.Fields(s) {
			if !isEllipsis(tok) {
				n++
			}
		}
		return n
	}
	if countWords(text) <= fullTextMaxWords {
		return text
	}

	if len(segments) <= 1 {
		words := []string{}
		for _, tok := range strings.Fields(text) {
			if !isEllipsis(tok) {
				words = append(words, tok)
			}
		}
		head := strings.Join(words[:fullTextMaxWords/2], " ")
		tail := strings.Join(words[len(words)-fullTextMaxWords/2:], " ")
		return head + " ... " + tail
	}

	remaining := fullTextMaxWords
	perSegment := fullTextMaxWords / len(segments)
	if perSegment < 5 {
		perSegment = 5
	}

	var trimmed []string
	for _, seg := range segments {
		if remaining <= 0 {
			break
		}
		words := []string{}
		for _, tok := range strings.Fields(seg) {
			if !isEllipsis(tok) {
				words = append(words, tok)
			}
		}
		if len(words) <= perSegment || remaining <= perSegment {
			trimmed = append(trimmed, seg)
			remaining -= len(words)
			continue
		}
		headN := min(3, len(words)/2)
		tailN := min(2, len(words)-headN)
		trimmed = append(trimmed, strings.Join(words[:headN], " ")+" ... "+strings.Join(words[len(words)-tailN:], " "))
		remaining -= headN + tailN + 1
	}
	return strings.Join(trimmed, " ... ")
}

// Speakers returns the display string for an element's speakers: all
// names sharing the lowest rank, joined with commas. Missing ranks
// default to 1; names keep only the fragment after '#'.
func Speakers(el *document.Element) string {
	var names []string
	var ranks []int
	for _, group := range el.Descendants("speakersGroup") {
		for _, spk := range group.ChildrenNamed("speaker") {
			name := spk.Attr(document.NSThesu, "name")
			if name == "" {
				continue
			}
			if idx := strings.LastIndex(name, "#"); idx >= 0 {
				name = name[idx+1:]
			}
			rank := 1
			if rv := spk.Attr(document.NSThesu, "rank"); rv != "" {
				if n, err := strconv.Atoi(rv); err == nil {
					rank = n
				}
			}
			names = append(names, name)
			ranks = append(ranks, rank)
		}
	}
	if len(names) == 0 {
		return ""
	}
	minRank := ranks[0]
	for _, r := range ranks[1:] {
		if r < minRank {
			minRank = r
		}
	}
	var top []string
	for i, name := range names {
		if ranks[i] == minRank {
			top = append(top, name)
		}
	}
	return strings.Join(top, ", ")
}

// Form returns the element's support form tag (fragment after '#'), or
// "" when unspecified.
func Form(el *document.Element) string {
	st := el.FirstChild("supportType")
	if st == nil {
		return ""
	}
	sf := st.FirstChild("supportForm")
	if sf == nil {
		return ""
	}
	tag := sf.Attr(document.NSThesu, "formTag")
	if idx := strings.LastIndex(tag, "#"); idx >= 0 {
		tag = tag[idx+1:]
	}
	return tag
}

// PadCenter pads s with spaces on both sides to width characters.
// Strings already at or past the width are returned unchanged.
func PadCenter(s string, width int) string {
	if len(s) >= width {
		return s
	}
	padding := width - len(s)
	left := padding / 2
	right := padding - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}
