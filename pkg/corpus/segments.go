package corpus

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/errors"
)

// Directories searched for source texts relative to the corpus base.
var sourceSubdirs = []string{"sources-refactored", "sources-segmented"}

// TextStore resolves and caches source documents and the text of the
// segments that corpus elements point at.
type TextStore struct {
	BaseDir string

	docs     map[string]*document.Document
	segments map[segmentKey]segmentResult
	logger   *log.Logger
}

type segmentKey struct {
	path string
	from string
	to   string
}

type segmentResult struct {
	text  string
	locus string
}

// NewTextStore returns an empty store rooted at baseDir.
func NewTextStore(baseDir string, logger *log.Logger) *TextStore {
	return &TextStore{
		BaseDir:  baseDir,
		docs:     map[string]*document.Document{},
		segments: map[segmentKey]segmentResult{},
		logger:   logger,
	}
}

// Document parses and caches the document at path.
func (s *TextStore) Document(path string) (*document.Document, error) {
	if doc, ok := s.docs[path]; ok {
		return doc, nil
	}
	doc, err := document.ParseFile(path)
	if err != nil {
		return nil, err
	}
	s.docs[path] = doc
	return doc, nil
}

// SourceDocument resolves a source reference against the candidate
// locations and returns the parsed document.
func (s *TextStore) SourceDocument(ref string) (*document.Document, error) {
	ref = normalizeFileRef(ref)
	for _, path := range s.candidatePaths(ref) {
		if doc, ok := s.docs[path]; ok {
			return doc, nil
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		doc, err := s.Document(path)
		if err != nil {
			continue
		}
		return doc, nil
	}
	return nil, errors.New(errors.ErrCodeSourceNotFound, "source %s not found in any candidate location", ref)
}

// normalizeFileRef strips file:/ URL prefixes and percent-encoding so
// refs exported by annotation tools resolve as plain paths.
func normalizeFileRef(ref string) string {
	if !strings.HasPrefix(ref, "file:/") {
		return ref
	}
	ref = strings.TrimPrefix(ref, "file:/")
	if unescaped, err := url.PathUnescape(ref); err == nil {
		ref = unescaped
	}
	ref = strings.TrimPrefix(ref, "/")
	return ref
}

func (s *TextStore) candidatePaths(ref string) []string {
	base := filepath.Base(ref)
	paths := []string{ref}
	if abs, err := filepath.Abs(ref); err == nil {
		paths = append(paths, abs)
	}
	paths = append(paths,
		filepath.Join(s.BaseDir, ref),
		filepath.Join(filepath.Dir(s.BaseDir), ref),
	)
	for _, sub := range sourceSubdirs {
		paths = append(paths,
			filepath.Join(s.BaseDir, sub, base),
			filepath.Join(filepath.Dir(s.BaseDir), sub, base),
		)
	}
	return paths
}

// SegmentText resolves one segment reference (thesu:from, optional
// thesu:to) to its source text and locus. Results are cached; failed
// lookups cache an empty result so the warning fires once.
func (s *TextStore) SegmentText(seg *document.Element) (text, locus string) {
	from := seg.Attr(document.NSThesu, "from")
	to := seg.Attr(document.NSThesu, "to")
	if from == "" || from == "None" || !strings.Contains(from, "#") {
		return "", ""
	}

	parts := strings.SplitN(from, "#", 2)
	path, fromID := parts[0], parts[1]

	key := segmentKey{path: path, from: fromID, to: to}
	if res, ok := s.segments[key]; ok {
		return res.text, res.locus
	}

	doc, err := s.SourceDocument(path)
	if err != nil {
		s.logger.Warn("could not resolve segment source", "path", path, "error", err)
		s.segments[key] = segmentResult{}
		return "", ""
	}

	fromEl := findByAnyID(doc, fromID)
	if fromEl == nil {
		s.logger.Warn("segment start not found in source", "id", fromID, "path", doc.Path)
		s.segments[key] = segmentResult{}
		return "", ""
	}

	locus = Locus(fromEl, doc)
	text = tokenText(fromEl)

	if to != "" && to != "None" && strings.Contains(to, "#") {
		toParts := strings.SplitN(to, "#", 2)
		toPath, toID := toParts[0], toParts[1]
		if toPath == path || strings.HasSuffix(toPath, filepath.Base(path)) {
			if toEl := findByAnyID(doc, toID); toEl != nil {
				text = spanText(doc, fromEl, toEl)
			}
		}
	}

	text = tidySpacing(text)
	s.segments[key] = segmentResult{text: text, locus: locus}
	return text, locus
}

// findByAnyID looks an element up by xml:id, bare id, or thesu:id.
func findByAnyID(doc *document.Document, id string) *document.Element {
	var found *document.Element
	doc.Root.Walk(func(el *document.Element) {
		if found != nil {
			return
		}
		if el.Attr(document.NSXML, "id") == id ||
			el.Attr("", "id") == id ||
			el.Attr(document.NSThesu, "id") == id {
			found = el
		}
	})
	return found
}

// tokenLocals are the element names that carry tokenized source text.
var tokenLocals = map[string]bool{
	"w": true, "pc": true, "num": true, "space": true, "seg": true,
}

func isTokenElement(el *document.Element) bool {
	if tokenLocals[el.Local] {
		return true
	}
	if el.Local == "span" {
		class := el.Attr("", "class")
		return class == "w" || class == "pc" || class == "num" || class == "space"
	}
	return false
}

// tokenText returns the full text content of one token element.
func tokenText(el *document.Element) string {
	var b strings.Builder
	el.Walk(func(e *document.Element) {
		if e.Text != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(e.Text)
		}
	})
	return strings.TrimSpace(b.String())
}

var punctuationSet = map[string]bool{
	",": true, ".": true, ";": true, ":": true, "!": true, "?": true,
	")": true, "]": true, "}": true, `"`: true, "'": true,
}

var openingSet = map[string]bool{
	"(": true, "[": true, "{": true, `"`: true, "'": true,
}

// spanText joins the text of every token element between from and to
// (inclusive) in document order, spacing words and gluing punctuation.
// Falls back to "from ... to" when the pair does not bracket a token
// run.
func spanText(doc *document.Document, from, to *document.Element) string {
	var tokens []*document.Element
	doc.Root.Walk(func(el *document.Element) {
		if isTokenElement(el) {
			tokens = append(tokens, el)
		}
	})

	fromIdx, toIdx := -1, -1
	for i, el := range tokens {
		if el == from {
			fromIdx = i
		}
		if el == to {
			toIdx = i
		}
	}
	if fromIdx < 0 {
		return tokenText(from) + " ... " + tokenText(to)
	}
	if toIdx < fromIdx {
		toIdx = len(tokens) - 1
	}

	var b strings.Builder
	for _, el := range tokens[fromIdx : toIdx+1] {
		word := tokenText(el)
		if word == "" {
			continue
		}
		isPunct := el.Attr("", "class") == "pc" || punctuationSet[word]
		if isPunct || b.Len() == 0 {
			b.WriteString(word)
		} else {
			b.WriteByte(' ')
			b.WriteString(word)
		}
		if !openingSet[word] {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

var (
	spaceBeforePunct = regexp.MustCompile(`\s+([,.;:!?)\]}])`)
	punctNoSpace     = regexp.MustCompile(`([,.;:!?)\]}])(\S)`)
	spaceAfterOpen   = regexp.MustCompile(`([(\[{])\s+`)
	multiSpace       = regexp.MustCompile(`\s{2,}`)
)

// tidySpacing normalizes whitespace around punctuation.
func tidySpacing(text string) string {
	text = multiSpace.ReplaceAllString(strings.TrimSpace(text), " ")
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = punctNoSpace.ReplaceAllString(text, "$1 $2")
	text = spaceAfterOpen.ReplaceAllString(text, "$1")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// TextAndLocus aggregates text over an element's segment references.
// It returns the display snippet, the full (capped) text, and the first
// non-empty locus.
func (s *TextStore) TextAndLocus(el *document.Element) (snippet, full, locus string) {
	var segTexts []string
	var loci []string
	for _, textEl := range el.Descendants("text") {
		for _, refEl := range textEl.ChildrenNamed("textRef") {
			for _, seg := range refEl.ChildrenNamed("segment") {
				t, l := s.SegmentText(seg)
				if t != "" {
					segTexts = append(segTexts, t)
				}
				loci = append(loci, l)
			}
		}
	}

	full = strings.Join(segTexts, " ... ")
	full = multiSpace.ReplaceAllString(strings.TrimSpace(full), " ")
	snippet = Snippet(full)
	full = capWords(full, segTexts)

	for _, l := range loci {
		if l != "" {
			locus = l
			break
		}
	}
	return snippet, full, locus
}
