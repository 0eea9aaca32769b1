// Package corpus loads an argumentation corpus: the main document, the
// proposition inventories pulled in through include directives, and the
// source texts the corpus points at.
//
// A Corpus owns a TextStore that resolves and caches the referenced
// source documents, so repeated segment lookups during lowering do not
// re-parse files.
package corpus

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/alchemeast/thesugraph/pkg/document"
	"github.com/alchemeast/thesugraph/pkg/errors"
)

// Proposition inventory files are recognized by name.
const (
	includedPropositionsMarker = "included-propositions"
	newPropositionsMarker      = "new-propositions"
)

// Corpus is a loaded corpus document plus its proposition inventory and
// text resolution state.
type Corpus struct {
	Doc          *document.Document
	Propositions map[string]*document.Element

	texts  *TextStore
	logger *log.Logger
}

// LoadOptions configures corpus loading.
type LoadOptions struct {
	// BaseDir anchors relative paths in include directives and source
	// references. Defaults to the directory of the corpus file.
	BaseDir string

	// Logger receives warnings about unresolvable includes and sources.
	Logger *log.Logger
}

// Load parses the corpus at path and resolves its proposition includes.
func Load(path string, opts LoadOptions) (*Corpus, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.BaseDir == "" {
		opts.BaseDir = filepath.Dir(path)
	}

	doc, err := document.ParseFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorpusParse, err, "loading corpus %s", path)
	}

	c := &Corpus{
		Doc:          doc,
		Propositions: map[string]*document.Element{},
		texts:        NewTextStore(opts.BaseDir, opts.Logger),
		logger:       opts.Logger,
	}
	c.resolveIncludes()
	return c, nil
}

// New wraps an already-parsed document, for tests and in-memory use.
func New(doc *document.Document, opts LoadOptions) *Corpus {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	c := &Corpus{
		Doc:          doc,
		Propositions: map[string]*document.Element{},
		texts:        NewTextStore(opts.BaseDir, opts.Logger),
		logger:       opts.Logger,
	}
	c.resolveIncludes()
	return c
}

// Texts returns the corpus text store.
func (c *Corpus) Texts() *TextStore { return c.texts }

// resolveIncludes parses proposition inventory files referenced by
// include directives and indexes their PROPOSITION elements by id.
// Unresolvable includes are logged and skipped.
func (c *Corpus) resolveIncludes() {
	c.Doc.Root.Walk(func(el *document.Element) {
		if el.Space != document.NSXInclude || el.Local != "include" {
			return
		}
		href := el.Attr("", "href")
		if href == "" {
			return
		}
		full := href
		if !filepath.IsAbs(full) {
			full = filepath.Join(c.texts.BaseDir, href)
		}
		if !strings.Contains(full, includedPropositionsMarker) && !strings.Contains(full, newPropositionsMarker) {
			return
		}
		included, err := c.texts.Document(full)
		if err != nil {
			c.logger.Warn("skipping unresolvable proposition include", "href", href, "error", err)
			return
		}
		for _, prop := range included.Root.Descendants(document.TagProposition) {
			id := prop.Attr(document.NSThesu, "id")
			if id == "" {
				id = prop.Attr(document.NSXML, "id")
			}
			if id != "" {
				c.Propositions[id] = prop
			}
		}
	})

	// Propositions inlined in the corpus itself count too.
	for _, prop := range c.Doc.Root.Descendants(document.TagProposition) {
		if id := prop.ID(); id != "" {
			if _, seen := c.Propositions[id]; !seen {
				c.Propositions[id] = prop
			}
		}
	}
}

// Proposition returns the proposition with the given id, or nil.
func (c *Corpus) Proposition(id string) *document.Element {
	return c.Propositions[id]
}

// SourceID returns the id of the nearest enclosing source of el, or "".
func SourceID(el *document.Element) string {
	src := el.Ancestor(document.TagSource)
	if src == nil {
		return ""
	}
	if id := src.Attr(document.NSThesu, "id"); id != "" {
		return id
	}
	return src.Attr(document.NSXML, "id")
}

// Preload walks every source reference and text segment in the corpus
// and warms the text store caches.
func (c *Corpus) Preload() int {
	loaded := 0
	for _, src := range c.Doc.Sources() {
		ref := src.Attr(document.NSThesu, "ref")
		if ref == "" {
			continue
		}
		if _, err := c.texts.SourceDocument(ref); err == nil {
			loaded++
		}
	}
	c.Doc.Root.Walk(func(el *document.Element) {
		if el.Is("segment") && el.Parent() != nil && el.Parent().Is("textRef") {
			c.texts.SegmentText(el)
		}
	})
	return loaded
}
