// Package document parses TheSu XML corpora into a mutable element
// tree with parent links. The filter engine prunes this tree before
// lowering; the lowering stage walks it to emit the graph.
//
// Elements keep their namespace so thesu:id and xml:id stay distinct.
// All mutation helpers tolerate already-removed targets, which the
// filter steps rely on for idempotence.
package document

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Namespace URIs used by TheSu corpora.
const (
	NSThesu   = "http://alchemeast.eu/thesu/ns/1.0"
	NSXML     = "http://www.w3.org/XML/1998/namespace"
	NSXInclude = "http://www.w3.org/2001/XInclude"
	NSTEI     = "http://www.tei-c.org/ns/1.0"
)

// Element names in the thesu namespace that carry argumentative content.
const (
	TagSource     = "source"
	TagThesis     = "THESIS"
	TagSupport    = "SUPPORT"
	TagMisc       = "MISC"
	TagProposition = "PROPOSITION"
	TagSequence   = "sequence"
	TagAESystem   = "AEsystem"
)

// Element is one node of the parsed tree.
type Element struct {
	Space string // namespace URI
	Local string // local tag name
	Text  string // concatenated character data, trimmed

	attrs    []xml.Attr
	parent   *Element
	Children []*Element
}

// Document wraps a parsed tree and its origin path.
type Document struct {
	Path string
	Root *Element
}

// Parse reads an XML document into an element tree.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	var root *Element
	var stack []*Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{
				Space: t.Name.Space,
				Local: t.Name.Local,
				attrs: make([]xml.Attr, len(t.Attr)),
			}
			copy(el.attrs, t.Attr)
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parsing document: multiple root elements")
				}
				root = el
			} else {
				top := stack[len(stack)-1]
				el.parent = top
				top.Children = append(top.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("parsing document: no root element")
	}
	trimText(root)
	return &Document{Root: root}, nil
}

// ParseFile parses the document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening document %s: %w", path, err)
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

func trimText(el *Element) {
	el.Text = strings.TrimSpace(el.Text)
	for _, c := range el.Children {
		trimText(c)
	}
}

// Is reports whether the element has the given local name in the thesu
// namespace.
func (e *Element) Is(local string) bool {
	return e != nil && e.Space == NSThesu && e.Local == local
}

// Attr returns the attribute value for the namespace/local pair.
// Unprefixed attributes match any requested namespace. The predeclared
// xml prefix is reported by encoding/xml as the literal "xml" rather
// than its namespace URI, so both spellings match NSXML.
func (e *Element) Attr(space, local string) string {
	for _, a := range e.attrs {
		if a.Name.Local != local {
			continue
		}
		if a.Name.Space == space || a.Name.Space == "" {
			return a.Value
		}
		if space == NSXML && a.Name.Space == "xml" {
			return a.Value
		}
	}
	return ""
}

// Attrs returns the element's attributes in document order.
func (e *Element) Attrs() []xml.Attr { return e.attrs }

// SetAttr replaces or adds an attribute.
func (e *Element) SetAttr(space, local, value string) {
	for i := range e.attrs {
		if e.attrs[i].Name.Local == local && e.attrs[i].Name.Space == space {
			e.attrs[i].Value = value
			return
		}
	}
	e.attrs = append(e.attrs, xml.Attr{Name: xml.Name{Space: space, Local: local}, Value: value})
}

// ID returns the element identifier: xml:id, falling back to thesu:id.
func (e *Element) ID() string {
	if v := e.Attr(NSXML, "id"); v != "" {
		return v
	}
	return e.Attr(NSThesu, "id")
}

// Ref returns a thesu-namespace reference attribute with any leading
// '#' stripped, so "#q1.T1" and "q1.T1" compare equal.
func (e *Element) Ref(local string) string {
	return strings.TrimPrefix(e.Attr(NSThesu, local), "#")
}

// Parent returns the enclosing element, or nil at the root.
func (e *Element) Parent() *Element { return e.parent }

// Ancestor walks up the tree to the nearest ancestor with the given
// thesu-namespace local name, or nil.
func (e *Element) Ancestor(local string) *Element {
	for p := e.parent; p != nil; p = p.parent {
		if p.Is(local) {
			return p
		}
	}
	return nil
}

// HasAncestor reports whether any ancestor has the given local name.
func (e *Element) HasAncestor(local string) bool { return e.Ancestor(local) != nil }

// ChildrenNamed returns direct children with the given thesu local name.
func (e *Element) ChildrenNamed(local string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Is(local) {
			out = append(out, c)
		}
	}
	return out
}

// FirstChild returns the first direct child with the given local name.
func (e *Element) FirstChild(local string) *Element {
	for _, c := range e.Children {
		if c.Is(local) {
			return c
		}
	}
	return nil
}

// Descendants returns every descendant (not self) with the given thesu
// local name, in document order.
func (e *Element) Descendants(local string) []*Element {
	var out []*Element
	e.walkChildren(func(el *Element) {
		if el.Is(local) {
			out = append(out, el)
		}
	})
	return out
}

// Walk visits self and every descendant in document order.
func (e *Element) Walk(fn func(*Element)) {
	fn(e)
	e.walkChildren(fn)
}

func (e *Element) walkChildren(fn func(*Element)) {
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Remove detaches child from the element. Removing an element that is
// no longer a child is a no-op.
func (e *Element) Remove(child *Element) {
	for i, c := range e.Children {
		if c == child {
			e.Children = append(e.Children[:i], e.Children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Detach removes the element from its parent, if it still has one.
func (e *Element) Detach() {
	if e.parent != nil {
		e.parent.Remove(e)
	}
}

// Index returns the element's position among its parent's children, or
// -1 if detached.
func (e *Element) Index() int {
	if e.parent == nil {
		return -1
	}
	for i, c := range e.parent.Children {
		if c == e {
			return i
		}
	}
	return -1
}

// FindByID returns the first descendant (or self) whose identifier
// matches id, or nil.
func (d *Document) FindByID(id string) *Element {
	var found *Element
	d.Root.Walk(func(el *Element) {
		if found == nil && el.ID() == id {
			found = el
		}
	})
	return found
}

// Sources returns every thesu:source element in document order.
func (d *Document) Sources() []*Element {
	return d.Root.Descendants(TagSource)
}

// TopElements returns the direct children of the AEsystem container
// that are THESIS, SUPPORT, or MISC elements, in document order.
func (d *Document) TopElements() []*Element {
	var out []*Element
	for _, sys := range d.Root.Descendants(TagAESystem) {
		for _, c := range sys.Children {
			if c.Is(TagThesis) || c.Is(TagSupport) || c.Is(TagMisc) {
				out = append(out, c)
			}
		}
	}
	return out
}
