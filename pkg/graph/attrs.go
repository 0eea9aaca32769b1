package graph

import (
	"fmt"
	"strings"
)

// Attr is a single key/value pair on a node, edge, or cluster.
// Raw values are written verbatim after the '=' (HTML labels, bare
// keywords like dir=none); non-raw values are quoted on output.
type Attr struct {
	Key string
	Val string
	Raw bool
}

// Attrs is an ordered attribute list. Insertion order is preserved so
// serialized output is stable across runs.
type Attrs struct {
	list []Attr
}

// NewAttrs returns an empty ordered attribute list.
func NewAttrs() *Attrs { return &Attrs{} }

// Set stores a quoted attribute, replacing an existing value in place.
func (a *Attrs) Set(key, val string) *Attrs { return a.put(key, val, false) }

// SetRaw stores an attribute emitted verbatim (HTML labels, dir=none).
func (a *Attrs) SetRaw(key, val string) *Attrs { return a.put(key, val, true) }

func (a *Attrs) put(key, val string, raw bool) *Attrs {
	for i := range a.list {
		if a.list[i].Key == key {
			a.list[i].Val = val
			a.list[i].Raw = raw
			return a
		}
	}
	a.list = append(a.list, Attr{Key: key, Val: val, Raw: raw})
	return a
}

// Get returns the value for key and whether it was present.
func (a *Attrs) Get(key string) (string, bool) {
	for i := range a.list {
		if a.list[i].Key == key {
			return a.list[i].Val, true
		}
	}
	return "", false
}

// Value returns the value for key, or "" if absent.
func (a *Attrs) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

// Has reports whether key is present.
func (a *Attrs) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Delete removes key if present. Removing an absent key is a no-op.
func (a *Attrs) Delete(key string) {
	for i := range a.list {
		if a.list[i].Key == key {
			a.list = append(a.list[:i], a.list[i+1:]...)
			return
		}
	}
}

// Len returns the number of attributes.
func (a *Attrs) Len() int {
	if a == nil {
		return 0
	}
	return len(a.list)
}

// Pairs returns a copy of the attribute list in insertion order.
func (a *Attrs) Pairs() []Attr {
	if a == nil {
		return nil
	}
	out := make([]Attr, len(a.list))
	copy(out, a.list)
	return out
}

// Clone returns an independent copy.
func (a *Attrs) Clone() *Attrs {
	if a == nil {
		return NewAttrs()
	}
	c := &Attrs{list: make([]Attr, len(a.list))}
	copy(c.list, a.list)
	return c
}

// String renders the list as `k="v", k2=v2` without surrounding brackets.
func (a *Attrs) String() string {
	if a == nil || len(a.list) == 0 {
		return ""
	}
	var b strings.Builder
	for i, at := range a.list {
		if i > 0 {
			b.WriteString(", ")
		}
		if at.Raw {
			fmt.Fprintf(&b, "%s=%s", at.Key, at.Val)
		} else {
			fmt.Fprintf(&b, "%s=%q", at.Key, at.Val)
		}
	}
	return b.String()
}
