// Package ident allocates identifiers for synthetic mediator nodes.
//
// Mediator IDs are derived from the relation kind and the two element
// IDs the relation connects, disambiguated by a seed. Allocation is a
// pure function of its arguments plus a snapshot of everything already
// committed to the graph, so a run with identical input and filter
// configuration derives identical IDs.
package ident

import (
	"fmt"
	"strings"
)

// NodeID is an allocated mediator identifier. The distinct type keeps
// composite values (relation tuples, struct dumps) out of id fields:
// only this package can mint one.
type NodeID string

// String returns the raw identifier.
func (n NodeID) String() string { return string(n) }

// Snapshot answers whether an identifier is already committed to the
// graph, either as a node definition or as an edge endpoint.
// *graph.Graph satisfies it.
type Snapshot interface {
	Has(id string) bool
}

// Role selects the identifier pattern for a relation kind.
type Role int

const (
	// RoleTarget covers support-target mediators: anchor_to_other.
	RoleTarget Role = iota
	// RoleEntailment covers entailment mediators; the anchor is the
	// entailing reference, the other is the entailed element.
	RoleEntailment
	// RoleEtiology covers cause/purpose mediators:
	// anchor_in_etiology_in_other.
	RoleEtiology
	// RoleAnalogy covers analogy mediators: anchor_analogy_to_other.
	RoleAnalogy
	// RoleReference covers reference mediators:
	// anchor_referenced-in_other.
	RoleReference
	// RoleMatchingProposition covers proposition-match mediators.
	RoleMatchingProposition
	// RoleMatchingSequence covers sequence-bridge mediators between a
	// thesis sequence cluster and a proposition sequence cluster.
	RoleMatchingSequence
	// RoleMatchingPhase covers phase-level cross-link mediators.
	RoleMatchingPhase
)

func (r Role) pattern(anchor, other string) string {
	switch r {
	case RoleEtiology:
		return anchor + "_in_etiology_in_" + other
	case RoleAnalogy:
		return anchor + "_analogy_to_" + other
	case RoleReference:
		return anchor + "_referenced-in_" + other
	default:
		return anchor + "_to_" + other
	}
}

// Seed disambiguates mediator IDs for repeated relations between the
// same pair. Numeric seeds increment on collision; string seeds keep
// the seed text and append an incrementing counter.
type Seed struct {
	text    string
	n       int
	numeric bool
}

// NumericSeed returns a seed that increments by one on collision.
func NumericSeed(n int) Seed { return Seed{n: n, numeric: true} }

// StringSeed returns a textual seed such as "unspecified". All-digit
// text is treated as a numeric seed.
func StringSeed(s string) Seed {
	if n, ok := parseDigits(s); ok {
		return NumericSeed(n)
	}
	return Seed{text: s}
}

func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// Allocate derives a mediator ID for the relation and keeps adjusting
// the disambiguator until the snapshot reports no collision. It never
// returns an ID the snapshot already contains.
func Allocate(snap Snapshot, role Role, anchorID, otherID string, seed Seed) NodeID {
	base := role.pattern(anchorID, otherID)

	if seed.numeric {
		n := seed.n
		id := fmt.Sprintf("%s_%d", base, n)
		for snap.Has(id) {
			n++
			id = fmt.Sprintf("%s_%d", base, n)
		}
		return NodeID(id)
	}

	id := base + "_" + seed.text
	for counter := 1; snap.Has(id); counter++ {
		id = fmt.Sprintf("%s_%s_%d", base, seed.text, counter)
	}
	return NodeID(id)
}

// ForFunction returns the deterministic ID of an element's support
// function mediator. At most one exists per element, so no
// disambiguation is needed.
func ForFunction(elementID string) NodeID { return NodeID(elementID + "_func") }

// ForEmployed returns the deterministic ID of an element's
// employed-element mediator.
func ForEmployed(elementID string) NodeID { return NodeID(elementID + "_employed") }

// IsMediator reports whether an ID follows one of the synthetic
// mediator patterns. The connectivity pruning pass uses this to
// classify nodes without consulting the source document.
func IsMediator(id string) bool {
	if strings.HasSuffix(id, "_func") || strings.HasSuffix(id, "_employed") {
		return true
	}
	return strings.Contains(id, "_to_") ||
		strings.Contains(id, "_in_etiology_in_") ||
		strings.Contains(id, "_analogy_to_") ||
		strings.Contains(id, "_referenced-in_")
}
