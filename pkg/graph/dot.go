package graph

import (
	"bytes"
	"fmt"
	"strings"
)

// ToDOT serializes the graph as Graphviz DOT text. Statements keep
// their tree order, one per line, separated by single blank lines.
// Consecutive blank lines never appear in the output, so serialization
// doubles as blank-run normalization.
func ToDOT(g *Graph) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "digraph %s {\n", g.Name)
	for _, at := range g.Attrs.Pairs() {
		writeAttrLine(&buf, 0, at)
	}
	if g.Attrs.Len() > 0 {
		buf.WriteString("\n")
	}

	writeStmts(&buf, g.stmts, 1)

	buf.WriteString("}\n")
	return normalizeBlankRuns(buf.String())
}

func writeStmts(buf *bytes.Buffer, stmts []Stmt, depth int) {
	indent := strings.Repeat("    ", depth)
	for _, s := range stmts {
		switch v := s.(type) {
		case *Node:
			if v.Attrs.Len() > 0 {
				fmt.Fprintf(buf, "%s%q [%s];\n\n", indent, v.ID, v.Attrs.String())
			} else {
				fmt.Fprintf(buf, "%s%q;\n\n", indent, v.ID)
			}
		case *Edge:
			if v.Attrs.Len() > 0 {
				fmt.Fprintf(buf, "%s%q -> %q [%s];\n\n", indent, v.From, v.To, v.Attrs.String())
			} else {
				fmt.Fprintf(buf, "%s%q -> %q;\n\n", indent, v.From, v.To)
			}
		case *Cluster:
			fmt.Fprintf(buf, "%ssubgraph %s {\n", indent, ClusterName(v.ID))
			if v.Label != "" {
				fmt.Fprintf(buf, "%s    label=%s;\n", indent, v.Label)
			}
			for _, at := range v.Attrs.Pairs() {
				writeAttrLine(buf, depth+1, at)
			}
			buf.WriteString("\n")
			writeStmts(buf, v.Stmts, depth+1)
			fmt.Fprintf(buf, "%s}\n\n", indent)
		case *Section:
			name := "source_" + sanitizeSubgraphName(v.ID)
			if v.ID == "" {
				name = "unassigned"
			}
			fmt.Fprintf(buf, "%ssubgraph %s {\n", indent, name)
			if v.Label != "" {
				fmt.Fprintf(buf, "%s    label=%q;\n", indent, v.Label)
			}
			buf.WriteString("\n")
			writeStmts(buf, v.Stmts, depth+1)
			fmt.Fprintf(buf, "%s}\n\n", indent)
		}
	}
}

func writeAttrLine(buf *bytes.Buffer, depth int, at Attr) {
	indent := strings.Repeat("    ", depth)
	if at.Raw {
		fmt.Fprintf(buf, "%s%s=%s;\n", indent, at.Key, at.Val)
	} else {
		fmt.Fprintf(buf, "%s%s=%q;\n", indent, at.Key, at.Val)
	}
}

// ClusterName returns the subgraph name a cluster is emitted under.
// Edge lhead/ltail attributes must use this exact name to point at the
// cluster boundary. Element IDs may contain dots, which are not legal
// in bare DOT identifiers, so the ID is sanitized.
func ClusterName(id string) string {
	return "cluster_" + sanitizeSubgraphName(id)
}

// sanitizeSubgraphName maps an element ID onto a safe DOT identifier.
func sanitizeSubgraphName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// normalizeBlankRuns collapses runs of blank lines to a single blank
// line and drops blank lines directly before a closing brace.
func normalizeBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			if len(out) == 0 || strings.TrimSpace(out[len(out)-1]) == "" {
				continue
			}
			// drop the blank if the next non-empty line closes a block
			if nextNonEmpty(lines, i+1) == "}" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func nextNonEmpty(lines []string, from int) string {
	for i := from; i < len(lines); i++ {
		if t := strings.TrimSpace(lines[i]); t != "" {
			return t
		}
	}
	return ""
}
