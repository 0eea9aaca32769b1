package orient

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"
)

// Graphviz is the production [Oracle]: it lays the graph out in
// process and reads node centers back from the plain-text output.
type Graphviz struct{}

// Positions lays out the DOT text and returns node centers keyed by
// node ID.
func (Graphviz) Positions(ctx context.Context, dot string) (map[string]Point, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.Format("plain"), &buf); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	return parsePlain(&buf)
}

// parsePlain extracts "node <name> <x> <y> ..." records from Graphviz
// plain output. Names are quoted when they contain characters outside
// the bare identifier set, which element IDs with dots always do.
func parsePlain(r io.Reader) (map[string]Point, error) {
	pos := map[string]Point{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		fields := splitPlainFields(sc.Text())
		if len(fields) < 4 || fields[0] != "node" {
			continue
		}
		x, errX := strconv.ParseFloat(fields[2], 64)
		y, errY := strconv.ParseFloat(fields[3], 64)
		if errX != nil || errY != nil {
			continue
		}
		pos[fields[1]] = Point{X: x, Y: y}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return pos, nil
}

// splitPlainFields splits one plain-output line on spaces, honouring
// double-quoted fields with backslash escapes.
func splitPlainFields(line string) []string {
	var fields []string
	var b strings.Builder
	inQuote := false
	escaped := false
	flush := func() {
		if b.Len() > 0 {
			fields = append(fields, b.String())
			b.Reset()
		}
	}
	for _, r := range line {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
			if !inQuote {
				fields = append(fields, b.String())
				b.Reset()
			}
		case r == ' ' && !inQuote:
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return fields
}
