package render

import "strings"

// RemapColors rewrites color values in DOT text per the remap table.
// Keys and values are color literals as they appear in attributes,
// typically "#rrggbb" hex strings. Both double- and single-quoted
// occurrences are rewritten, covering plain attributes and the font
// tags inside HTML labels. An empty table returns the input unchanged.
func RemapColors(dot string, remap map[string]string) string {
	if len(remap) == 0 {
		return dot
	}
	pairs := make([]string, 0, len(remap)*4)
	for from, to := range remap {
		if from == "" || to == "" || from == to {
			continue
		}
		pairs = append(pairs,
			`"`+from+`"`, `"`+to+`"`,
			`'`+from+`'`, `'`+to+`'`,
		)
	}
	if len(pairs) == 0 {
		return dot
	}
	return strings.NewReplacer(pairs...).Replace(dot)
}
