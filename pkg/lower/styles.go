package lower

import (
	"fmt"
	"math"
	"strings"
)

// style bundles the visual attributes of one node class.
type style struct {
	GephiLabel  string
	Fill        string
	Peripheries string
	Shape       string
}

// Support function names as they appear in labels.
const (
	FuncJustifies      = "JUSTIFIES"
	FuncRefutes        = "REFUTES"
	FuncDiscusses      = "DISCUSSES"
	FuncExplains       = "EXPLAINS"
	FuncExpandsOn      = "EXPANDS ON"
	FuncContextualizes = "CONTEXTUALIZES"
)

// functionStyles maps a support function to its explicit and implicit
// styling. The implicit variant is washed out and parenthesized.
var functionStyles = map[string]map[bool]style{
	FuncJustifies: {
		false: {GephiLabel: "jus", Fill: "#dae8fc", Peripheries: "#7c9ac7", Shape: "diamond"},
		true:  {GephiLabel: "(jus)", Fill: "#f5f8fd", Peripheries: "#949ebf", Shape: "diamond"},
	},
	FuncRefutes: {
		false: {GephiLabel: "ref", Fill: "#f8cecc", Peripheries: "#b95753", Shape: "diamond"},
		true:  {GephiLabel: "(ref)", Fill: "#fdf6f6", Peripheries: "#a89794", Shape: "diamond"},
	},
	FuncDiscusses: {
		false: {GephiLabel: "dis", Fill: "#ffff99", Peripheries: "#b3b300", Shape: "diamond"},
		true:  {GephiLabel: "(dis)", Fill: "#ffffe6", Peripheries: "#999966", Shape: "diamond"},
	},
	FuncExplains: {
		false: {GephiLabel: "exp", Fill: "#edffc4", Peripheries: "#927b89", Shape: "parallelogram"},
		true:  {GephiLabel: "(exp)", Fill: "#f9facb", Peripheries: "#a59ba1", Shape: "parallelogram"},
	},
	FuncExpandsOn: {
		false: {GephiLabel: "exc", Fill: "#999999", Peripheries: "#4d4d4d", Shape: "invhouse"},
		true:  {GephiLabel: "(exc)", Fill: "#cccccc", Peripheries: "#828282", Shape: "invhouse"},
	},
	FuncContextualizes: {
		false: {GephiLabel: "con", Fill: "#ecd4bb", Peripheries: "#b39c84", Shape: "cylinder"},
		true:  {GephiLabel: "(con)", Fill: "#f6ede6", Peripheries: "#b3a89a", Shape: "cylinder"},
	},
}

// Base palettes shared across element kinds.
const (
	thesisFill   = "#f0faf0"
	thesisBorder = "#82b366"

	mutedFill   = "#fcfffd"
	mutedBorder = "#666666"

	miscFill        = "#ecd4bb"
	miscBorder      = "#b39c84"
	miscMutedFill   = "#f6ede6"
	miscMutedBorder = "#b3a89a"

	supportFallbackFill   = "#dae8fc"
	supportFallbackBorder = "#7c9ac7"

	propositionFill   = "#f9edff"
	propositionBorder = "#9673a6"

	etiologyFill   = "#e0ffff"
	etiologyBorder = "#008b8b"

	analogyFill   = "#ffffd0"
	analogyBorder = "#d4d400"

	referenceFill   = "#f0f3e0"
	referenceBorder = "#708238"

	employedFill   = "#ffe6cc"
	employedBorder = "#d79c02"

	omittedUnspecFill   = "#f5f5f5"
	omittedUnspecBorder = "#a0a0a0"

	// Saturated end of the phase-match gradient: a phase whose sequence
	// expects proposition matches but has none verified.
	unverifiedPhaseFill   = "#c1d5c2"
	unverifiedPhaseBorder = "#a2b9a3"
)

// interpolateColor blends two hex colors. The ratio is square-root
// biased so partial verification already reads as mostly verified.
func interpolateColor(from, to string, ratio float64) string {
	biased := math.Sqrt(ratio)
	fr, fg, fb := hexToRGB(from)
	tr, tg, tb := hexToRGB(to)
	blend := func(a, b int) int {
		return int(float64(a) + (float64(b)-float64(a))*biased)
	}
	return fmt.Sprintf("#%02x%02x%02x", blend(fr, tr), blend(fg, tg), blend(fb, tb))
}

func hexToRGB(hex string) (r, g, b int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	parse := func(s string) int {
		n := 0
		for _, c := range s {
			n *= 16
			switch {
			case c >= '0' && c <= '9':
				n += int(c - '0')
			case c >= 'a' && c <= 'f':
				n += int(c-'a') + 10
			case c >= 'A' && c <= 'F':
				n += int(c-'A') + 10
			}
		}
		return n
	}
	return parse(hex[0:2]), parse(hex[2:4]), parse(hex[4:6])
}
