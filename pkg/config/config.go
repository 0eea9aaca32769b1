// Package config loads the thesugraph.toml settings file.
//
// The file mirrors the layout users know from notebook runs: a [paths]
// table pointing at the corpus, [filters] with the toggle set and the
// custom per-thesis exclusion tables, per-engine [layout.*] tables, an
// [output] table with per-format export settings, and [system] for the
// environment. Every key is optional; missing keys fall back to the
// defaults returned by [Default].
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Settings is the merged user configuration.
type Settings struct {
	Paths   Paths             `toml:"paths"`
	Filters Filters           `toml:"filters"`
	Layout  Layout            `toml:"layout"`
	Output  Output            `toml:"output"`
	System  System            `toml:"system"`

	// Colors remaps palette colors in the generated graph, keyed by the
	// built-in color literal (e.g. "#dae8fc" = "#e8f0fe").
	Colors map[string]string `toml:"colors"`
}

// Paths locates the corpus and the output directory.
type Paths struct {
	// BaseDir holds the corpus document and its auxiliary sources.
	BaseDir string `toml:"base_dir"`

	// OutputDir receives the generated DOT and rendered artifacts.
	OutputDir string `toml:"output_dir"`

	// XMLName is the corpus document base name, without extension.
	XMLName string `toml:"xml_name"`

	// OutputBasename overrides XMLName for output file names.
	OutputBasename string `toml:"output_basename"`
}

// Filters mirrors the document filter toggles.
type Filters struct {
	SourcesToSelect        []string `toml:"sources_to_select"`
	FilterPropositions     bool     `toml:"filter_propositions"`
	FilterMatchingPropSeqs bool     `toml:"filter_matching_proposition_sequences"`
	FilterAllSequences     bool     `toml:"filter_all_sequences"`
	FilterExtrinsic        bool     `toml:"filter_extrinsic_elements"`
	ThesisFocusIDs         []string `toml:"thesis_focus_id"`
	ElementsToExclude      []string `toml:"elements_to_exclude"`

	// CustomPropositions maps a proposition ID to the thesis IDs whose
	// matches should drop it. An empty list means every thesis.
	CustomPropositions map[string][]string `toml:"custom_propositions"`

	// CustomSequences maps a sequence-bearing element ID to thesis IDs,
	// keyed like CustomPropositions.
	CustomSequences map[string][]string `toml:"custom_sequences"`
}

// Layout selects the Graphviz engine and its parameter table.
type Layout struct {
	DefaultEngine string `toml:"default_engine"`

	Dot   map[string]any `toml:"dot"`
	Fdp   map[string]any `toml:"fdp"`
	Neato map[string]any `toml:"neato"`
}

// FormatSettings holds per-format export parameters.
type FormatSettings struct {
	// Size is the Graphviz size attribute, inches, "W,H".
	Size string `toml:"size"`

	// DPI is the raster resolution.
	DPI int `toml:"dpi"`

	// MaxWarningMB triggers a size warning for larger outputs. Zero
	// disables the warning.
	MaxWarningMB float64 `toml:"max_warning_mb"`
}

// Output selects which artifacts to write.
type Output struct {
	SVG           bool           `toml:"output_svg"`
	PDF           bool           `toml:"output_pdf"`
	PNG           bool           `toml:"output_png"`
	OpenInBrowser bool           `toml:"open_in_browser"`
	PDFSettings   FormatSettings `toml:"pdf"`
	PNGSettings   FormatSettings `toml:"png"`
}

// System holds environment configuration.
type System struct {
	// GraphvizPath optionally prepends a Graphviz installation to PATH
	// for the external converters.
	GraphvizPath string `toml:"graphviz_path"`

	// CacheBackend selects the run cache: "file", "redis" or "null".
	CacheBackend string `toml:"cache_backend"`

	// CacheDir is the file cache directory.
	CacheDir string `toml:"cache_dir"`

	// RedisURL is the Redis connection string for the redis backend.
	RedisURL string `toml:"redis_url"`

	// MongoURL enables the artifact store when set.
	MongoURL string `toml:"mongo_url"`

	// MongoDatabase is the database name for the artifact store.
	MongoDatabase string `toml:"mongo_database"`
}

// Default returns the settings used when no file is present.
func Default() Settings {
	return Settings{
		Paths: Paths{
			BaseDir:   "_thesu_inputs",
			OutputDir: "_thesu_outputs",
		},
		Filters: Filters{
			FilterMatchingPropSeqs: true,
		},
		Layout: Layout{
			DefaultEngine: "dot",
			Dot: map[string]any{
				"overlap":     "scalexy",
				"splines":     "ortho",
				"nodesep":     0.25,
				"ranksep":     0.30,
				"outputorder": "edgesfirst",
				"concentrate": "false",
				"newrank":     "true",
			},
			Fdp: map[string]any{
				"overlap":     "prism",
				"splines":     "spline",
				"nodesep":     0.10,
				"outputorder": "edgesfirst",
				"concentrate": "true",
				"K":           0.5,
				"sep":         0.2,
				"maxiter":     2000,
				"start":       "regular",
			},
			Neato: map[string]any{
				"overlap":     "prism",
				"splines":     "spline",
				"nodesep":     0.1,
				"outputorder": "nodesfirst",
				"concentrate": "true",
				"K":           0.3,
				"sep":         0.05,
				"maxiter":     30000,
				"mode":        "sgd",
				"model":       "subset",
			},
		},
		Output: Output{
			SVG:         true,
			PDF:         true,
			PNG:         true,
			PDFSettings: FormatSettings{Size: "11.7,16.5", DPI: 300},
			PNGSettings: FormatSettings{Size: "11.7,16.5", DPI: 1400, MaxWarningMB: 20.0},
		},
		System: System{
			CacheBackend: "file",
		},
	}
}

// Load reads path and merges it over the defaults. A missing file is
// not an error: the defaults are returned as-is.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		path = "thesugraph.toml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.finish("")
		return s, nil
	}

	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Settings{}, fmt.Errorf("read %s: %w", path, err)
	}
	s.finish(filepath.Dir(path))
	return s, nil
}

// finish normalizes the loaded settings: IDs lose their leading '#',
// relative paths resolve against the config file's directory, and the
// engine name is validated.
func (s *Settings) finish(baseDir string) {
	s.Filters.SourcesToSelect = normalizeIDs(s.Filters.SourcesToSelect)
	s.Filters.ThesisFocusIDs = normalizeIDs(s.Filters.ThesisFocusIDs)
	s.Filters.ElementsToExclude = normalizeIDs(s.Filters.ElementsToExclude)
	s.Filters.CustomPropositions = normalizeIDMap(s.Filters.CustomPropositions)
	s.Filters.CustomSequences = normalizeIDMap(s.Filters.CustomSequences)

	if baseDir != "" {
		s.Paths.BaseDir = resolvePath(s.Paths.BaseDir, baseDir)
		s.Paths.OutputDir = resolvePath(s.Paths.OutputDir, baseDir)
	}

	s.Layout.DefaultEngine = strings.ToLower(strings.TrimSpace(s.Layout.DefaultEngine))
	if s.Layout.DefaultEngine == "" {
		s.Layout.DefaultEngine = "dot"
	}
}

// Validate reports settings the pipeline cannot run with.
func (s *Settings) Validate() error {
	switch s.Layout.DefaultEngine {
	case "dot", "fdp", "neato":
	default:
		return fmt.Errorf("invalid layout.default_engine %q (must be dot, fdp or neato)", s.Layout.DefaultEngine)
	}
	switch s.System.CacheBackend {
	case "", "file", "redis", "null":
	default:
		return fmt.Errorf("invalid system.cache_backend %q (must be file, redis or null)", s.System.CacheBackend)
	}
	if s.Paths.XMLName == "" {
		return fmt.Errorf("paths.xml_name is required")
	}
	return nil
}

// EngineSettings returns the parameter table for the configured engine,
// falling back to the dot table for unknown names.
func (s *Settings) EngineSettings(engine string) map[string]any {
	if engine == "" {
		engine = s.Layout.DefaultEngine
	}
	switch engine {
	case "fdp":
		if len(s.Layout.Fdp) > 0 {
			return s.Layout.Fdp
		}
	case "neato":
		if len(s.Layout.Neato) > 0 {
			return s.Layout.Neato
		}
	}
	return s.Layout.Dot
}

// InputPath returns the corpus document path.
func (s *Settings) InputPath() string {
	return filepath.Join(s.Paths.BaseDir, s.Paths.XMLName+".xml")
}

// OutputBase returns the base name for output files.
func (s *Settings) OutputBase() string {
	if s.Paths.OutputBasename != "" {
		return s.Paths.OutputBasename
	}
	return s.Paths.XMLName
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimPrefix(strings.TrimSpace(id), "#")
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func normalizeIDMap(m map[string][]string) map[string][]string {
	if len(m) == 0 {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[strings.TrimPrefix(strings.TrimSpace(k), "#")] = normalizeIDs(v)
	}
	return out
}

func resolvePath(p, base string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
