package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/alchemeast/thesugraph/pkg/cache"
	"github.com/alchemeast/thesugraph/pkg/config"
	"github.com/alchemeast/thesugraph/pkg/orient"
	"github.com/alchemeast/thesugraph/pkg/render"
)

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"dot", "svg", "pdf", "png"} {
		if err := ValidateFormat(f); err != nil {
			t.Errorf("ValidateFormat(%q) = %v, want nil", f, err)
		}
	}
	for _, f := range []string{"", "jpeg", "SVG"} {
		if err := ValidateFormat(f); err == nil {
			t.Errorf("ValidateFormat(%q) = nil, want error", f)
		}
	}
}

func TestValidateEngine(t *testing.T) {
	for _, e := range []string{"dot", "fdp", "neato"} {
		if err := ValidateEngine(e); err != nil {
			t.Errorf("ValidateEngine(%q) = %v, want nil", e, err)
		}
	}
	if err := ValidateEngine("circo"); err == nil {
		t.Error("ValidateEngine(circo) = nil, want error")
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Input: "corpus.xml"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error = %v", err)
	}

	if opts.Engine != EngineDot {
		t.Errorf("Engine = %q, want dot", opts.Engine)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatSVG {
		t.Errorf("Formats = %v, want [svg]", opts.Formats)
	}
	if opts.OrientTimeout != DefaultOrientTimeout {
		t.Errorf("OrientTimeout = %v, want %v", opts.OrientTimeout, DefaultOrientTimeout)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}

	// Idempotent: a second call must not reset anything.
	opts.Engine = "fdp"
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("second ValidateAndSetDefaults() error = %v", err)
	}
	if opts.Engine != "fdp" {
		t.Error("second validation should be a no-op")
	}
}

func TestOptionsValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"missing input", Options{}},
		{"bad engine", Options{Input: "c.xml", Engine: "twopi"}},
		{"bad format", Options{Input: "c.xml", Formats: []string{"gif"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); err == nil {
				t.Error("ValidateAndSetDefaults() = nil, want error")
			}
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg := config.Default()
	opts := FromSettings(cfg)

	if opts.Engine != "dot" {
		t.Errorf("Engine = %q, want dot", opts.Engine)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatSVG {
		t.Errorf("Formats = %v, want [svg]", opts.Formats)
	}
	if !opts.Filter.FilterMatchingSequences {
		t.Error("matching-sequence filter should default on")
	}
	if opts.Filter.FilterPropositions {
		t.Error("proposition filter should default off")
	}
	if opts.PNG.DPI != 1400 {
		t.Errorf("PNG.DPI = %d, want 1400", opts.PNG.DPI)
	}
	if opts.EngineSettings["splines"] != "ortho" {
		t.Errorf("EngineSettings[splines] = %v, want ortho", opts.EngineSettings["splines"])
	}
}

func TestRelationExprs(t *testing.T) {
	exprs := relationExprs(map[string][]string{
		"q1.P2": {"q1.T1", "q1.T3"},
	})
	if len(exprs) != 2 {
		t.Fatalf("got %d expressions, want 2", len(exprs))
	}
	for _, e := range exprs {
		if e != "q1.T1 to q1.P2" && e != "q1.T3 to q1.P2" {
			t.Errorf("unexpected expression %q", e)
		}
	}
}

func TestArtifactKeyOptsVaryByFormat(t *testing.T) {
	opts := Options{
		Input: "c.xml",
		PDF:   render.FormatOptions{Size: "11.7,16.5", DPI: 300},
		PNG:   render.FormatOptions{Size: "11.7,16.5", DPI: 1400},
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	pdf := opts.ArtifactKeyOpts(FormatPDF)
	png := opts.ArtifactKeyOpts(FormatPNG)
	svg := opts.ArtifactKeyOpts(FormatSVG)

	if pdf.DPI != 300 || png.DPI != 1400 {
		t.Errorf("per-format DPI not propagated: pdf=%d png=%d", pdf.DPI, png.DPI)
	}
	if svg.DPI != 0 || svg.Size != "" {
		t.Errorf("svg keys should not carry raster settings: %+v", svg)
	}
}

type stubOracle struct {
	pos   map[string]orient.Point
	err   error
	calls int
}

func (s *stubOracle) Positions(ctx context.Context, dot string) (map[string]orient.Point, error) {
	s.calls++
	return s.pos, s.err
}

func TestCachingOracleCachesPositions(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer fc.Close()

	stub := &stubOracle{pos: map[string]orient.Point{"n1": {X: 1, Y: 2}}}
	mk := func() *cachingOracle {
		return &cachingOracle{
			inner: stub,
			cache: fc,
			keyer: cache.NewDefaultKeyer(),
			opts:  cache.LayoutKeyOpts{Engine: "dot"},
		}
	}

	first := mk()
	pos, err := first.Positions(ctx, "digraph G {}")
	if err != nil {
		t.Fatal(err)
	}
	if first.hit {
		t.Error("first lookup should miss")
	}
	if pos["n1"].Y != 2 {
		t.Errorf("positions = %v", pos)
	}

	second := mk()
	pos, err = second.Positions(ctx, "digraph G {}")
	if err != nil {
		t.Fatal(err)
	}
	if !second.hit {
		t.Error("second lookup should hit the cache")
	}
	if pos["n1"].X != 1 {
		t.Errorf("cached positions = %v", pos)
	}
	if stub.calls != 1 {
		t.Errorf("oracle called %d times, want 1", stub.calls)
	}
}

func TestCachingOracleRefreshBypassesCache(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer fc.Close()

	stub := &stubOracle{pos: map[string]orient.Point{}}
	o := &cachingOracle{
		inner:   stub,
		cache:   fc,
		keyer:   cache.NewDefaultKeyer(),
		refresh: true,
	}
	for i := 0; i < 2; i++ {
		if _, err := o.Positions(ctx, "digraph G {}"); err != nil {
			t.Fatal(err)
		}
	}
	if stub.calls != 2 {
		t.Errorf("oracle called %d times with refresh, want 2", stub.calls)
	}
}

func TestCachingOraclePropagatesErrors(t *testing.T) {
	wantErr := errors.New("layout failed")
	o := &cachingOracle{
		inner: &stubOracle{err: wantErr},
		cache: cache.NewNullCache(),
		keyer: cache.NewDefaultKeyer(),
	}
	if _, err := o.Positions(context.Background(), "digraph G {}"); !errors.Is(err, wantErr) {
		t.Errorf("Positions() error = %v, want %v", err, wantErr)
	}
}
