package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alchemeast/thesugraph/pkg/pipeline"
	"github.com/alchemeast/thesugraph/pkg/render"
)

// renderCommand creates the render command: re-export an existing DOT
// file without rebuilding the graph.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		engine  string
		formats string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "render <graph.dot>",
		Short: "Render an existing DOT file",
		Long: `Render lays out a previously built DOT file and writes the requested
output formats next to it (or into --output). The layout parameters
come from the settings file, so a DOT built earlier can be re-rendered
with a different engine or resolution without rebuilding the graph.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := c.loadSettings()
			if err != nil {
				return err
			}
			if engine == "" {
				engine = cfg.Layout.DefaultEngine
			}
			if err := pipeline.ValidateEngine(engine); err != nil {
				return err
			}
			requested := parseFormats(formats)
			if len(requested) == 0 {
				requested = []string{pipeline.FormatSVG}
			}
			for _, f := range requested {
				if err := pipeline.ValidateFormat(f); err != nil {
					return err
				}
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read DOT: %w", err)
			}

			exporter := render.New(render.Options{
				Logger:   c.Logger,
				Engine:   engine,
				Settings: cfg.EngineSettings(engine),
				Info: render.InfoBox{
					XMLName: strings.TrimSuffix(filepath.Base(args[0]), ".dot"),
					Engine:  engine,
				},
				PDF: render.FormatOptions{Size: cfg.Output.PDFSettings.Size, DPI: cfg.Output.PDFSettings.DPI},
				PNG: render.FormatOptions{
					Size:         cfg.Output.PNGSettings.Size,
					DPI:          cfg.Output.PNGSettings.DPI,
					MaxWarningMB: cfg.Output.PNGSettings.MaxWarningMB,
				},
			})

			prog := newProgress(c.Logger)
			prepared := exporter.Prepare(string(data))
			artifacts := map[string][]byte{}
			for _, format := range requested {
				var out []byte
				switch format {
				case pipeline.FormatSVG:
					out, err = exporter.SVG(ctx, prepared)
				case pipeline.FormatPDF:
					out, err = exporter.PDF(ctx, prepared)
				case pipeline.FormatPNG:
					out, err = exporter.PNG(ctx, prepared)
				}
				if err != nil {
					return fmt.Errorf("render %s: %w", format, err)
				}
				artifacts[format] = out
			}
			prog.done(fmt.Sprintf("Rendered %d format(s)", len(artifacts)))

			dir := outDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}
			base := strings.TrimSuffix(filepath.Base(args[0]), ".dot")
			for _, format := range requested {
				p := filepath.Join(dir, base+"."+format)
				if err := os.WriteFile(p, artifacts[format], 0o644); err != nil {
					return fmt.Errorf("write %s: %w", p, err)
				}
				printFile(p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&engine, "engine", "e", "", "layout engine: dot, fdp or neato")
	cmd.Flags().StringVarP(&formats, "formats", "f", "svg", "comma-separated output formats (svg,pdf,png)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "output directory (default: alongside the DOT file)")

	return cmd
}
