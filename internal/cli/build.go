package cli

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alchemeast/thesugraph/pkg/pipeline"
)

// buildCommand creates the build command: the full corpus-to-artifact
// pipeline.
func (c *CLI) buildCommand() *cobra.Command {
	var (
		input   string
		engine  string
		formats string
		outDir  string
		noCache bool
		refresh bool
		open    bool
	)

	cmd := &cobra.Command{
		Use:   "build [corpus.xml]",
		Short: "Build graph artifacts from a corpus document",
		Long: `Build loads a corpus document, applies the configured filters,
constructs the argument graph and renders it with Graphviz.

The corpus can be given as an argument, via --input, or through the
[paths] table of the settings file. Outputs land in the configured
output directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := c.loadSettings()
			if err != nil {
				return err
			}
			opts := pipeline.FromSettings(cfg)
			opts.Logger = c.Logger
			opts.Refresh = refresh
			if len(args) == 1 {
				opts.Input = args[0]
				opts.BaseDir = ""
				opts.Name = ""
			}
			if input != "" {
				opts.Input = input
				opts.BaseDir = ""
				opts.Name = ""
			}
			if engine != "" {
				opts.Engine = engine
				opts.EngineSettings = cfg.EngineSettings(engine)
			}
			if formats != "" {
				opts.Formats = parseFormats(formats)
			}
			if opts.Input == "" {
				return fmt.Errorf("no corpus document: pass one or set paths.xml_name in the settings file")
			}

			runner, err := c.newRunner(ctx, cfg, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			spinner := newSpinnerWithContext(ctx, "Building graph...")
			spinner.Start()
			result, err := runner.Execute(ctx, opts)
			if err != nil {
				spinner.StopWithError(fmt.Sprintf("Build failed: %v", err))
				return err
			}
			spinner.StopWithSuccess(fmt.Sprintf("Built %s", opts.Name))
			printStats(result.Stats.NodeCount, result.Stats.EdgeCount, result.CacheInfo.ExportHit)

			dir := outDir
			if dir == "" {
				dir = cfg.Paths.OutputDir
			}
			base := cfg.OutputBase()
			if base == "" {
				base = opts.Name
			}
			paths, err := writeArtifacts(dir, base, result.DOT, result.Artifacts)
			if err != nil {
				return err
			}
			for _, p := range paths {
				printFile(p)
			}

			if open || cfg.Output.OpenInBrowser {
				opened := false
				for _, p := range paths {
					if strings.HasSuffix(p, ".svg") {
						openInBrowser(p)
						opened = true
						break
					}
				}
				if !opened {
					printWarning("No SVG output to open; add svg to --formats")
				}
			}
			printNextStep("Browse stored runs", "thesugraph artifacts browse")
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "corpus document path or URL")
	cmd.Flags().StringVarP(&engine, "engine", "e", "", "layout engine: dot, fdp or neato")
	cmd.Flags().StringVarP(&formats, "formats", "f", "", "comma-separated output formats (svg,pdf,png)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the run cache")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached layouts and artifacts")
	cmd.Flags().BoolVar(&open, "open", false, "open the SVG in a browser")

	return cmd
}

// openInBrowser opens path with the platform default handler. Failures
// are silent: the file is already on disk.
func openInBrowser(path string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	_ = cmd.Start()
}
