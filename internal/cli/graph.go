package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ssrpreload/pkg/manifest"
)

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		manifestPath string
		output       string
		format       string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Draw the chunk graph of a build manifest",
		Long: `Graph draws every chunk of the build manifest and its imports. Static
imports are solid edges, dynamic imports are dashed, and imports missing
from the manifest are dotted placeholder nodes.`,
		Example: `  ssrpreload graph -o chunks.svg
  ssrpreload graph --format dot | dot -Tpng > chunks.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			override(&cfg.Manifest.Path, manifestPath)
			if format == "" {
				format = formatFromPath(output)
			}

			prog := newProgress(c.Logger)
			m, err := manifest.Load(cfg.Manifest.Path)
			if err != nil {
				return err
			}
			data, err := m.RenderGraph(cmd.Context(), format)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			prog.done("Rendered chunk graph", "chunks", m.Len(), "format", format)
			printFile(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "path to the build manifest (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "dot, svg, or png (default from --output extension, else dot)")

	return cmd
}

// formatFromPath picks the graph format from a file extension.
func formatFromPath(path string) string {
	switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
	case manifest.FormatSVG, manifest.FormatPNG:
		return ext
	}
	return manifest.FormatDOT
}
