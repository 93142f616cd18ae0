package cli

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	perr "github.com/matzehuels/ssrpreload/pkg/errors"
	"github.com/matzehuels/ssrpreload/pkg/instrument"
)

type instrumentOptions struct {
	root     string
	out      string
	include  string
	helper   string
	target   string
	aliases  []string
	noMaps   bool
	dryRun   bool
	buildFor string
	strict   bool
}

// instrumentCommand creates the instrument command.
func (c *CLI) instrumentCommand() *cobra.Command {
	var opts instrumentOptions

	cmd := &cobra.Command{
		Use:   "instrument",
		Short: "Inject reporting calls into the targets of lazy loads",
		Long: `Instrument scans a source tree for lazy-load declarations, resolves each
target module, and rewrites the target's default export to report its id
when it renders. Results are written below --out with source maps.

The pass only runs for the server build target. For any other --build
target the command reports that nothing applies and writes no files.`,
		Example: `  ssrpreload instrument --root web --out dist/instrumented
  ssrpreload instrument --alias @=src --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInstrument(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.root, "root", "", "source root (default from config, .)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output directory (default from config)")
	cmd.Flags().StringVar(&opts.include, "include", "", "regexp selecting source files")
	cmd.Flags().StringVar(&opts.helper, "helper", "", "module the reporting hook is imported from")
	cmd.Flags().StringVar(&opts.target, "target", "", "build target the pass applies to")
	cmd.Flags().StringVar(&opts.buildFor, "build", "", "build target being produced (default: the pass target)")
	cmd.Flags().StringSliceVar(&opts.aliases, "alias", nil, "import alias as prefix=dir (repeatable)")
	cmd.Flags().BoolVar(&opts.noMaps, "no-source-maps", false, "skip source maps")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report without writing files")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail when any target could not be instrumented")

	return cmd
}

func (c *CLI) runInstrument(cmd *cobra.Command, opts instrumentOptions) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ic := cfg.Instrument
	override(&ic.Root, opts.root)
	override(&ic.Out, opts.out)
	override(&ic.Include, opts.include)
	override(&ic.HelperModule, opts.helper)
	override(&ic.Target, opts.target)

	include, err := regexp.Compile(ic.Include)
	if err != nil {
		return perr.Wrap(perr.ErrCodeConfiguration, err, "--include")
	}
	aliases, err := parseAliases(opts.aliases)
	if err != nil {
		return err
	}

	fsys := os.DirFS(ic.Root)
	pass := instrument.NewPass(instrument.Options{
		Target:       ic.Target,
		Include:      include,
		HelperModule: ic.HelperModule,
		Resolver:     instrument.FSResolver{FS: fsys, Aliases: aliases},
		SourceMaps:   !opts.noMaps,
		Logger:       c.Logger,
	})

	out := cmd.OutOrStdout()
	build := opts.buildFor
	if build == "" {
		build = ic.Target
	}
	if !pass.Applies(build) {
		printInfo(out, "Build target %q is not instrumented (pass runs for %q)", build, ic.Target)
		return nil
	}

	spinner := newSpinner(ctx, cmd.ErrOrStderr(), "Scanning "+ic.Root)
	spinner.Start()
	sources, err := pass.Collect(ctx, fsys)
	if err != nil {
		spinner.StopWithError("Scan failed")
		return err
	}
	spinner.Stage("Instrumenting %d sources", len(sources))
	results, err := pass.Program(ctx, sources)
	if err != nil {
		spinner.StopWithError("Instrumentation failed")
		return err
	}
	spinner.Stop()

	summary := pass.Summary()
	var changed, diagnostics int
	for _, r := range results {
		if r.Changed {
			changed++
		}
		for _, d := range r.Diagnostics {
			diagnostics++
			printWarning(out, "%s", d)
		}
	}
	for _, id := range summary.NotInjected {
		printDetail(out, "not instrumented: %s", id)
	}

	printSuccess(out, "Instrumented %d lazy targets", summary.Count)
	printStats(out,
		fmt.Sprintf("%d files", len(sources)),
		fmt.Sprintf("%d targets", len(summary.Targets)),
		fmt.Sprintf("%d changed", changed),
		fmt.Sprintf("%d diagnostics", diagnostics),
	)

	if !opts.dryRun {
		if err := instrument.WriteResults(ic.Out, results); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		printFile(out, ic.Out)
		printNextStep(out, "Serve the build", appName+" serve")
	}

	if opts.strict && len(summary.NotInjected) > 0 {
		return perr.New(perr.ErrCodeShapeMismatch, "%d lazy targets could not be instrumented", len(summary.NotInjected))
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseAliases turns ["@=src", "~lib=lib"] into an alias map.
func parseAliases(specs []string) (map[string]string, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	aliases := make(map[string]string, len(specs))
	for _, s := range specs {
		prefix, dir, ok := strings.Cut(s, "=")
		if !ok || prefix == "" || dir == "" {
			return nil, perr.New(perr.ErrCodeInvalidInput, "invalid alias %q (want prefix=dir)", s)
		}
		aliases[prefix] = dir
	}
	return aliases, nil
}
