package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ssrpreload/pkg/collector"
	"github.com/matzehuels/ssrpreload/pkg/manifest"
	"github.com/matzehuels/ssrpreload/pkg/preload"
)

// Output formats for the resolve command.
const (
	formatTable = "table"
	formatTags  = "tags"
	formatLink  = "link"
	formatJSON  = "json"
)

type resolveOptions struct {
	manifest          string
	format            string
	base              string
	nonce             string
	entry             string
	includeEntrypoint bool
	preloadAssets     bool
	entryAssets       bool
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var opts resolveOptions

	cmd := &cobra.Command{
		Use:   "resolve [module-id...]",
		Short: "Print the preloads for a set of rendered lazy units",
		Long: `Resolve collects the given module ids the way a server render would and
prints the assets they need, in emission order.`,
		Example: `  ssrpreload resolve src/Card.tsx src/Panel.tsx
  ssrpreload resolve --format link src/Card.tsx
  ssrpreload resolve --entry-assets --include-entrypoint`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !opts.entryAssets {
				return fmt.Errorf("no module ids given")
			}
			return c.runResolve(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.manifest, "manifest", "m", "", "path to the build manifest (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatTable, "output format: table, tags, link, json")
	cmd.Flags().StringVar(&opts.base, "base", "", "public path prefix for hrefs (default from config)")
	cmd.Flags().StringVar(&opts.nonce, "nonce", "", "nonce attribute for tags")
	cmd.Flags().StringVar(&opts.entry, "entry", "", "designated page entry id")
	cmd.Flags().BoolVar(&opts.includeEntrypoint, "include-entrypoint", false, "emit the page entry chunk")
	cmd.Flags().BoolVar(&opts.preloadAssets, "assets", true, "emit preloads for fonts and images")
	cmd.Flags().BoolVar(&opts.entryAssets, "entry-assets", false, "resolve the page entries instead of module ids")

	return cmd
}

func (c *CLI) runResolve(cmd *cobra.Command, ids []string, opts resolveOptions) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Manifest.Path
	if opts.manifest != "" {
		path = opts.manifest
	}
	base := cfg.Server.Base
	if opts.base != "" {
		base = opts.base
	}

	m, err := manifest.Load(path)
	if err != nil {
		return err
	}
	store, err := cfg.Cache.OpenCache(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	resolver := manifest.NewResolver(m, manifest.Options{
		IncludeEntrypoint: opts.includeEntrypoint,
		Entry:             opts.entry,
		PreloadAssets:     opts.preloadAssets,
		Logger:            c.Logger,
		Cache:             store,
		Keyer:             cfg.Cache.Keyer(),
		TTL:               cfg.Cache.TTL.Std(),
	})

	var assets []preload.Asset
	if opts.entryAssets {
		if assets, err = resolver.EntryAssets(ctx); err != nil {
			return err
		}
		assets = preload.Sort(assets)
	} else {
		col := collector.New(resolver)
		for _, id := range ids {
			col.Report(id)
		}
		if assets, err = col.ResolvedAssets(ctx); err != nil {
			return err
		}
	}

	return writeAssets(cmd, assets, opts.format, preload.Options{Base: base}, opts.nonce)
}

func writeAssets(cmd *cobra.Command, assets []preload.Asset, format string, po preload.Options, nonce string) error {
	out := cmd.OutOrStdout()
	switch format {
	case formatTags:
		fmt.Fprint(out, po.HTMLTags(assets, nonce))
	case formatLink:
		fmt.Fprintln(out, po.LinkHeader(assets))
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if assets == nil {
			assets = []preload.Asset{}
		}
		return enc.Encode(assets)
	case formatTable:
		if len(assets) == 0 {
			printInfo(out, "No assets")
			return nil
		}
		printAssets(out, assets)
		printStats(out, fmt.Sprintf("%d assets", len(assets)))
	default:
		return fmt.Errorf("unknown format %q (want table, tags, link, or json)", format)
	}
	return nil
}
