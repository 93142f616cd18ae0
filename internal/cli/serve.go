package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/ssrpreload/internal/server"
	"github.com/matzehuels/ssrpreload/pkg/config"
)

// serveOptions holds flag values that override the config file.
type serveOptions struct {
	addr       string
	base       string
	playground bool
	dev        bool
	manifest   string
	template   string
	static     string
	earlyHints bool
	preloadAll bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve streamed pages with preloads for the lazy chunks they render",
		Long: `Serve renders every page request through the streaming coordinator.

Each request gets its own collector. When the shell is ready, the chunks of
every lazy unit the render reported are resolved through the build manifest
and sent as a Link header and as tags before </head>.

Without a renderer of your own, --playground serves a built-in demo app.`,
		Example: `  ssrpreload serve --playground
  ssrpreload serve -c ssrpreload.toml --addr :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return c.runServe(cmd, cfg, opts.preloadAll)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, :5173)")
	cmd.Flags().StringVar(&opts.base, "base", "", "public path of the client assets")
	cmd.Flags().BoolVar(&opts.playground, "playground", false, "serve the built-in demo app")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "skip the manifest and emit no preloads")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "path to the build manifest")
	cmd.Flags().StringVar(&opts.template, "template", "", "path to the page template")
	cmd.Flags().StringVar(&opts.static, "static", "", "directory of the client build")
	cmd.Flags().BoolVar(&opts.earlyHints, "early-hints", true, "send 103 Early Hints to navigation requests")
	cmd.Flags().BoolVar(&opts.preloadAll, "preload-all", false, "load every lazy unit before listening")

	return cmd
}

// apply overrides cfg with the flags the user set explicitly.
func (o serveOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr = o.addr
	}
	if flags.Changed("base") {
		cfg.Server.Base = o.base
	}
	if flags.Changed("playground") {
		cfg.Server.Playground = o.playground
	}
	if flags.Changed("dev") {
		cfg.Manifest.Dev = o.dev
	}
	if flags.Changed("manifest") {
		cfg.Manifest.Path = o.manifest
	}
	if flags.Changed("template") {
		cfg.Template.Path = o.template
	}
	if flags.Changed("static") {
		cfg.Server.StaticDir = o.static
	}
	if flags.Changed("early-hints") {
		cfg.Preload.EarlyHints = o.earlyHints
	}
}

func (c *CLI) runServe(cmd *cobra.Command, cfg config.Config, preloadAll bool) error {
	ctx := cmd.Context()

	app, err := server.Build(ctx, cfg, nil, c.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if preloadAll && app.Playground != nil {
		prog := newProgress(c.Logger)
		n, err := app.Playground.PreloadAll(ctx)
		if err != nil {
			return err
		}
		prog.done("Preloaded lazy units", "units", n)
	}

	out := cmd.ErrOrStderr()
	printSuccess(out, "Serving on %s", StyleValue.Render(displayAddr(cfg.Server.Addr)))
	if cfg.Server.Playground {
		printDetail(out, "playground app")
	}
	if cfg.Manifest.Dev {
		printWarning(out, "dev mode: no preloads")
	}
	return app.Run(ctx, cfg.Server.Addr)
}

// displayAddr turns ":5173" into a clickable local URL.
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
