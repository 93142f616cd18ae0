// Package cli implements the ssrpreload command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/ssrpreload/pkg/buildinfo"
	"github.com/matzehuels/ssrpreload/pkg/config"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "ssrpreload"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is bound to the persistent --config flag.
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "ssrpreload preloads the lazy chunks a server render used",
		Long:         `ssrpreload instruments lazily loaded modules at build time, collects the ones a server render actually reached, and streams the page with preload tags and Link headers for their chunks and stylesheets.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a TOML config file")

	// Register all subcommands
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.instrumentCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Config
// =============================================================================

// loadConfig reads the --config file, or the defaults when none is given,
// and applies the log level it names unless --verbose already lowered it.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, err
	}
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil && c.Logger.GetLevel() > log.DebugLevel {
		c.Logger.SetLevel(level)
	}
	return cfg, nil
}
