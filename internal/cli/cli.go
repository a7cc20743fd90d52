// Package cli implements the geoviewer command-line interface.
//
// # Commands
//
//   - render: Ingest a graph file and write the active layer set once
//   - serve: Keep a viewer running behind the HTTP control API
//   - tui: Toggle layers interactively from the terminal
//   - basemaps: List the base map catalogue
//   - config: Write or show the configuration file
//
// All commands support --verbose (-v) for debug-level logging; otherwise
// the configured log_level applies.
package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geoviewer/pkg/buildinfo"
	"github.com/matzehuels/geoviewer/pkg/config"
	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geograph"
	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/render"
	"github.com/matzehuels/geoviewer/pkg/render/nodelink"
	"github.com/matzehuels/geoviewer/pkg/viewer"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "geoviewer"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger  *log.Logger
	verbose bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. A debug level also pins the
// logger against the configured log_level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	c.verbose = level == log.DebugLevel
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "geoviewer renders landscape graphs as layered maps",
		Long:         `geoviewer renders a landscape graph (habitat patches plus the connectivity graph over them) as a stack of toggle-able map layers, and keeps the rendered layer set in step with every toggle.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.tuiCommand())
	root.AddCommand(c.basemapsCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Viewer Session
// =============================================================================

// sessionFlags are the flags shared by every command that opens a graph.
type sessionFlags struct {
	graph         string
	config        string
	name          string
	components    bool
	componentsSet bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.graph, "graph", "g", "", "graph file (JSON)")
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "config file (TOML or YAML)")
	cmd.Flags().StringVar(&f.name, "name", "", "graph name (default: name in the graph file)")
	cmd.Flags().BoolVar(&f.components, "components", true, "compute connected components layers (default: config with_components)")
	_ = cmd.MarkFlagRequired("graph")
}

// parsed records which flags were set explicitly. Call it from RunE.
func (f *sessionFlags) parsed(cmd *cobra.Command) {
	f.componentsSet = cmd.Flags().Changed("components")
}

// withComponents reports whether components are computed: an explicit
// --components wins over the config's with_components.
func (f *sessionFlags) withComponents(cfg *config.Config) bool {
	if f.componentsSet {
		return f.components
	}
	return cfg.WithComponents
}

// loadConfig reads the config file and applies its log level unless
// --verbose pinned the logger.
func (c *CLI) loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if !c.verbose {
		if lvl, err := log.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
			c.Logger.SetLevel(lvl)
		}
	}
	return cfg, nil
}

// viewerOptions maps the configuration onto viewer options.
func (c *CLI) viewerOptions(cfg *config.Config) (viewer.Options, error) {
	cat, err := cfg.Catalog()
	if err != nil {
		return viewer.Options{}, err
	}
	opts := viewer.Options{
		Metrics:          cfg.Metrics,
		LayerUpdateDelay: cfg.LayerUpdateDelay.Duration,
		Styles:           cfg.Styles,
		Tiles:            cat,
		CRS:              cfg.CRS,
		Zoom:             cfg.Zoom,
		Logger:           c.Logger,
	}
	if cfg.BaseMap != "" {
		spec, _ := cat.Lookup(cfg.BaseMap)
		opts.BaseMap = &spec
	}
	if len(cfg.Center) == 2 {
		opts.Center = orb.Point{cfg.Center[0], cfg.Center[1]}
	}
	return opts, nil
}

// widgets builds the rendering widgets for a session: the GeoJSON file at
// out, an optional node-link diagram, and the Redis publisher when the
// config names a server.
func (c *CLI) widgets(ctx context.Context, cfg *config.Config, out, dot string) (layer.Widget, func(), error) {
	var ws []layer.Widget
	cleanup := func() {}

	if out != "" {
		ws = append(ws, render.NewGeoJSONWidget(out))
	}
	if dot != "" {
		ws = append(ws, nodelink.NewWidget(dot, nodelink.Options{Labels: true}))
	}
	if cfg.Redis.Addr != "" {
		client, err := render.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, nil, err
		}
		c.Logger.Infof("Publishing layers to redis %s on %s", cfg.Redis.Addr, cfg.Redis.Channel)
		ws = append(ws, render.NewRedisWidget(client, cfg.Redis.Channel))
		cleanup = func() { _ = client.Close() }
	}
	if len(ws) == 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "no output configured: set --out, --dot or redis.addr")
	}
	return render.Fanout(ws...), cleanup, nil
}

// openGraph loads the graph file and adds it to v.
func (c *CLI) openGraph(ctx context.Context, v *viewer.Viewer, f sessionFlags, withComponents bool) (string, error) {
	name, g, err := geograph.LoadFile(f.graph)
	if err != nil {
		return "", err
	}
	if f.name != "" {
		name = f.name
	}
	if name == "" {
		name = viewer.DefaultGraphName
	}
	prog := newProgress(c.Logger)
	if err := v.AddGraph(ctx, g, name, withComponents); err != nil {
		return "", err
	}
	prog.done("Graph " + name + " added")
	return name, nil
}

// =============================================================================
// Paths
// =============================================================================

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
