package cli

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/viewer"
)

// renderFlags holds flags for the render command.
type renderFlags struct {
	sessionFlags
	out  string
	dot  string
	show []string
	hide []string
}

// renderCommand creates the render command for one-shot layer output.
func (c *CLI) renderCommand() *cobra.Command {
	var flags renderFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a graph file to a layer set",
		Long: `Render ingests a graph file and writes the active layers once.

The layer set is written as a GeoJSON FeatureCollection (--out), optionally
as a node-link diagram (--dot, SVG or raw .dot), and published to Redis when
the config sets redis.addr.

Subtypes in --show and --hide apply to every graph group; use name/subtype
to target one group.`,
		Example: `  # Default layers (patches and graph) to layers.geojson
  geoviewer render -g landscape.json

  # Add components and node overlays, plus a node-link SVG
  geoviewer render -g landscape.json --components \
      --show components,disconnected_nodes --dot graph.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.parsed(cmd)
			return c.runRender(cmd.Context(), flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "GeoJSON output file (default: config output)")
	cmd.Flags().StringVar(&flags.dot, "dot", "", "node-link diagram output (.svg or .dot)")
	cmd.Flags().StringSliceVar(&flags.show, "show", nil, "layers to show: subtype or name/subtype")
	cmd.Flags().StringSliceVar(&flags.hide, "hide", nil, "layers to hide: subtype or name/subtype")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, flags renderFlags) error {
	cfg, err := c.loadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.out == "" {
		flags.out = cfg.Output
	}
	opts, err := c.viewerOptions(cfg)
	if err != nil {
		return err
	}
	w, cleanup, err := c.widgets(ctx, cfg, flags.out, flags.dot)
	if err != nil {
		return err
	}
	defer cleanup()

	spinner := newSpinnerWithContext(ctx, "Reading "+flags.graph)
	opts.Progress = spinner.Stage

	rec := &recordingWidget{Widget: w}
	v, err := viewer.New(rec, opts)
	if err != nil {
		return err
	}

	spinner.Start()
	name, err := c.openGraph(ctx, v, flags.sessionFlags, flags.withComponents(cfg))
	if err != nil {
		spinner.StopWithError("Adding graph failed")
		v.Close()
		return err
	}
	spinner.Stop()
	printDetail("graph %s", name)

	if err := c.applyToggles(ctx, v, flags.show, true); err != nil {
		v.Close()
		return err
	}
	if err := c.applyToggles(ctx, v, flags.hide, false); err != nil {
		v.Close()
		return err
	}

	// Close flushes the pending debounced update.
	v.Close()
	n, err := rec.result()
	if err != nil {
		return err
	}

	printSuccess("Rendered %d layers", n)
	printLayers(v.Registry().Active())
	if flags.out != "" {
		printFile(flags.out)
	}
	if flags.dot != "" {
		printFile(flags.dot)
	}
	if cfg.Redis.Addr != "" {
		printDetail("published on %s", cfg.Redis.Channel)
	}
	return nil
}

// applyToggles sets the visibility of each named layer. A bare subtype
// applies to every graph group that has a drawable for it.
func (c *CLI) applyToggles(ctx context.Context, v *viewer.Viewer, items []string, active bool) error {
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if name, st, ok := strings.Cut(item, "/"); ok {
			if err := v.SetLayerVisibility(ctx, layer.KindGraphs, name, layer.Subtype(st), active); err != nil {
				return err
			}
			continue
		}

		st := layer.Subtype(item)
		if !isGraphSubtype(st) {
			return errors.New(errors.ErrCodeInvalidInput, "unknown layer subtype %q", item)
		}
		for _, name := range v.Registry().Names(layer.KindGraphs) {
			err := v.SetLayerVisibility(ctx, layer.KindGraphs, name, st, active)
			if errors.Is(err, errors.ErrCodePrecondition) {
				c.Logger.Warnf("Graph %s has no %s layer", name, st)
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func isGraphSubtype(st layer.Subtype) bool {
	for _, s := range layer.GraphSubtypes {
		if s == st {
			return true
		}
	}
	return false
}

// recordingWidget remembers the outcome of the last layer update, so that a
// failure on the deferred path still fails the command.
type recordingWidget struct {
	layer.Widget

	mu     sync.Mutex
	calls  int
	layers int
	err    error
}

func (r *recordingWidget) SetLayers(ctx context.Context, layers []layer.Drawable) error {
	err := r.Widget.SetLayers(ctx, layers)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.layers = len(layers)
	r.err = err
	return err
}

func (r *recordingWidget) result() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == 0 {
		return 0, errors.New(errors.ErrCodeInternal, "no layer update was rendered")
	}
	return r.layers, r.err
}
