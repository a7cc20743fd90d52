package nodelink

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/observability"
)

// Widget writes a node-link diagram of every layer set to a file.
// A path ending in ".dot" receives the DOT source; any other path receives
// rendered SVG.
type Widget struct {
	path   string
	opts   Options
	render func(dot string) ([]byte, error)
}

var _ layer.Widget = (*Widget)(nil)

// NewWidget creates a widget writing to path.
func NewWidget(path string, opts Options) *Widget {
	w := &Widget{path: path, opts: opts, render: RenderSVG}
	if strings.HasSuffix(path, ".dot") {
		w.render = func(dot string) ([]byte, error) { return []byte(dot), nil }
	}
	return w
}

// SetLayers implements layer.Widget.
func (w *Widget) SetLayers(ctx context.Context, layers []layer.Drawable) (err error) {
	start := time.Now()
	defer func() {
		observability.Widget().OnPublish(ctx, "nodelink", len(layers), time.Since(start), err)
	}()

	data, err := w.render(ToDOT(layers, w.opts))
	if err != nil {
		return err
	}
	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}
