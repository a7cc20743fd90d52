// Package viewer wires the layer registry, the graph ingestor, the style
// table and the update scheduler into one interactive map viewer.
//
// A [Viewer] owns the layer state. Every operation that changes what should
// be drawn mutates the registry and then asks the scheduler for a
// reconciliation; the reconciliation reads the registry's active leaves and
// replaces the rendering widget's layer set wholesale.
//
// Visibility toggles do not reconcile by themselves. Control widgets call
// [Viewer.RequestLayerUpdate] after a toggle so that a burst of toggles is
// coalesced into one widget update.
package viewer

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geo"
	"github.com/matzehuels/geoviewer/pkg/geograph"
	"github.com/matzehuels/geoviewer/pkg/ingest"
	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/observability"
	"github.com/matzehuels/geoviewer/pkg/scheduler"
	"github.com/matzehuels/geoviewer/pkg/style"
	"github.com/matzehuels/geoviewer/pkg/tiles"
)

// DefaultGraphName is used by AddGraph when no name is given.
const DefaultGraphName = "Graph"

// DefaultCenter is the initial map centre (lon, lat) when none is configured.
var DefaultCenter = orb.Point{30.099444, 51.389167}

// DefaultZoom is the initial zoom level when none is configured.
const DefaultZoom = 7

// Options configures a [Viewer]. The zero value is usable.
type Options struct {
	// Metrics lists the graph metrics shown per graph. Nil means
	// geograph.StandardMetrics.
	Metrics []string
	// LayerUpdateDelay is the debounce window. Zero reconciles on every request.
	LayerUpdateDelay time.Duration
	// Styles overrides the built-in presets field by field.
	Styles map[string]style.Preset
	// BaseMap is the base layer added at construction. Nil means tiles.Default.
	BaseMap *tiles.Spec
	// Tiles materialises base map specs. Nil means tiles.NewCatalog().
	Tiles tiles.Factory
	// Geometry is the geometry collaborator. Nil means geograph.Planar.
	Geometry geograph.GeometryUtil
	// CRS is the working CRS for node and edge geometries. Empty means WGS84.
	CRS string
	// Center and Zoom are the initial view. Zero values mean DefaultCenter
	// and DefaultZoom.
	Center orb.Point
	Zoom   float64
	Logger *log.Logger
	// Progress, when set, is called as each graph group of AddGraph starts.
	Progress ingest.ProgressFunc
}

// Control is a control widget that can be attached to a viewer.
type Control interface {
	Bind(v *Viewer) error
}

// State is the viewer's observable state.
type State struct {
	CurrentGraph string             `json:"current_graph"`
	CurrentMap   string             `json:"current_map"`
	Center       [2]float64         `json:"center"`
	Zoom         float64            `json:"zoom"`
	Layers       []layer.LayerState `json:"layers"`
}

// Viewer is an interactive layered map of GeoGraphs.
type Viewer struct {
	reg    *layer.Registry
	styles *style.Table
	ingest *ingest.Ingestor
	sched  *scheduler.Scheduler
	widget layer.Widget
	tiles  tiles.Factory
	logger *log.Logger
	center orb.Point
	zoom   float64

	// renderMu keeps widget updates in the order their layer lists were read.
	renderMu sync.Mutex

	mu           sync.RWMutex
	currentGraph string
	currentMap   string
}

// New creates a viewer drawing onto widget. The configured base map is
// registered and active; CurrentMap names it.
func New(widget layer.Widget, opts Options) (*Viewer, error) {
	if widget == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "viewer needs a rendering widget")
	}
	if opts.LayerUpdateDelay < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "layer update delay must be >= 0, got %s", opts.LayerUpdateDelay)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	crs := opts.CRS
	if crs == "" {
		crs = geo.WGS84
	}
	factory := opts.Tiles
	if factory == nil {
		factory = tiles.NewCatalog()
	}
	base := tiles.Default
	if opts.BaseMap != nil {
		base = *opts.BaseMap
	}

	v := &Viewer{
		reg:    layer.NewRegistry(),
		styles: style.NewTable(opts.Styles),
		widget: widget,
		tiles:  factory,
		logger: logger,
		center: opts.Center,
		zoom:   opts.Zoom,
	}
	if v.center == (orb.Point{}) {
		v.center = DefaultCenter
	}
	if v.zoom == 0 {
		v.zoom = DefaultZoom
	}
	v.ingest = ingest.New(v.reg, ingest.Options{
		Geometry: opts.Geometry,
		Styles:   v.styles,
		Metrics:  opts.Metrics,
		CRS:      crs,
		Logger:   logger,
		Progress: opts.Progress,
	})
	v.sched = scheduler.New(opts.LayerUpdateDelay, v.Reconcile, logger)

	tl, err := factory.Materialize(base)
	if err != nil {
		return nil, err
	}
	if err := v.reg.AddMap(tl, base.Name); err != nil {
		return nil, err
	}
	v.currentMap = base.Name

	logger.Info("Viewer initialised")
	return v, nil
}

// Registry returns the viewer's layer registry.
func (v *Viewer) Registry() *layer.Registry { return v.reg }

// Styles returns the viewer's style presets.
func (v *Viewer) Styles() *style.Table { return v.styles }

// AddGraph ingests g and its habitats under name, makes name the current
// graph and requests a layer update. An empty name means DefaultGraphName.
func (v *Viewer) AddGraph(ctx context.Context, g geograph.GeoGraph, name string, withComponents bool) error {
	if name == "" {
		name = DefaultGraphName
	}
	v.logger.Info("Started adding GeoGraph")
	start := time.Now()
	n, err := v.ingest.Ingest(ctx, g, name, withComponents)
	observability.Viewer().OnGraphAdded(ctx, name, n, time.Since(start), err)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.currentGraph = name
	v.mu.Unlock()

	v.logger.Infof("Added graph %s with %d layer groups", name, n)
	return v.RequestLayerUpdate(ctx)
}

// AddLayer adds d as an active map layer. An empty name falls back to the
// drawable's own name.
func (v *Viewer) AddLayer(ctx context.Context, d layer.Drawable, name string) error {
	if d == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cannot add a nil layer")
	}
	if name == "" {
		name = d.Name()
	}
	if err := v.reg.AddMap(d, name); err != nil {
		return err
	}
	v.logger.Debugf("Added map layer %s", name)
	return v.RequestLayerUpdate(ctx)
}

// AddBaseMap materialises spec through the tile factory and adds it as a map
// layer. An empty name falls back to the spec's name.
func (v *Viewer) AddBaseMap(ctx context.Context, spec tiles.Spec, name string) error {
	tl, err := v.tiles.Materialize(spec)
	if err != nil {
		return err
	}
	if name == "" {
		name = spec.Name
	}
	return v.AddLayer(ctx, tl, name)
}

// RemoveLayer deletes a map layer or a graph group and requests an update.
func (v *Viewer) RemoveLayer(ctx context.Context, kind layer.Kind, name string) error {
	if err := v.reg.Remove(kind, name); err != nil {
		return err
	}
	v.mu.Lock()
	if kind == layer.KindGraphs && v.currentGraph == name {
		v.currentGraph = ""
	}
	if kind == layer.KindMaps && v.currentMap == name {
		v.currentMap = ""
	}
	v.mu.Unlock()
	return v.RequestLayerUpdate(ctx)
}

// SetLayerVisibility sets one leaf's active flag and requests a layer
// update. Bursts of toggles are coalesced by the update delay.
func (v *Viewer) SetLayerVisibility(ctx context.Context, kind layer.Kind, name string, subtype layer.Subtype, active bool) error {
	if err := v.reg.SetVisibility(kind, name, subtype, active); err != nil {
		return err
	}
	v.logger.Debugf("Set %s/%s/%s active=%v", kind, name, subtype, active)
	observability.Viewer().OnVisibilityChanged(ctx, string(kind), string(subtype), active)
	return v.RequestLayerUpdate(ctx)
}

// HideAllLayers deactivates every layer and requests one update.
func (v *Viewer) HideAllLayers(ctx context.Context) error {
	v.reg.HideAll()
	v.logger.Debug("Hid all layers")
	return v.RequestLayerUpdate(ctx)
}

// SetGraphStyle sets the node radius and, when color is not empty, the node
// fill colour of every graph layer. Each group's graph drawable is rebuilt
// from its stored table with the new preset.
func (v *Viewer) SetGraphStyle(ctx context.Context, radius float64, color string) error {
	if radius <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "node radius must be > 0, got %v", radius)
	}
	if err := errors.ValidateColor(color); err != nil {
		return err
	}

	old := v.styles.Get(style.Graph)
	preset := v.styles.Update(style.Graph, func(p style.Preset) style.Preset {
		p.PointStyle.Radius = radius
		if color != "" {
			p.Style.FillColor = color
		}
		return p
	})
	err := v.reg.Restyle(layer.KindGraphs, layer.SubtypeGraph, func(name string, d layer.Drawable) (layer.Drawable, error) {
		gd, ok := d.(*layer.GeoData)
		if !ok {
			return nil, errors.New(errors.ErrCodeInternal, "graph layer of %q is a %s, not geodata", name, d.Type())
		}
		return gd.Restyled(preset), nil
	})
	if err != nil {
		v.styles.Set(style.Graph, old)
		return err
	}
	v.logger.Debugf("Graph style set: radius=%v color=%q", radius, color)
	return v.RequestLayerUpdate(ctx)
}

// EnableGraphControls binds control widgets to the viewer. It fails with
// PRECONDITION until at least one graph has been added.
func (v *Viewer) EnableGraphControls(controls ...Control) error {
	if len(v.reg.Names(layer.KindGraphs)) == 0 {
		return errors.New(errors.ErrCodePrecondition, "no graph added yet: add a graph before enabling graph controls")
	}
	for _, c := range controls {
		if err := c.Bind(v); err != nil {
			return err
		}
	}
	return nil
}

// RequestLayerUpdate asks the scheduler for a reconciliation.
func (v *Viewer) RequestLayerUpdate(ctx context.Context) error {
	v.logger.Debug("Layer update requested")
	return v.sched.Request(ctx)
}

// Reconcile pushes the current active layer list to the widget.
func (v *Viewer) Reconcile(ctx context.Context) error {
	v.renderMu.Lock()
	defer v.renderMu.Unlock()

	start := time.Now()
	layers := v.reg.Active()
	err := v.widget.SetLayers(ctx, layers)
	observability.Viewer().OnReconcile(ctx, len(layers), time.Since(start), err)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "update rendering widget")
	}
	v.logger.Debugf("Rendered %d layers", len(layers))
	return nil
}

// CurrentGraph returns the name of the graph last added or selected.
func (v *Viewer) CurrentGraph() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.currentGraph
}

// SetCurrentGraph selects a registered graph.
func (v *Viewer) SetCurrentGraph(name string) error {
	if !v.reg.Has(layer.KindGraphs, name) {
		return errors.New(errors.ErrCodeNotFound, "no graph named %q", name)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.currentGraph = name
	return nil
}

// CurrentMap returns the name of the selected base map.
func (v *Viewer) CurrentMap() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.currentMap
}

// SetCurrentMap selects a registered map layer.
func (v *Viewer) SetCurrentMap(name string) error {
	if !v.reg.Has(layer.KindMaps, name) {
		return errors.New(errors.ErrCodeNotFound, "no map layer named %q", name)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.currentMap = name
	return nil
}

// Layers lists every leaf for control widgets.
func (v *Viewer) Layers() []layer.LayerState { return v.reg.Snapshot() }

// Graph returns a registered graph group, including its metrics.
func (v *Viewer) Graph(name string) (layer.GraphInfo, bool) { return v.reg.Graph(name) }

// State returns a snapshot of the viewer state.
func (v *Viewer) State() State {
	v.mu.RLock()
	s := State{
		CurrentGraph: v.currentGraph,
		CurrentMap:   v.currentMap,
		Center:       [2]float64{v.center.Lon(), v.center.Lat()},
		Zoom:         v.zoom,
	}
	v.mu.RUnlock()
	s.Layers = v.reg.Snapshot()
	return s
}

// Close waits for a pending layer update and stops accepting new ones.
func (v *Viewer) Close() {
	v.sched.Close()
}
