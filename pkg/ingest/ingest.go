// Package ingest converts a GeoGraph and its habitats into registry layer
// groups.
//
// One call to [Ingestor.Ingest] checks every name first, then builds a full
// group per graph (main graph first, habitats in their own order), then
// inserts all groups with a single atomic registry call. Any failure along
// the way leaves the registry untouched.
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geoviewer/pkg/choropleth"
	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geo"
	"github.com/matzehuels/geoviewer/pkg/geograph"
	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/style"
)

// Options configures an [Ingestor].
type Options struct {
	// Geometry computes node/edge geometries, dynamic codes and buffers.
	// Defaults to geograph.Planar.
	Geometry geograph.GeometryUtil
	// Styles supplies presets. Defaults to the built-in presets.
	Styles *style.Table
	// Metrics lists the graph metrics collected per group, in order.
	// Defaults to geograph.StandardMetrics.
	Metrics []string
	// CRS is the working CRS handed to NodeEdgeGeometries. Defaults to WGS84.
	CRS    string
	Logger *log.Logger
	// Progress is called before group i of n is built.
	Progress ProgressFunc
}

// ProgressFunc reports that group i (1-based) of n, named name, is being built.
type ProgressFunc func(i, n int, name string)

// Ingestor builds graph layer groups and inserts them into a registry.
type Ingestor struct {
	reg      *layer.Registry
	geom     geograph.GeometryUtil
	styles   *style.Table
	metrics  []string
	crs      string
	logger   *log.Logger
	progress ProgressFunc
}

// New creates an ingestor writing into reg.
func New(reg *layer.Registry, opts Options) *Ingestor {
	in := &Ingestor{
		reg:      reg,
		geom:     opts.Geometry,
		styles:   opts.Styles,
		metrics:  opts.Metrics,
		crs:      opts.CRS,
		logger:   opts.Logger,
		progress: opts.Progress,
	}
	if in.geom == nil {
		in.geom = geograph.Planar{}
	}
	if in.styles == nil {
		in.styles = style.NewTable(nil)
	}
	if in.metrics == nil {
		in.metrics = geograph.StandardMetrics
	}
	if in.crs == "" {
		in.crs = geo.WGS84
	}
	if in.logger == nil {
		in.logger = log.New(io.Discard)
	}
	return in
}

// LayerName returns the display name of one subtype of graph name.
func LayerName(name string, st layer.Subtype) string {
	return name + "_" + string(st)
}

type candidate struct {
	name      string
	graph     geograph.GeoGraph
	isHabitat bool
}

// Ingest adds g under name, plus one group per habitat of g.
// It returns the number of groups inserted.
func (in *Ingestor) Ingest(ctx context.Context, g geograph.GeoGraph, name string, withComponents bool) (int, error) {
	if g == nil {
		return 0, errors.New(errors.ErrCodeInvalidInput, "graph %q is nil", name)
	}
	cands, err := in.check(g, name)
	if err != nil {
		return 0, err
	}

	groups := make([]layer.GraphGroup, 0, len(cands))
	for i, c := range cands {
		in.logger.Infof("Started adding graph %d of %d: %s", i+1, len(cands), c.name)
		if in.progress != nil {
			in.progress(i+1, len(cands), c.name)
		}
		grp, err := in.build(ctx, c, name, withComponents)
		if err != nil {
			return 0, fmt.Errorf("graph %q: %w", c.name, err)
		}
		groups = append(groups, grp)
		in.logger.Infof("Finished adding graph: %s", c.name)
	}

	if err := in.reg.AddGraphGroups(groups...); err != nil {
		return 0, err
	}
	return len(groups), nil
}

// check runs every name check before any computation.
func (in *Ingestor) check(g geograph.GeoGraph, name string) ([]candidate, error) {
	if err := errors.ValidateLayerName(name); err != nil {
		return nil, err
	}
	habitats := g.Habitats()
	cands := []candidate{{name: name, graph: g}}
	for _, h := range habitats {
		if h.Name == name {
			return nil, errors.New(errors.ErrCodeNameConflict, "name %q is also a habitat of the graph", name)
		}
	}
	if in.reg.Has(layer.KindGraphs, name) {
		return nil, errors.New(errors.ErrCodeNameConflict, "a graph named %q was already added", name)
	}
	seen := make(map[string]bool, len(habitats))
	for _, h := range habitats {
		if err := errors.ValidateLayerName(h.Name); err != nil {
			return nil, err
		}
		if seen[h.Name] {
			return nil, errors.New(errors.ErrCodeNameConflict, "habitat %q appears twice in graph %q", h.Name, name)
		}
		seen[h.Name] = true
		if h.Graph == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "habitat %q has no graph", h.Name)
		}
		if in.reg.Has(layer.KindGraphs, h.Name) {
			return nil, errors.New(errors.ErrCodeNameConflict, "habitat %q clashes with an existing graph", h.Name)
		}
		cands = append(cands, candidate{name: h.Name, graph: h.Graph, isHabitat: true})
	}
	return cands, nil
}

func (in *Ingestor) build(ctx context.Context, c candidate, parent string, withComponents bool) (layer.GraphGroup, error) {
	grp := layer.GraphGroup{
		Name:      c.name,
		IsHabitat: c.isHabitat,
		Drawables: map[layer.Subtype]layer.Drawable{},
		Original:  c.graph,
	}
	if c.isHabitat {
		grp.Parent = parent
	}
	g := c.graph

	if err := g.PatchMetrics(ctx); err != nil {
		return grp, fmt.Errorf("patch metrics: %w", err)
	}

	in.logger.Debugf("Creating graph geometries layer (%s)", LayerName(c.name, layer.SubtypeGraph))
	nodes, edges, err := in.geom.NodeEdgeGeometries(g, in.crs)
	if err != nil {
		return grp, fmt.Errorf("node and edge geometries: %w", err)
	}
	if nodes == nil || edges == nil {
		return grp, errors.New(errors.ErrCodeInternal, "geometry utility returned no node or edge table for %s", c.name)
	}
	combined, err := geo.Concat(edges, nodes)
	if err != nil {
		return grp, err
	}
	graphData, err := in.geoData(LayerName(c.name, layer.SubtypeGraph), combined, style.Graph)
	if err != nil {
		return grp, err
	}
	grp.Drawables[layer.SubtypeGraph] = graphData

	in.logger.Debugf("Creating patch polygons layer (%s)", LayerName(c.name, layer.SubtypePgons))
	pgons, err := choropleth.Build(LayerName(c.name, layer.SubtypePgons), g.Table(), geograph.ColClassLabel, in.styles.Get(style.Pgons))
	if err != nil {
		return grp, err
	}
	grp.Drawables[layer.SubtypePgons] = pgons

	if g.Table().HasColumn(geograph.ColNodeDynamic) {
		in.logger.Debugf("Creating node dynamics layers for %s", c.name)
		coded, err := in.geom.MapDynamicToInt(g.Table())
		if err != nil {
			return grp, fmt.Errorf("node dynamics: %w", err)
		}
		dyn, err := choropleth.Build(LayerName(c.name, layer.SubtypeNodeDynamics), coded, geograph.ColDynamicClass, in.styles.Get(style.NodeDynamics))
		if err != nil {
			return grp, err
		}
		growth, err := choropleth.Build(LayerName(c.name, layer.SubtypeNodeChange), g.Table(), geograph.ColAbsoluteGrowth, in.styles.Get(style.NodeChange))
		if err != nil {
			return grp, err
		}
		grp.Drawables[layer.SubtypeNodeDynamics] = dyn
		grp.Drawables[layer.SubtypeNodeChange] = growth
	}

	if withComponents {
		in.logger.Debugf("Creating components layer (%s)", LayerName(c.name, layer.SubtypeComponents))
		comp, err := g.Components(ctx, true)
		if err != nil {
			return grp, fmt.Errorf("components: %w", err)
		}
		if comp == nil || comp.Table() == nil {
			return grp, errors.New(errors.ErrCodeInternal, "components of %s have no table", c.name)
		}
		tbl := comp.Table()
		if c.isHabitat {
			if tbl, err = in.geom.Buffer(tbl, g.MaxTravelDistance()); err != nil {
				return grp, fmt.Errorf("buffer components: %w", err)
			}
		}
		d, err := in.geoData(LayerName(c.name, layer.SubtypeComponents), tbl, style.Components)
		if err != nil {
			return grp, err
		}
		grp.Drawables[layer.SubtypeComponents] = d
	}

	var disconnected, poorly []int64
	for _, id := range geograph.NodeIDs(g.Graph()) {
		switch geograph.Degree(g.Graph(), id) {
		case 0:
			disconnected = append(disconnected, id)
		case 1:
			poorly = append(poorly, id)
		}
	}
	if grp.Drawables[layer.SubtypeDisconnectedNodes], err = in.geoData(
		LayerName(c.name, layer.SubtypeDisconnectedNodes), nodes.Select(disconnected), style.DisconnectedNodes); err != nil {
		return grp, err
	}
	if grp.Drawables[layer.SubtypePoorlyConnectedNodes], err = in.geoData(
		LayerName(c.name, layer.SubtypePoorlyConnectedNodes), nodes.Select(poorly), style.PoorlyConnectedNodes); err != nil {
		return grp, err
	}

	in.logger.Debugf("Collecting %d graph metrics for %s", len(in.metrics), c.name)
	for _, m := range in.metrics {
		v, err := g.Metric(ctx, m)
		if err != nil {
			return grp, fmt.Errorf("metric %s: %w", m, err)
		}
		grp.Metrics = append(grp.Metrics, v)
	}
	return grp, nil
}

// geoData reprojects t to WGS84 and wraps it with the named preset.
func (in *Ingestor) geoData(name string, t *geo.Table, preset string) (layer.Drawable, error) {
	wgs, err := t.ToCRS(geo.WGS84)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", name, err)
	}
	return layer.NewGeoData(name, wgs, in.styles.Get(preset)), nil
}
