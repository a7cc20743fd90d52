package geograph

import (
	"context"
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geo"
)

// Memory is an in-memory GeoGraph backed by a gonum simple graph.
type Memory struct {
	g         *simple.UndirectedGraph
	table     *geo.Table
	habitats  []Habitat
	maxTravel float64
}

// NewMemory creates a graph over the rows of table. Every row becomes a
// node; edges must reference row IDs and may not be self loops.
func NewMemory(table *geo.Table, edges [][2]int64, maxTravel float64) (*Memory, error) {
	if table == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "graph needs a patch table")
	}
	if maxTravel < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "max travel distance must be >= 0, got %v", maxTravel)
	}
	g := simple.NewUndirectedGraph()
	for _, f := range table.Features {
		if g.Node(f.ID) != nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate patch id %d", f.ID)
		}
		g.AddNode(simple.Node(f.ID))
	}
	for _, e := range edges {
		if e[0] == e[1] {
			return nil, errors.New(errors.ErrCodeInvalidInput, "self loop on patch %d", e[0])
		}
		if g.Node(e[0]) == nil || g.Node(e[1]) == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "edge %d-%d references unknown patch", e[0], e[1])
		}
		g.SetEdge(simple.Edge{F: simple.Node(e[0]), T: simple.Node(e[1])})
	}
	return &Memory{g: g, table: table, maxTravel: maxTravel}, nil
}

// AddHabitat registers a habitat made of the given patches and edges.
// The habitat owns a copy of the selected rows.
func (m *Memory) AddHabitat(name string, nodes []int64, edges [][2]int64, maxTravel float64) (*Memory, error) {
	if err := errors.ValidateLayerName(name); err != nil {
		return nil, err
	}
	for _, h := range m.habitats {
		if h.Name == name {
			return nil, errors.New(errors.ErrCodeDuplicateName, "habitat %q already exists", name)
		}
	}
	for _, id := range nodes {
		if m.g.Node(id) == nil {
			return nil, errors.New(errors.ErrCodeInvalidInput, "habitat %q references unknown patch %d", name, id)
		}
	}
	hab, err := NewMemory(m.table.Select(nodes), edges, maxTravel)
	if err != nil {
		return nil, fmt.Errorf("habitat %s: %w", name, err)
	}
	m.habitats = append(m.habitats, Habitat{Name: name, Graph: hab})
	return hab, nil
}

// Habitats implements GeoGraph.
func (m *Memory) Habitats() []Habitat { return slices.Clone(m.habitats) }

// Graph implements GeoGraph.
func (m *Memory) Graph() graph.Undirected { return m.g }

// Table implements GeoGraph.
func (m *Memory) Table() *geo.Table { return m.table }

// MaxTravelDistance implements GeoGraph.
func (m *Memory) MaxTravelDistance() float64 { return m.maxTravel }

// PatchMetrics writes area, perimeter and their ratio onto every row.
func (m *Memory) PatchMetrics(ctx context.Context) error {
	for i := range m.table.Features {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := &m.table.Features[i]
		if f.Attrs == nil {
			f.Attrs = map[string]any{}
		}
		area, perim := 0.0, 0.0
		if f.Geometry != nil {
			area = planar.Area(f.Geometry)
			perim = planar.Length(f.Geometry)
		}
		f.Attrs[ColArea] = area
		f.Attrs[ColPerimeter] = perim
		ratio := 0.0
		if area > 0 {
			ratio = perim / area
		}
		f.Attrs[ColPerimeterAreaRatio] = ratio
	}
	return nil
}

// components returns connected components as sorted node ID lists, ordered
// by their smallest member.
func (m *Memory) components() [][]int64 {
	ccs := topo.ConnectedComponents(m.g)
	out := make([][]int64, len(ccs))
	for i, cc := range ccs {
		ids := make([]int64, len(cc))
		for j, n := range cc {
			ids[j] = n.ID()
		}
		slices.Sort(ids)
		out[i] = ids
	}
	slices.SortFunc(out, func(a, b []int64) int {
		switch {
		case a[0] < b[0]:
			return -1
		case a[0] > b[0]:
			return 1
		}
		return 0
	})
	return out
}

// Components implements GeoGraph. Component geometries are the collected
// member polygons; no union is computed.
func (m *Memory) Components(ctx context.Context, calcPolygons bool) (GeoGraph, error) {
	ccs := m.components()
	tbl := geo.NewTable(m.table.CRS)
	for i, ids := range ccs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := geo.Feature{ID: int64(i), Attrs: map[string]any{ColNumNodes: len(ids)}}
		area := 0.0
		var parts orb.MultiPolygon
		for _, id := range ids {
			row, _ := m.table.Get(id)
			if row.Geometry == nil {
				continue
			}
			area += planar.Area(row.Geometry)
			switch g := row.Geometry.(type) {
			case orb.Polygon:
				parts = append(parts, g)
			case orb.MultiPolygon:
				parts = append(parts, g...)
			default:
				parts = append(parts, g.Bound().ToPolygon())
			}
		}
		f.Attrs[ColArea] = area
		if calcPolygons {
			f.Geometry = orb.Clone(parts)
		}
		tbl.Features = append(tbl.Features, f)
	}
	return NewMemory(tbl, nil, m.maxTravel)
}

// Metric implements GeoGraph.
func (m *Memory) Metric(ctx context.Context, name string) (Metric, error) {
	if err := ctx.Err(); err != nil {
		return Metric{}, err
	}
	patches := float64(m.table.Len())
	switch name {
	case MetricNumPatches:
		return Metric{Name: name, Description: "Number of patches", Value: patches}, nil
	case MetricNumComponents:
		return Metric{Name: name, Description: "Number of connected components", Value: float64(len(m.components()))}, nil
	case MetricTotalArea:
		return Metric{Name: name, Description: "Total patch area", Unit: "m^2", Value: m.totalArea()}, nil
	case MetricAvgPatchArea:
		v := 0.0
		if patches > 0 {
			v = m.totalArea() / patches
		}
		return Metric{Name: name, Description: "Average patch area", Unit: "m^2", Value: v}, nil
	case MetricAvgComponentArea:
		v := 0.0
		if n := len(m.components()); n > 0 {
			v = m.totalArea() / float64(n)
		}
		return Metric{Name: name, Description: "Average component area", Unit: "m^2", Value: v}, nil
	}
	return Metric{}, errors.New(errors.ErrCodeNotFound, "unknown metric %q", name)
}

func (m *Memory) totalArea() float64 {
	total := 0.0
	for _, f := range m.table.Features {
		if f.Geometry != nil {
			total += planar.Area(f.Geometry)
		}
	}
	return total
}

var _ GeoGraph = (*Memory)(nil)
