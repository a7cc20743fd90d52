package geograph

import (
	"context"
	"slices"

	"gonum.org/v1/gonum/graph"

	"github.com/matzehuels/geoviewer/pkg/geo"
)

// Attribute columns read or written by the viewer.
const (
	ColClassLabel         = "class_label"
	ColNodeDynamic        = "node_dynamic"
	ColDynamicClass       = "dynamic_class"
	ColAbsoluteGrowth     = "absolute_growth"
	ColArea               = "area"
	ColPerimeter          = "perimeter"
	ColPerimeterAreaRatio = "perimeter_area_ratio"
	ColNumNodes           = "num_nodes"
)

// Metric names understood by [Memory].
const (
	MetricNumComponents    = "num_components"
	MetricAvgPatchArea     = "avg_patch_area"
	MetricTotalArea        = "total_area"
	MetricAvgComponentArea = "avg_component_area"
	MetricNumPatches       = "num_patches"
)

// StandardMetrics is the metric list shown when none is configured.
var StandardMetrics = []string{
	MetricNumComponents,
	MetricAvgPatchArea,
	MetricTotalArea,
	MetricAvgComponentArea,
	MetricNumPatches,
}

// Metric is one computed graph metric.
type Metric struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Variant     string  `json:"variant,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	Value       float64 `json:"value"`
}

// Habitat is a named sub-graph of a GeoGraph.
type Habitat struct {
	Name  string
	Graph GeoGraph
}

// GeoGraph is the graph object consumed by the viewer.
type GeoGraph interface {
	// Habitats returns the named sub-graphs in a stable order.
	Habitats() []Habitat

	// Graph returns the connectivity graph. Node IDs match Table row IDs.
	Graph() graph.Undirected

	// PatchMetrics computes per-patch metrics into the graph's own table.
	PatchMetrics(ctx context.Context) error

	// Components returns a graph whose nodes are the connected components.
	// With calcPolygons the component table carries component geometries.
	Components(ctx context.Context, calcPolygons bool) (GeoGraph, error)

	// Metric computes the named graph metric.
	Metric(ctx context.Context, name string) (Metric, error)

	// Table returns the patch attribute table.
	Table() *geo.Table

	// MaxTravelDistance is the distance up to which patches count as connected.
	MaxTravelDistance() float64
}

// GeometryUtil derives drawable geometry from a GeoGraph.
type GeometryUtil interface {
	// NodeEdgeGeometries returns node points and edge lines in crs.
	NodeEdgeGeometries(g GeoGraph, crs string) (nodes, edges *geo.Table, err error)

	// MapDynamicToInt returns a copy of t with ColDynamicClass holding an
	// integer code for each ColNodeDynamic value.
	MapDynamicToInt(t *geo.Table) (*geo.Table, error)

	// Buffer returns a copy of t with every geometry grown by distance.
	Buffer(t *geo.Table, distance float64) (*geo.Table, error)
}

// Degree returns the number of neighbours of id in g.
func Degree(g graph.Undirected, id int64) int {
	n := 0
	it := g.From(id)
	for it.Next() {
		n++
	}
	return n
}

// NodeIDs returns the node IDs of g in ascending order.
func NodeIDs(g graph.Undirected) []int64 {
	nodes := graph.NodesOf(g.Nodes())
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	slices.Sort(ids)
	return ids
}
