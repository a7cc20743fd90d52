package geograph

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geo"
)

// DynamicCodes maps node-dynamic labels to the integer codes written into
// ColDynamicClass. Unknown labels map to -1.
var DynamicCodes = map[string]int{
	"birth":     0,
	"shrink":    1,
	"complex":   2,
	"growth":    3,
	"split":     4,
	"merge":     5,
	"unchanged": 6,
}

// Planar is a GeometryUtil using planar centroids and envelope buffers.
type Planar struct{}

// NodeEdgeGeometries places each node at the centroid of its patch and draws
// each edge as a straight line between node points.
func (Planar) NodeEdgeGeometries(g GeoGraph, crs string) (*geo.Table, *geo.Table, error) {
	tbl, err := g.Table().ToCRS(crs)
	if err != nil {
		return nil, nil, err
	}

	points := make(map[int64]orb.Point, tbl.Len())
	nodes := geo.NewTable(tbl.CRS)
	for _, f := range tbl.Features {
		if f.Geometry == nil {
			return nil, nil, errors.New(errors.ErrCodeInvalidInput, "patch %d has no geometry", f.ID)
		}
		p := representativePoint(f.Geometry)
		points[f.ID] = p
		nodes.Features = append(nodes.Features, geo.Feature{ID: f.ID, Geometry: p})
	}

	edges := geo.NewTable(tbl.CRS)
	gr := g.Graph()
	var next int64
	for _, u := range NodeIDs(gr) {
		it := gr.From(u)
		var vs []int64
		for it.Next() {
			if v := it.Node().ID(); v > u {
				vs = append(vs, v)
			}
		}
		slices.Sort(vs)
		for _, v := range vs {
			pu, okU := points[u]
			pv, okV := points[v]
			if !okU || !okV {
				return nil, nil, errors.New(errors.ErrCodeInvalidInput, "edge %d-%d has no patch geometry", u, v)
			}
			edges.Features = append(edges.Features, geo.Feature{
				ID:       next,
				Geometry: orb.LineString{pu, pv},
				Attrs:    map[string]any{"from": u, "to": v},
			})
			next++
		}
	}
	return nodes, edges, nil
}

func representativePoint(g orb.Geometry) orb.Point {
	switch g := g.(type) {
	case orb.Point:
		return g
	case orb.Polygon, orb.MultiPolygon:
		c, _ := planar.CentroidArea(g)
		return c
	default:
		return g.Bound().Center()
	}
}

// MapDynamicToInt implements GeometryUtil using DynamicCodes.
func (Planar) MapDynamicToInt(t *geo.Table) (*geo.Table, error) {
	if !t.HasColumn(ColNodeDynamic) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "table has no %q column", ColNodeDynamic)
	}
	return t.WithColumn(ColDynamicClass, func(f geo.Feature) any {
		label, _ := f.Attrs[ColNodeDynamic].(string)
		if code, ok := DynamicCodes[label]; ok {
			return code
		}
		return -1
	}), nil
}

// Buffer grows every geometry to its bounding box padded by distance.
// This is an envelope approximation, not a true offset curve.
func (Planar) Buffer(t *geo.Table, distance float64) (*geo.Table, error) {
	if distance < 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "buffer distance must be >= 0, got %v", distance)
	}
	out := t.Clone()
	for i, f := range out.Features {
		if f.Geometry == nil {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.MultiPolygon:
			mp := make(orb.MultiPolygon, len(g))
			for j, p := range g {
				mp[j] = p.Bound().Pad(distance).ToPolygon()
			}
			out.Features[i].Geometry = mp
		default:
			out.Features[i].Geometry = g.Bound().Pad(distance).ToPolygon()
		}
	}
	return out, nil
}

var _ GeometryUtil = Planar{}
