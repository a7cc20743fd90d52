package geo

import (
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/matzehuels/geoviewer/pkg/errors"
)

// Coordinate reference systems known to the viewer.
const (
	WGS84       = "EPSG:4326"
	WebMercator = "EPSG:3857"
)

var (
	projMu      sync.RWMutex
	projections = map[string]orb.Projection{
		WebMercator: project.Mercator.ToWGS84,
	}
)

// RegisterProjection installs a projection from crs to WGS84.
// A nil projection removes the registration.
func RegisterProjection(crs string, toWGS84 orb.Projection) {
	projMu.Lock()
	defer projMu.Unlock()
	if toWGS84 == nil {
		delete(projections, crs)
		return
	}
	projections[crs] = toWGS84
}

// KnownCRS reports whether tables in crs can be reprojected to WGS84.
func KnownCRS(crs string) bool {
	if crs == WGS84 {
		return true
	}
	_, ok := projectionFor(crs)
	return ok
}

func projectionFor(crs string) (orb.Projection, bool) {
	projMu.RLock()
	defer projMu.RUnlock()
	p, ok := projections[crs]
	return p, ok
}

// Feature is one row of a [Table].
type Feature struct {
	ID       int64
	Geometry orb.Geometry
	Attrs    map[string]any
}

// Key returns the stringified entity ID used to key choropleth values.
func (f Feature) Key() string { return strconv.FormatInt(f.ID, 10) }

// Table is an ordered collection of features in one CRS.
type Table struct {
	CRS      string
	Features []Feature
}

// NewTable creates a table in the given CRS.
func NewTable(crs string, features ...Feature) *Table {
	return &Table{CRS: crs, Features: features}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Features)
}

// HasColumn reports whether any row carries the attribute name.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, f := range t.Features {
		if _, ok := f.Attrs[name]; ok {
			return true
		}
	}
	return false
}

// Column returns the attribute values of name in row order.
// Rows without the attribute yield nil.
func (t *Table) Column(name string) []any {
	out := make([]any, t.Len())
	for i, f := range t.Features {
		out[i] = f.Attrs[name]
	}
	return out
}

// Get returns the row with the given ID.
func (t *Table) Get(id int64) (Feature, bool) {
	for _, f := range t.Features {
		if f.ID == id {
			return f, true
		}
	}
	return Feature{}, false
}

// Select returns a copy holding the rows whose IDs are in ids, in ids order.
// Unknown IDs are skipped.
func (t *Table) Select(ids []int64) *Table {
	idx := make(map[int64]int, t.Len())
	for i, f := range t.Features {
		idx[f.ID] = i
	}
	out := &Table{CRS: t.CRS, Features: make([]Feature, 0, len(ids))}
	for _, id := range ids {
		if i, ok := idx[id]; ok {
			out.Features = append(out.Features, cloneFeature(t.Features[i]))
		}
	}
	return out
}

// WithColumn returns a copy with attribute name set to fn(row) on every row.
func (t *Table) WithColumn(name string, fn func(Feature) any) *Table {
	out := t.Clone()
	for i := range out.Features {
		if out.Features[i].Attrs == nil {
			out.Features[i].Attrs = map[string]any{}
		}
		out.Features[i].Attrs[name] = fn(t.Features[i])
	}
	return out
}

// Clone returns a deep copy. Geometries are cloned with [orb.Clone].
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{CRS: t.CRS, Features: make([]Feature, len(t.Features))}
	for i, f := range t.Features {
		out.Features[i] = cloneFeature(f)
	}
	return out
}

func cloneFeature(f Feature) Feature {
	c := Feature{ID: f.ID, Attrs: maps.Clone(f.Attrs)}
	if f.Geometry != nil {
		c.Geometry = orb.Clone(f.Geometry)
	}
	return c
}

// ToCRS returns a copy of t reprojected into crs.
// Only WGS84 targets are supported; the source CRS must be WGS84 or have a
// registered projection.
func (t *Table) ToCRS(crs string) (*Table, error) {
	if t == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot reproject a nil table")
	}
	out := t.Clone()
	if out.CRS == crs {
		return out, nil
	}
	if crs != WGS84 {
		return nil, errors.New(errors.ErrCodeInvalidCRS, "cannot reproject %s to %s: only %s targets are supported", t.CRS, crs, WGS84)
	}
	proj, ok := projectionFor(out.CRS)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidCRS, "no projection registered for %q", out.CRS)
	}
	for i := range out.Features {
		if g := out.Features[i].Geometry; g != nil {
			out.Features[i].Geometry = project.Geometry(g, proj)
		}
	}
	out.CRS = crs
	return out, nil
}

// Bound returns the bounding box of every geometry in t.
func (t *Table) Bound() orb.Bound {
	var (
		b     orb.Bound
		first = true
	)
	for _, f := range t.Features {
		if f.Geometry == nil {
			continue
		}
		if first {
			b = f.Geometry.Bound()
			first = false
			continue
		}
		b = b.Union(f.Geometry.Bound())
	}
	return b
}

// FeatureCollection converts t to GeoJSON. Feature IDs are the stringified
// entity IDs and properties are the row attributes.
func (t *Table) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range t.Features {
		gf := geojson.NewFeature(f.Geometry)
		gf.ID = f.Key()
		for _, k := range slices.Sorted(maps.Keys(f.Attrs)) {
			gf.Properties[k] = f.Attrs[k]
		}
		fc.Append(gf)
	}
	return fc
}

// Concat joins tables that share a CRS into a new table.
// Nil tables are skipped.
func Concat(tables ...*Table) (*Table, error) {
	var out *Table
	for _, t := range tables {
		if t == nil {
			continue
		}
		if out == nil {
			out = &Table{CRS: t.CRS}
		} else if t.CRS != out.CRS {
			return nil, errors.New(errors.ErrCodeInvalidCRS, "cannot concatenate tables in %s and %s", out.CRS, t.CRS)
		}
		for _, f := range t.Features {
			out.Features = append(out.Features, cloneFeature(f))
		}
	}
	if out == nil {
		out = &Table{CRS: WGS84}
	}
	return out, nil
}
