package layer

import (
	"context"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/geoviewer/pkg/geo"
	"github.com/matzehuels/geoviewer/pkg/style"
)

// Drawable types.
const (
	TypeTile       = "tile"
	TypeGeoData    = "geodata"
	TypeChoropleth = "choropleth"
)

// Drawable is a layer object the rendering widget can draw.
type Drawable interface {
	// ID is the render identity. Two drawables with the same ID are the
	// same object on the widget.
	ID() string
	// Name is the display name.
	Name() string
	// Type is one of the Type* constants.
	Type() string
}

// Widget is the rendering widget. SetLayers replaces its entire displayed
// set with layers, in order.
type Widget interface {
	SetLayers(ctx context.Context, layers []Drawable) error
}

// WidgetFunc adapts a function to the Widget interface.
type WidgetFunc func(ctx context.Context, layers []Drawable) error

// SetLayers calls f.
func (f WidgetFunc) SetLayers(ctx context.Context, layers []Drawable) error {
	return f(ctx, layers)
}

type identity struct {
	id   string
	name string
}

func newIdentity(name string) identity {
	return identity{id: uuid.NewString(), name: name}
}

func (i identity) ID() string   { return i.id }
func (i identity) Name() string { return i.name }

// TileLayer is a raster base map.
type TileLayer struct {
	identity
	URL         string
	Attribution string
	MinZoom     int
	MaxZoom     int
	Base        bool
}

// NewTileLayer creates a tile layer with a fresh render identity.
func NewTileLayer(name, url string) *TileLayer {
	return &TileLayer{identity: newIdentity(name), URL: url}
}

// Type implements Drawable.
func (*TileLayer) Type() string { return TypeTile }

// GeoData draws the geometries of a table in WGS84.
type GeoData struct {
	identity
	Table  *geo.Table
	Preset style.Preset
}

// NewGeoData creates a geometry layer with a fresh render identity.
func NewGeoData(name string, table *geo.Table, preset style.Preset) *GeoData {
	return &GeoData{identity: newIdentity(name), Table: table, Preset: preset}
}

// Type implements Drawable.
func (*GeoData) Type() string { return TypeGeoData }

// Restyled returns a new drawable over the same table with preset applied.
// The result has a new render identity.
func (g *GeoData) Restyled(preset style.Preset) *GeoData {
	return NewGeoData(g.Name(), g.Table, preset)
}

// Choropleth colours regions by a per-entity value.
type Choropleth struct {
	identity
	GeoJSON *geojson.FeatureCollection
	Values  map[string]float64 // entity key → display value
	Column  string
	Min     float64
	Max     float64
	Preset  style.Preset
}

// NewChoropleth creates a choropleth with a fresh render identity.
func NewChoropleth(name string, fc *geojson.FeatureCollection, values map[string]float64, preset style.Preset) *Choropleth {
	return &Choropleth{identity: newIdentity(name), GeoJSON: fc, Values: values, Preset: preset}
}

// Type implements Drawable.
func (*Choropleth) Type() string { return TypeChoropleth }

// Degenerate reports whether the colour scale has a single value.
func (c *Choropleth) Degenerate() bool { return c.Min == c.Max }

var (
	_ Drawable = (*TileLayer)(nil)
	_ Drawable = (*GeoData)(nil)
	_ Drawable = (*Choropleth)(nil)
)
