// Package tiles materialises base map descriptions into tile layers.
package tiles

import (
	"slices"
	"strings"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/layer"
)

// DefaultName is the name of the base map every viewer starts with.
const DefaultName = "OpenStreetMap"

// Spec describes a raster tile source.
type Spec struct {
	Name        string `toml:"name" yaml:"name" json:"name"`
	URL         string `toml:"url" yaml:"url" json:"url"`
	Attribution string `toml:"attribution" yaml:"attribution" json:"attribution,omitempty"`
	MinZoom     int    `toml:"min_zoom" yaml:"min_zoom" json:"min_zoom,omitempty"`
	MaxZoom     int    `toml:"max_zoom" yaml:"max_zoom" json:"max_zoom,omitempty"`
}

// Factory turns a tile source description into a drawable.
type Factory interface {
	Materialize(spec Spec) (*layer.TileLayer, error)
}

// Default is the built-in OpenStreetMap base layer.
var Default = Spec{
	Name:        DefaultName,
	URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
	Attribution: "&copy; OpenStreetMap contributors",
	MinZoom:     4,
	MaxZoom:     19,
}

// builtins are the named base maps available without configuration.
var builtins = []Spec{
	Default,
	{
		Name:        "OpenTopoMap",
		URL:         "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors, SRTM | &copy; OpenTopoMap (CC-BY-SA)",
		MaxZoom:     17,
	},
	{
		Name:        "Esri.WorldImagery",
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri",
		MaxZoom:     20,
	},
	{
		Name:        "CartoDB.Positron",
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
		MaxZoom:     20,
	},
}

// Catalog is a set of named base maps and the default [Factory].
type Catalog struct {
	specs map[string]Spec
	order []string
}

var _ Factory = (*Catalog)(nil)

// NewCatalog creates a catalog of the built-in base maps plus extra.
// An extra spec replaces a built-in of the same name.
func NewCatalog(extra ...Spec) *Catalog {
	c := &Catalog{specs: map[string]Spec{}}
	for _, s := range builtins {
		c.add(s)
	}
	for _, s := range extra {
		c.add(s)
	}
	return c
}

func (c *Catalog) add(s Spec) {
	if _, ok := c.specs[s.Name]; !ok {
		c.order = append(c.order, s.Name)
	}
	c.specs[s.Name] = s
}

// Names returns the catalog entries in registration order.
func (c *Catalog) Names() []string { return slices.Clone(c.order) }

// Lookup returns the spec called name.
func (c *Catalog) Lookup(name string) (Spec, bool) {
	s, ok := c.specs[name]
	return s, ok
}

// Materialize validates spec and builds a base tile layer from it.
// A spec with only a name is resolved against the catalog.
func (c *Catalog) Materialize(spec Spec) (*layer.TileLayer, error) {
	if spec.URL == "" {
		known, ok := c.specs[spec.Name]
		if !ok {
			return nil, errors.New(errors.ErrCodeNotFound, "unknown base map %q", spec.Name)
		}
		spec = known
	}
	if err := validate(spec); err != nil {
		return nil, err
	}
	tl := layer.NewTileLayer(spec.Name, spec.URL)
	tl.Attribution = spec.Attribution
	tl.MinZoom = spec.MinZoom
	tl.MaxZoom = spec.MaxZoom
	tl.Base = true
	return tl, nil
}

func validate(s Spec) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "tile source needs a name")
	}
	if !strings.HasPrefix(s.URL, "https://") && !strings.HasPrefix(s.URL, "http://") {
		return errors.New(errors.ErrCodeInvalidInput, "tile source %q: url must be http(s), got %q", s.Name, s.URL)
	}
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(s.URL, p) {
			return errors.New(errors.ErrCodeInvalidInput, "tile source %q: url is missing %s", s.Name, p)
		}
	}
	if s.MinZoom < 0 || (s.MaxZoom != 0 && s.MaxZoom < s.MinZoom) {
		return errors.New(errors.ErrCodeInvalidInput, "tile source %q: bad zoom range %d..%d", s.Name, s.MinZoom, s.MaxZoom)
	}
	return nil
}
