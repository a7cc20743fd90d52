// Package style holds the named visual presets used when the viewer builds
// drawables for each layer subtype.
//
// A [Table] maps a preset name (normally a layer subtype such as "graph" or
// "pgons") to a [Preset]. Builders receive presets by value, so a drawable
// never observes later edits to the table; restyling means rebuilding.
package style

import (
	"slices"
	"sync"
)

// Preset names.
const (
	Graph                = "graph"
	Pgons                = "pgons"
	Components           = "components"
	DisconnectedNodes    = "disconnected_nodes"
	PoorlyConnectedNodes = "poorly_connected_nodes"
	NodeDynamics         = "node_dynamics"
	NodeChange           = "node_change"
)

// Path describes stroke and fill of a drawn shape.
type Path struct {
	Color       string  `toml:"color" yaml:"color" json:"color,omitempty"`
	Weight      float64 `toml:"weight" yaml:"weight" json:"weight,omitempty"`
	Opacity     float64 `toml:"opacity" yaml:"opacity" json:"opacity,omitempty"`
	FillColor   string  `toml:"fill_color" yaml:"fill_color" json:"fillColor,omitempty"`
	FillOpacity float64 `toml:"fill_opacity" yaml:"fill_opacity" json:"fillOpacity,omitempty"`
	DashArray   string  `toml:"dash_array" yaml:"dash_array" json:"dashArray,omitempty"`
}

// Point describes how point geometries are drawn.
type Point struct {
	Radius float64 `toml:"radius" yaml:"radius" json:"radius,omitempty"`
}

// Preset is the full set of visual parameters for one subtype.
type Preset struct {
	Style      Path   `toml:"style" yaml:"style" json:"style"`
	HoverStyle Path   `toml:"hover_style" yaml:"hover_style" json:"hoverStyle"`
	PointStyle Point  `toml:"point_style" yaml:"point_style" json:"pointStyle"`
	Colormap   string `toml:"colormap" yaml:"colormap" json:"colormap,omitempty"` // choropleth colour scale name
}

// Merge returns p with every non-zero field of o applied on top.
func (p Preset) Merge(o Preset) Preset {
	p.Style = p.Style.merge(o.Style)
	p.HoverStyle = p.HoverStyle.merge(o.HoverStyle)
	if o.PointStyle.Radius != 0 {
		p.PointStyle.Radius = o.PointStyle.Radius
	}
	if o.Colormap != "" {
		p.Colormap = o.Colormap
	}
	return p
}

func (p Path) merge(o Path) Path {
	if o.Color != "" {
		p.Color = o.Color
	}
	if o.Weight != 0 {
		p.Weight = o.Weight
	}
	if o.Opacity != 0 {
		p.Opacity = o.Opacity
	}
	if o.FillColor != "" {
		p.FillColor = o.FillColor
	}
	if o.FillOpacity != 0 {
		p.FillOpacity = o.FillOpacity
	}
	if o.DashArray != "" {
		p.DashArray = o.DashArray
	}
	return p
}

// Default returns the built-in presets.
func Default() map[string]Preset {
	return map[string]Preset{
		Graph: {
			Style:      Path{Color: "black", Weight: 1, Opacity: 0.8, FillColor: "black", FillOpacity: 0.6},
			HoverStyle: Path{FillColor: "red", FillOpacity: 0.2},
			PointStyle: Point{Radius: 10},
		},
		Pgons: {
			Style:      Path{Color: "black", Weight: 0.5, Opacity: 0.5, FillOpacity: 0.7, DashArray: "2"},
			HoverStyle: Path{FillOpacity: 0.9},
			Colormap:   "viridis",
		},
		Components: {
			Style:      Path{Color: "blue", Weight: 2, Opacity: 0.6, FillColor: "blue", FillOpacity: 0.2},
			HoverStyle: Path{FillOpacity: 0.4},
		},
		DisconnectedNodes: {
			Style:      Path{Color: "red", Weight: 1, Opacity: 1, FillColor: "red", FillOpacity: 0.8},
			PointStyle: Point{Radius: 12},
		},
		PoorlyConnectedNodes: {
			Style:      Path{Color: "orange", Weight: 1, Opacity: 1, FillColor: "orange", FillOpacity: 0.8},
			PointStyle: Point{Radius: 12},
		},
		NodeDynamics: {
			Style:      Path{Color: "black", Weight: 0.5, Opacity: 0.5, FillOpacity: 0.8},
			HoverStyle: Path{FillOpacity: 1},
			Colormap:   "dynamics",
		},
		NodeChange: {
			Style:      Path{Color: "black", Weight: 0.5, Opacity: 0.5, FillOpacity: 0.8},
			HoverStyle: Path{FillOpacity: 1},
			Colormap:   "RdYlGn",
		},
	}
}

// Table is a concurrency-safe set of named presets.
type Table struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

// NewTable creates a table seeded with [Default] and the given overrides,
// which are merged onto the defaults field by field.
func NewTable(overrides map[string]Preset) *Table {
	t := &Table{presets: Default()}
	for name, o := range overrides {
		t.presets[name] = t.presets[name].Merge(o)
	}
	return t
}

// Get returns the preset for name. Unknown names yield the zero preset.
func (t *Table) Get(name string) Preset {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.presets[name]
}

// Set replaces the preset for name.
func (t *Table) Set(name string, p Preset) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.presets[name] = p
}

// Update applies fn to the preset for name and stores the result.
func (t *Table) Update(name string, fn func(Preset) Preset) Preset {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := fn(t.presets[name])
	t.presets[name] = p
	return p
}

// Names returns the preset names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.presets))
	for n := range t.presets {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
