package render

import (
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/style"
)

// Document is the wire form of one layer set, in render order.
type Document struct {
	Layers []LayerDoc `json:"layers"`
}

// LayerDoc is the wire form of one drawable.
type LayerDoc struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Type  string        `json:"type"`
	Style *style.Preset `json:"style,omitempty"`

	// Tile layers.
	URL         string `json:"url,omitempty"`
	Attribution string `json:"attribution,omitempty"`
	MinZoom     int    `json:"min_zoom,omitempty"`
	MaxZoom     int    `json:"max_zoom,omitempty"`
	Base        bool   `json:"base,omitempty"`

	// Geometry layers.
	Data *geojson.FeatureCollection `json:"data,omitempty"`

	// Choropleths.
	Column string             `json:"column,omitempty"`
	Values map[string]float64 `json:"values,omitempty"`
	Min    *float64           `json:"min,omitempty"`
	Max    *float64           `json:"max,omitempty"`
}

// Encode converts a layer set to its wire form. Unknown drawable types keep
// only their identity.
func Encode(layers []layer.Drawable) Document {
	doc := Document{Layers: make([]LayerDoc, 0, len(layers))}
	for _, d := range layers {
		ld := LayerDoc{ID: d.ID(), Name: d.Name(), Type: d.Type()}
		switch d := d.(type) {
		case *layer.TileLayer:
			ld.URL = d.URL
			ld.Attribution = d.Attribution
			ld.MinZoom = d.MinZoom
			ld.MaxZoom = d.MaxZoom
			ld.Base = d.Base
		case *layer.GeoData:
			p := d.Preset
			ld.Style = &p
			ld.Data = d.Table.FeatureCollection()
		case *layer.Choropleth:
			p := d.Preset
			lo, hi := d.Min, d.Max
			ld.Style = &p
			ld.Data = d.GeoJSON
			ld.Column = d.Column
			ld.Values = d.Values
			ld.Min, ld.Max = &lo, &hi
		}
		doc.Layers = append(doc.Layers, ld)
	}
	return doc
}
