// Package render provides rendering widgets for the viewer.
//
// # Overview
//
// A widget receives the complete ordered layer set on every reconciliation
// and replaces whatever it showed before. This package provides:
//
//   - [Encode]: the JSON layer document shared by the widgets
//   - [GeoJSONWidget]: writes every drawable into one GeoJSON file
//   - [RedisWidget]: publishes layer documents on a Redis channel
//   - [Fanout]: forwards one layer set to several widgets
//
// The [nodelink] subpackage renders the graph layers as a Graphviz
// node-link diagram.
//
//	w := render.NewGeoJSONWidget("layers.geojson")
//	v, err := viewer.New(render.Fanout(w, nodelink.NewWidget("graph.svg")), viewer.Options{})
//
// [nodelink]: github.com/matzehuels/geoviewer/pkg/render/nodelink
package render
