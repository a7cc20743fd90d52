// Package nodelink renders the graph layers of a layer set as a node-link
// diagram.
//
// # Overview
//
// Every geometry layer contributes its point features as nodes and its
// line features carrying "from" and "to" attributes as edges. Each layer
// becomes one Graphviz cluster. Nodes are pinned at their map position and
// laid out with neato, so the diagram keeps the map's geography.
// Choropleth and tile layers are skipped.
//
// # Usage
//
//	dot := nodelink.ToDOT(layers, nodelink.Options{Scale: 50})
//	svg, err := nodelink.RenderSVG(dot)
//
// [Widget] does both on every reconciliation and writes the SVG to a file.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package nodelink
