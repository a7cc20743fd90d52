// Package geograph defines what the viewer needs from a GeoGraph: a set of
// landscape patches (polygons) with a connectivity graph over them, optionally
// containing named sub-graphs called habitats.
//
// # Contracts
//
//   - [GeoGraph]: the graph object, its attribute table, habitats, component
//     analysis and metric computation
//   - [GeometryUtil]: node/edge geometry derivation, dynamics encoding and
//     buffering
//
// The connectivity graph is exposed as a gonum [graph.Undirected] so degree
// queries and traversals use the gonum API.
//
// # Reference implementation
//
// [Memory] and [Planar] are small in-process implementations backed by
// gonum's simple graph and orb's planar geometry. They serve the CLI and the
// tests; production callers plug in their own graph library.
//
// Graph files are read with [LoadFile]:
//
//	name, g, err := geograph.LoadFile("chernobyl.json")
//
// [graph.Undirected]: https://pkg.go.dev/gonum.org/v1/gonum/graph#Undirected
package geograph
