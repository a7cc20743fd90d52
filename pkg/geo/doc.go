// Package geo provides the attribute tables the viewer moves between its
// collaborators: rows of (entity ID, geometry, attributes) tagged with a
// coordinate reference system.
//
// Geometries are [orb] geometries. The display CRS is always [WGS84]; tables
// in other systems are reprojected with [Table.ToCRS], which works on a copy
// and never mutates the receiver.
//
// # Projections
//
// Only Web-Mercator ([WebMercator]) ships with a projection to WGS84. Other
// systems are supplied by the geometry collaborator at startup:
//
//	geo.RegisterProjection("EPSG:32635", utm35nToWGS84)
//
// [orb]: https://github.com/paulmach/orb
package geo
