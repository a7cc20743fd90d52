// Package layer holds the viewer's layer state: the drawable types handed to
// the rendering widget and the [Registry] that decides which of them are
// shown.
//
// # Registry layout
//
// The registry is a three-level mapping
//
//	kind → name → subtype → Leaf{Drawable, Active}
//
// Kinds are "maps" (single subtype "map") and "graphs" (subtypes in
// [GraphSubtypes] order). Further kinds can be added with
// [Registry.RegisterKind]. Names are unique within a kind and kept in
// insertion order.
//
// # Reconciliation order
//
// [Registry.Active] returns the drawables to render: every kind in
// registration order, every name in insertion order, every subtype in the
// kind's fixed order, keeping only leaves that are active and hold a
// drawable. A leaf without a drawable can never be activated.
//
// # Concurrency
//
// All Registry methods are safe for concurrent use. One mutex guards the
// whole registry for the duration of a single mutation or read pass.
package layer
