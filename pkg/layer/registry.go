package layer

import (
	"slices"
	"sync"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geograph"
)

// Kind is the first registry level.
type Kind string

// Built-in kinds.
const (
	KindMaps   Kind = "maps"
	KindGraphs Kind = "graphs"
)

// Subtype is the third registry level.
type Subtype string

// Built-in subtypes.
const (
	SubtypeMap                  Subtype = "map"
	SubtypePgons                Subtype = "pgons"
	SubtypeGraph                Subtype = "graph"
	SubtypeComponents           Subtype = "components"
	SubtypeDisconnectedNodes    Subtype = "disconnected_nodes"
	SubtypePoorlyConnectedNodes Subtype = "poorly_connected_nodes"
	SubtypeNodeDynamics         Subtype = "node_dynamics"
	SubtypeNodeChange           Subtype = "node_change"
)

// GraphSubtypes is the fixed subtype order of a graph layer group.
var GraphSubtypes = []Subtype{
	SubtypePgons,
	SubtypeGraph,
	SubtypeComponents,
	SubtypeDisconnectedNodes,
	SubtypePoorlyConnectedNodes,
	SubtypeNodeDynamics,
	SubtypeNodeChange,
}

// defaultActive lists graph subtypes shown when a group is added.
var defaultActive = map[Subtype]bool{
	SubtypeGraph: true,
	SubtypePgons: true,
}

// Leaf is one registry entry.
type Leaf struct {
	Drawable Drawable
	Active   bool
}

// Visible reports whether the leaf is rendered.
func (l Leaf) Visible() bool { return l.Active && l.Drawable != nil }

// GraphGroup is the full leaf set for one graph or habitat.
// Subtypes missing from Drawables are recorded as nil leaves.
type GraphGroup struct {
	Name      string
	IsHabitat bool
	Parent    string
	Drawables map[Subtype]Drawable
	Metrics   []geograph.Metric
	Original  geograph.GeoGraph
}

// GraphInfo is a read-only view of a registered graph group.
type GraphInfo struct {
	Name      string
	IsHabitat bool
	Parent    string
	Metrics   []geograph.Metric
	Original  geograph.GeoGraph
	Leaves    map[Subtype]Leaf
}

// LayerState describes one leaf for control widgets.
type LayerState struct {
	Kind      Kind    `json:"kind"`
	Name      string  `json:"name"`
	Subtype   Subtype `json:"subtype"`
	LayerName string  `json:"layer_name,omitempty"`
	Active    bool    `json:"active"`
	Available bool    `json:"available"`
	IsHabitat bool    `json:"is_habitat,omitempty"`
	Parent    string  `json:"parent,omitempty"`
}

type graphMeta struct {
	isHabitat bool
	parent    string
	metrics   []geograph.Metric
	original  geograph.GeoGraph
}

type entry struct {
	name   string
	leaves map[Subtype]*Leaf
	graph  *graphMeta
}

type kindTable struct {
	subtypes []Subtype
	order    []string
	entries  map[string]*entry
}

// Registry is the single source of truth for what could be shown.
type Registry struct {
	mu     sync.RWMutex
	kinds  []Kind
	tables map[Kind]*kindTable
}

// NewRegistry creates a registry with the "maps" and "graphs" kinds.
func NewRegistry() *Registry {
	r := &Registry{tables: map[Kind]*kindTable{}}
	_ = r.RegisterKind(KindMaps, []Subtype{SubtypeMap})
	_ = r.RegisterKind(KindGraphs, GraphSubtypes)
	return r
}

// RegisterKind adds a kind rendered after all previously registered kinds.
func (r *Registry) RegisterKind(kind Kind, subtypes []Subtype) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[kind]; ok {
		return errors.New(errors.ErrCodeDuplicateName, "layer kind %q already registered", kind)
	}
	if len(subtypes) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "layer kind %q needs at least one subtype", kind)
	}
	r.kinds = append(r.kinds, kind)
	r.tables[kind] = &kindTable{subtypes: slices.Clone(subtypes), entries: map[string]*entry{}}
	return nil
}

func (r *Registry) leaf(kind Kind, name string, subtype Subtype) (*Leaf, error) {
	tbl, ok := r.tables[kind]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "no layer kind %q", kind)
	}
	e, ok := tbl.entries[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "no %s layer named %q", kind, name)
	}
	l, ok := e.leaves[subtype]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "%s layer %q has no subtype %q", kind, name, subtype)
	}
	return l, nil
}

// SetVisibility sets the active flag of one leaf.
// Activating a leaf without a drawable fails with PRECONDITION and leaves
// the flag unchanged.
func (r *Registry) SetVisibility(kind Kind, name string, subtype Subtype, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, err := r.leaf(kind, name, subtype)
	if err != nil {
		return err
	}
	if active && l.Drawable == nil {
		return errors.New(errors.ErrCodePrecondition, "%s layer %q has no %s drawable to show", kind, name, subtype)
	}
	l.Active = active
	return nil
}

// Leaf returns a copy of one leaf.
func (r *Registry) Leaf(kind Kind, name string, subtype Subtype) (Leaf, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, err := r.leaf(kind, name, subtype)
	if err != nil {
		return Leaf{}, err
	}
	return *l, nil
}

// HideAll deactivates every leaf, walking each kind's subtypes explicitly.
func (r *Registry) HideAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range r.kinds {
		tbl := r.tables[kind]
		for _, name := range tbl.order {
			e := tbl.entries[name]
			for _, st := range tbl.subtypes {
				if l, ok := e.leaves[st]; ok {
					l.Active = false
				}
			}
		}
	}
}

// AddMap inserts an active map layer. It fails with DUPLICATE_NAME if a map
// layer with the same name or the same render identity exists.
func (r *Registry) AddMap(d Drawable, name string) error {
	if d == nil {
		return errors.New(errors.ErrCodeInvalidInput, "map layer %q has no drawable", name)
	}
	if err := errors.ValidateLayerName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	tbl := r.tables[KindMaps]
	if _, ok := tbl.entries[name]; ok {
		return errors.New(errors.ErrCodeDuplicateName, "map layer %q already exists, choose another name", name)
	}
	for _, n := range tbl.order {
		if l := tbl.entries[n].leaves[SubtypeMap]; l.Drawable != nil && l.Drawable.ID() == d.ID() {
			return errors.New(errors.ErrCodeDuplicateName, "layer %q is already on the map as %q", d.Name(), n)
		}
	}
	tbl.insert(&entry{
		name:   name,
		leaves: map[Subtype]*Leaf{SubtypeMap: {Drawable: d, Active: true}},
	})
	return nil
}

// AddGraphGroups inserts graph groups atomically: either every group is
// inserted or none is.
func (r *Registry) AddGraphGroups(groups ...GraphGroup) error {
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if err := errors.ValidateLayerName(g.Name); err != nil {
			return err
		}
		if g.IsHabitat != (g.Parent != "") {
			return errors.New(errors.ErrCodeInvalidInput, "graph %q: parent must be set exactly for habitats", g.Name)
		}
		if seen[g.Name] {
			return errors.New(errors.ErrCodeDuplicateName, "graph %q appears twice", g.Name)
		}
		seen[g.Name] = true
		for st := range g.Drawables {
			if !slices.Contains(GraphSubtypes, st) {
				return errors.New(errors.ErrCodeInvalidInput, "graph %q: unknown subtype %q", g.Name, st)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	tbl := r.tables[KindGraphs]
	for _, g := range groups {
		if _, ok := tbl.entries[g.Name]; ok {
			return errors.New(errors.ErrCodeDuplicateName, "graph layer %q already exists", g.Name)
		}
	}
	for _, g := range groups {
		leaves := make(map[Subtype]*Leaf, len(GraphSubtypes))
		for _, st := range GraphSubtypes {
			d := g.Drawables[st]
			leaves[st] = &Leaf{Drawable: d, Active: d != nil && defaultActive[st]}
		}
		tbl.insert(&entry{
			name:   g.Name,
			leaves: leaves,
			graph: &graphMeta{
				isHabitat: g.IsHabitat,
				parent:    g.Parent,
				metrics:   slices.Clone(g.Metrics),
				original:  g.Original,
			},
		})
	}
	return nil
}

func (t *kindTable) insert(e *entry) {
	t.entries[e.name] = e
	t.order = append(t.order, e.name)
}

// Remove deletes one named entry of a kind.
func (r *Registry) Remove(kind Kind, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tbl, ok := r.tables[kind]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "no layer kind %q", kind)
	}
	if _, ok := tbl.entries[name]; !ok {
		return errors.New(errors.ErrCodeNotFound, "no %s layer named %q", kind, name)
	}
	delete(tbl.entries, name)
	tbl.order = slices.DeleteFunc(tbl.order, func(n string) bool { return n == name })
	return nil
}

// Active returns the visible drawables in reconciliation order.
func (r *Registry) Active() []Drawable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Drawable
	for _, kind := range r.kinds {
		tbl := r.tables[kind]
		for _, name := range tbl.order {
			e := tbl.entries[name]
			for _, st := range tbl.subtypes {
				if l, ok := e.leaves[st]; ok && l.Visible() {
					out = append(out, l.Drawable)
				}
			}
		}
	}
	return out
}

// Restyle replaces the drawable of subtype on every entry of kind with the
// result of fn. Nil drawables are skipped. If fn fails for any entry nothing
// is replaced. fn runs under the registry lock and must not call back into
// the registry.
func (r *Registry) Restyle(kind Kind, subtype Subtype, fn func(name string, d Drawable) (Drawable, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tbl, ok := r.tables[kind]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "no layer kind %q", kind)
	}
	replaced := make(map[string]Drawable, len(tbl.order))
	for _, name := range tbl.order {
		l, ok := tbl.entries[name].leaves[subtype]
		if !ok || l.Drawable == nil {
			continue
		}
		d, err := fn(name, l.Drawable)
		if err != nil {
			return err
		}
		replaced[name] = d
	}
	for name, d := range replaced {
		tbl.entries[name].leaves[subtype].Drawable = d
	}
	return nil
}

// Names returns the entry names of kind in insertion order.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tbl, ok := r.tables[kind]; ok {
		return slices.Clone(tbl.order)
	}
	return nil
}

// Has reports whether kind has an entry called name.
func (r *Registry) Has(kind Kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tbl, ok := r.tables[kind]
	if !ok {
		return false
	}
	_, ok = tbl.entries[name]
	return ok
}

// Graph returns the registered graph group called name.
func (r *Registry) Graph(name string) (GraphInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tables[KindGraphs].entries[name]
	if !ok {
		return GraphInfo{}, false
	}
	info := GraphInfo{
		Name:      name,
		IsHabitat: e.graph.isHabitat,
		Parent:    e.graph.parent,
		Metrics:   slices.Clone(e.graph.metrics),
		Original:  e.graph.original,
		Leaves:    make(map[Subtype]Leaf, len(e.leaves)),
	}
	for st, l := range e.leaves {
		info.Leaves[st] = *l
	}
	return info, true
}

// Snapshot lists every leaf in reconciliation order.
func (r *Registry) Snapshot() []LayerState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []LayerState
	for _, kind := range r.kinds {
		tbl := r.tables[kind]
		for _, name := range tbl.order {
			e := tbl.entries[name]
			for _, st := range tbl.subtypes {
				l, ok := e.leaves[st]
				if !ok {
					continue
				}
				s := LayerState{Kind: kind, Name: name, Subtype: st, Active: l.Visible(), Available: l.Drawable != nil}
				if l.Drawable != nil {
					s.LayerName = l.Drawable.Name()
				}
				if e.graph != nil {
					s.IsHabitat = e.graph.isHabitat
					s.Parent = e.graph.parent
				}
				out = append(out, s)
			}
		}
	}
	return out
}
