package layer

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geo"
	"github.com/matzehuels/geoviewer/pkg/style"
)

func geoData(name string) *GeoData {
	return NewGeoData(name, geo.NewTable(geo.WGS84), style.Preset{})
}

// fullGroup returns a group with a drawable for every subtype except those in nilSubtypes.
func fullGroup(name string, nilSubtypes ...Subtype) GraphGroup {
	g := GraphGroup{Name: name, Drawables: map[Subtype]Drawable{}}
	for _, st := range GraphSubtypes {
		g.Drawables[st] = geoData(name + "_" + string(st))
	}
	for _, st := range nilSubtypes {
		delete(g.Drawables, st)
	}
	return g
}

func names(ds []Drawable) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDefaultActivation(t *testing.T) {
	r := NewRegistry()
	if err := r.AddMap(NewTileLayer("osm", "https://tile"), "OpenStreetMap"); err != nil {
		t.Fatalf("AddMap: %v", err)
	}
	if err := r.AddGraphGroups(fullGroup("G")); err != nil {
		t.Fatalf("AddGraphGroups: %v", err)
	}

	got := names(r.Active())
	want := []string{"osm", "G_pgons", "G_graph"}
	if !equal(got, want) {
		t.Errorf("Active() = %v, want %v", got, want)
	}
}

func TestReconciliationOrder(t *testing.T) {
	r := NewRegistry()
	_ = r.AddMap(NewTileLayer("a", ""), "A")
	_ = r.AddMap(NewTileLayer("b", ""), "B")
	_ = r.AddGraphGroups(fullGroup("G"), fullGroup("H"))

	// Toggle in an order unrelated to the render order.
	_ = r.SetVisibility(KindGraphs, "H", SubtypeNodeChange, true)
	_ = r.SetVisibility(KindGraphs, "G", SubtypeComponents, true)
	_ = r.SetVisibility(KindMaps, "A", SubtypeMap, false)
	_ = r.SetVisibility(KindGraphs, "G", SubtypePgons, false)

	got := names(r.Active())
	want := []string{"b", "G_graph", "G_components", "H_pgons", "H_graph", "H_node_change"}
	if !equal(got, want) {
		t.Errorf("Active() = %v, want %v", got, want)
	}
}

func TestActiveMatchesFlagsForRandomToggles(t *testing.T) {
	r := NewRegistry()
	_ = r.AddMap(NewTileLayer("m", ""), "M")
	_ = r.AddGraphGroups(fullGroup("G", SubtypeNodeDynamics, SubtypeNodeChange), fullGroup("H"))

	rng := rand.New(rand.NewSource(7))
	graphs := []string{"G", "H"}
	for i := 0; i < 200; i++ {
		name := graphs[rng.Intn(len(graphs))]
		st := GraphSubtypes[rng.Intn(len(GraphSubtypes))]
		_ = r.SetVisibility(KindGraphs, name, st, rng.Intn(2) == 0)

		var want []string
		for _, s := range r.Snapshot() {
			if s.Active {
				want = append(want, s.LayerName)
			}
		}
		if got := names(r.Active()); !equal(got, want) {
			t.Fatalf("step %d: Active() = %v, want %v", i, got, want)
		}
	}
}

func TestHideAll(t *testing.T) {
	r := NewRegistry()
	_ = r.AddMap(NewTileLayer("m", ""), "M")
	_ = r.AddGraphGroups(fullGroup("G"), GraphGroup{Name: "H", IsHabitat: true, Parent: "G"})
	_ = r.SetVisibility(KindGraphs, "G", SubtypeComponents, true)

	r.HideAll()
	if got := r.Active(); len(got) != 0 {
		t.Errorf("Active() after HideAll = %v, want empty", names(got))
	}
	for _, s := range r.Snapshot() {
		if s.Active {
			t.Errorf("%s/%s/%s still active", s.Kind, s.Name, s.Subtype)
		}
	}
}

func TestSetVisibilityNotFound(t *testing.T) {
	r := NewRegistry()
	_ = r.AddGraphGroups(fullGroup("G"))

	tests := []struct {
		kind    Kind
		name    string
		subtype Subtype
	}{
		{"rasters", "G", SubtypeGraph},
		{KindGraphs, "missing", SubtypeGraph},
		{KindGraphs, "G", "heatmap"},
		{KindMaps, "G", SubtypeMap},
	}
	for _, tt := range tests {
		err := r.SetVisibility(tt.kind, tt.name, tt.subtype, true)
		if !errors.Is(err, errors.ErrCodeNotFound) {
			t.Errorf("SetVisibility(%s,%s,%s) = %v, want NOT_FOUND", tt.kind, tt.name, tt.subtype, err)
		}
	}
}

func TestNilDrawableCannotBeActivated(t *testing.T) {
	r := NewRegistry()
	_ = r.AddGraphGroups(fullGroup("G", SubtypeNodeDynamics))

	err := r.SetVisibility(KindGraphs, "G", SubtypeNodeDynamics, true)
	if !errors.Is(err, errors.ErrCodePrecondition) {
		t.Fatalf("expected PRECONDITION, got %v", err)
	}
	l, _ := r.Leaf(KindGraphs, "G", SubtypeNodeDynamics)
	if l.Active {
		t.Error("nil leaf flag should stay false")
	}
	if err := r.SetVisibility(KindGraphs, "G", SubtypeNodeDynamics, false); err != nil {
		t.Errorf("deactivating a nil leaf should succeed: %v", err)
	}

	// A nil pgons leaf is not default-active either.
	_ = r.AddGraphGroups(fullGroup("H", SubtypePgons))
	if l, _ := r.Leaf(KindGraphs, "H", SubtypePgons); l.Active {
		t.Error("nil pgons leaf should not start active")
	}
}

func TestAddMapDuplicates(t *testing.T) {
	r := NewRegistry()
	osm := NewTileLayer("osm", "")
	if err := r.AddMap(osm, "OpenStreetMap"); err != nil {
		t.Fatalf("AddMap: %v", err)
	}
	if err := r.AddMap(NewTileLayer("other", ""), "OpenStreetMap"); !errors.Is(err, errors.ErrCodeDuplicateName) {
		t.Errorf("same name: %v", err)
	}
	if err := r.AddMap(osm, "Second"); !errors.Is(err, errors.ErrCodeDuplicateName) {
		t.Errorf("same identity: %v", err)
	}
	if err := r.AddMap(nil, "Nil"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("nil drawable: %v", err)
	}
	if len(r.Names(KindMaps)) != 1 {
		t.Errorf("maps = %v", r.Names(KindMaps))
	}
}

func TestAddGraphGroupsAtomic(t *testing.T) {
	r := NewRegistry()
	_ = r.AddGraphGroups(fullGroup("G"))
	before := r.Snapshot()

	err := r.AddGraphGroups(fullGroup("X"), fullGroup("G"))
	if !errors.Is(err, errors.ErrCodeDuplicateName) {
		t.Fatalf("expected DUPLICATE_NAME, got %v", err)
	}
	if r.Has(KindGraphs, "X") {
		t.Error("partial insert: X was registered")
	}
	if len(r.Snapshot()) != len(before) {
		t.Error("registry changed after failed insert")
	}

	if err := r.AddGraphGroups(fullGroup("Y"), fullGroup("Y")); !errors.Is(err, errors.ErrCodeDuplicateName) {
		t.Errorf("duplicate in batch: %v", err)
	}
	if err := r.AddGraphGroups(GraphGroup{Name: "Z", IsHabitat: true}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("habitat without parent: %v", err)
	}
	bad := fullGroup("W")
	bad.Drawables["heatmap"] = geoData("x")
	if err := r.AddGraphGroups(bad); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("unknown subtype: %v", err)
	}
}

func TestGraphInfo(t *testing.T) {
	r := NewRegistry()
	h := fullGroup("H1")
	h.IsHabitat, h.Parent = true, "G"
	_ = r.AddGraphGroups(fullGroup("G"), h)

	info, ok := r.Graph("H1")
	if !ok {
		t.Fatal("Graph(H1) not found")
	}
	if !info.IsHabitat || info.Parent != "G" {
		t.Errorf("info = %+v", info)
	}
	if len(info.Leaves) != len(GraphSubtypes) {
		t.Errorf("leaves = %d, want %d", len(info.Leaves), len(GraphSubtypes))
	}
	if _, ok := r.Graph("nope"); ok {
		t.Error("Graph(nope) should not be found")
	}
}

func TestRestyle(t *testing.T) {
	r := NewRegistry()
	_ = r.AddGraphGroups(fullGroup("G"), fullGroup("H", SubtypeGraph))

	old, _ := r.Leaf(KindGraphs, "G", SubtypeGraph)
	calls := 0
	err := r.Restyle(KindGraphs, SubtypeGraph, func(name string, d Drawable) (Drawable, error) {
		calls++
		return d.(*GeoData).Restyled(style.Preset{PointStyle: style.Point{Radius: 3}}), nil
	})
	if err != nil {
		t.Fatalf("Restyle: %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (nil leaves skipped)", calls)
	}
	l, _ := r.Leaf(KindGraphs, "G", SubtypeGraph)
	if l.Drawable.ID() == old.Drawable.ID() {
		t.Error("restyled drawable should have a new identity")
	}
	if l.Drawable.(*GeoData).Preset.PointStyle.Radius != 3 {
		t.Error("preset not applied")
	}
	if !l.Active {
		t.Error("restyle should keep the active flag")
	}

	failing := fmt.Errorf("boom")
	err = r.Restyle(KindGraphs, SubtypePgons, func(name string, d Drawable) (Drawable, error) {
		if name == "H" {
			return nil, failing
		}
		return geoData("replaced"), nil
	})
	if err != failing {
		t.Fatalf("Restyle error = %v", err)
	}
	if l, _ := r.Leaf(KindGraphs, "G", SubtypePgons); l.Drawable.Name() == "replaced" {
		t.Error("failed restyle should replace nothing")
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry()
	_ = r.AddGraphGroups(fullGroup("G"), fullGroup("H"))
	if err := r.Remove(KindGraphs, "G"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := r.Names(KindGraphs); len(got) != 1 || got[0] != "H" {
		t.Errorf("Names = %v", got)
	}
	if err := r.Remove(KindGraphs, "G"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("second Remove = %v", err)
	}
	// The name is free again.
	if err := r.AddGraphGroups(fullGroup("G")); err != nil {
		t.Errorf("re-add after remove: %v", err)
	}
}

func TestRegisterKind(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterKind(KindMaps, []Subtype{SubtypeMap}); !errors.Is(err, errors.ErrCodeDuplicateName) {
		t.Errorf("duplicate kind = %v", err)
	}
	if err := r.RegisterKind("overlays", nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("empty subtypes = %v", err)
	}
	if err := r.RegisterKind("overlays", []Subtype{"labels"}); err != nil {
		t.Fatalf("RegisterKind: %v", err)
	}
	if err := r.SetVisibility("overlays", "x", "labels", true); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("SetVisibility on empty kind = %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	_ = r.AddGraphGroups(fullGroup("G"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.SetVisibility(KindGraphs, "G", GraphSubtypes[(i+j)%len(GraphSubtypes)], j%2 == 0)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Active()
			}
		}()
	}
	wg.Wait()
}
