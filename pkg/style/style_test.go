package style

import "testing"

func TestDefaultCoversSubtypes(t *testing.T) {
	d := Default()
	for _, name := range []string{Graph, Pgons, Components, DisconnectedNodes, PoorlyConnectedNodes, NodeDynamics, NodeChange} {
		if _, ok := d[name]; !ok {
			t.Errorf("Default() missing preset %q", name)
		}
	}
	if d[Graph].PointStyle.Radius != 10 {
		t.Errorf("graph radius = %v, want 10", d[Graph].PointStyle.Radius)
	}
}

func TestNewTableMergesOverrides(t *testing.T) {
	tbl := NewTable(map[string]Preset{
		Graph: {PointStyle: Point{Radius: 4}, Style: Path{FillColor: "blue"}},
		"custom": {Colormap: "magma"},
	})

	g := tbl.Get(Graph)
	if g.PointStyle.Radius != 4 {
		t.Errorf("radius = %v, want 4", g.PointStyle.Radius)
	}
	if g.Style.FillColor != "blue" {
		t.Errorf("fill = %q, want blue", g.Style.FillColor)
	}
	if g.Style.Color != "black" {
		t.Errorf("unset field should keep default, got %q", g.Style.Color)
	}
	if tbl.Get("custom").Colormap != "magma" {
		t.Error("new preset not registered")
	}
}

func TestUpdate(t *testing.T) {
	tbl := NewTable(nil)
	p := tbl.Update(Graph, func(p Preset) Preset {
		p.PointStyle.Radius = 3
		return p
	})
	if p.PointStyle.Radius != 3 || tbl.Get(Graph).PointStyle.Radius != 3 {
		t.Error("Update did not store preset")
	}
}

func TestPresetsAreValues(t *testing.T) {
	tbl := NewTable(nil)
	p := tbl.Get(Pgons)
	p.Colormap = "changed"
	if tbl.Get(Pgons).Colormap == "changed" {
		t.Error("Get should return a copy")
	}
}

func TestNamesSorted(t *testing.T) {
	names := NewTable(nil).Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("Names not sorted: %v", names)
		}
	}
}
