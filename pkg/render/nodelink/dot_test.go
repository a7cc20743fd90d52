package nodelink

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/matzehuels/geoviewer/pkg/geo"
	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/style"
)

func graphLayer() *layer.GeoData {
	tbl := geo.NewTable(geo.WGS84,
		geo.Feature{ID: 0, Geometry: orb.LineString{{0, 0}, {1, 1}}, Attrs: map[string]any{"from": int64(1), "to": int64(2)}},
		geo.Feature{ID: 1, Geometry: orb.Point{0, 0}},
		geo.Feature{ID: 2, Geometry: orb.Point{1, 1}},
	)
	return layer.NewGeoData("G_graph", tbl, style.Default()[style.Graph])
}

func TestToDOT(t *testing.T) {
	pg := layer.NewChoropleth("G_pgons", nil, nil, style.Preset{})
	dot := ToDOT([]layer.Drawable{pg, graphLayer()}, Options{Scale: 10, Labels: true})

	for _, want := range []string{
		"layout=neato;",
		"subgraph cluster_0",
		`label="G_graph";`,
		`"G_graph/1" [label="1", pos="0.00,0.00!"`,
		`"G_graph/2" [label="2", pos="10.00,10.00!"`,
		`"G_graph/1" -- "G_graph/2"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "G_pgons") {
		t.Error("choropleth layers should be skipped")
	}
}

func TestToDOTEmpty(t *testing.T) {
	dot := ToDOT(nil, Options{})
	if strings.Contains(dot, "subgraph") {
		t.Errorf("empty layer set produced clusters:\n%s", dot)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(ToDOT([]layer.Drawable{graphLayer()}, Options{}))
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) {
		t.Errorf("output is not SVG: %.100s", svg)
	}
}

func TestWidgetWritesDOT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.dot")
	w := NewWidget(path, Options{})
	if err := w.SetLayers(context.Background(), []layer.Drawable{graphLayer()}); err != nil {
		t.Fatalf("SetLayers: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "graph G {") {
		t.Errorf("file = %.60s", data)
	}
}
