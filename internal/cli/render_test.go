package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

const landscapeJSON = `{
  "name": "Land",
  "crs": "EPSG:4326",
  "max_travel_distance": 1,
  "patches": {"type": "FeatureCollection", "features": [
    {"type": "Feature", "id": 1, "properties": {"class_label": "forest"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "id": 2, "properties": {"class_label": "meadow"},
     "geometry": {"type": "Polygon", "coordinates": [[[2,0],[3,0],[3,1],[2,1],[2,0]]]}},
    {"type": "Feature", "id": 3, "properties": {"class_label": "forest"},
     "geometry": {"type": "Polygon", "coordinates": [[[6,0],[7,0],[7,1],[6,1],[6,0]]]}}
  ]},
  "edges": [[1, 2]],
  "habitats": [{"name": "Forest", "nodes": [1, 3], "edges": []}]
}`

// testEnv writes a graph and a config file and captures status output.
func testEnv(t *testing.T) (dir string, status *bytes.Buffer) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.WriteFile(filepath.Join(dir, "landscape.json"), []byte(landscapeJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := "layer_update_delay = \"20ms\"\nlog_level = \"warn\"\n"
	if err := os.WriteFile(filepath.Join(dir, "geoviewer.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	status = &bytes.Buffer{}
	prev := out
	out = status
	t.Cleanup(func() { out = prev })
	return dir, status
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, log.InfoLevel).RootCommand()
	want := map[string]bool{"render": false, "serve": false, "tui": false, "basemaps": false, "config": false, "completion": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
	if !root.SilenceUsage {
		t.Error("root command should silence usage on errors")
	}
}

func TestRender(t *testing.T) {
	dir, status := testEnv(t)
	outPath := filepath.Join(dir, "layers.geojson")

	_, err := execute(t, "render",
		"-g", filepath.Join(dir, "landscape.json"),
		"-c", filepath.Join(dir, "geoviewer.toml"),
		"-o", outPath,
		"--show", "disconnected_nodes")
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	data := readFile(t, outPath)
	for _, want := range []string{
		`"layer":"Land_pgons"`,
		`"layer":"Land_graph"`,
		`"layer":"Land_disconnected_nodes"`,
		`"layer":"Forest_disconnected_nodes"`,
		`"tile_layers"`,
	} {
		if !strings.Contains(data, want) {
			t.Errorf("output missing %s", want)
		}
	}
	if strings.Contains(data, `"layer":"Land_components"`) {
		t.Error("components were not requested")
	}
	// Base map plus three layers per group.
	if !strings.Contains(status.String(), "Rendered 7 layers") {
		t.Errorf("status = %q", status.String())
	}
}

func TestRenderHideNamedLayer(t *testing.T) {
	dir, _ := testEnv(t)
	outPath := filepath.Join(dir, "layers.geojson")

	_, err := execute(t, "render",
		"-g", filepath.Join(dir, "landscape.json"),
		"-c", filepath.Join(dir, "geoviewer.toml"),
		"-o", outPath,
		"--hide", "Land/graph,Forest/pgons")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	data := readFile(t, outPath)
	if strings.Contains(data, `"layer":"Land_graph"`) || strings.Contains(data, `"layer":"Forest_pgons"`) {
		t.Error("hidden layers were rendered")
	}
	if !strings.Contains(data, `"layer":"Forest_graph"`) {
		t.Error("Forest_graph should still be rendered")
	}
}

func TestRenderComponentsAndDOT(t *testing.T) {
	dir, _ := testEnv(t)
	dotPath := filepath.Join(dir, "graph.dot")

	_, err := execute(t, "render",
		"-g", filepath.Join(dir, "landscape.json"),
		"-c", filepath.Join(dir, "geoviewer.toml"),
		"-o", filepath.Join(dir, "layers.geojson"),
		"--components", "--show", "components",
		"--dot", dotPath)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(readFile(t, filepath.Join(dir, "layers.geojson")), `"layer":"Land_components"`) {
		t.Error("components layer missing")
	}
	dot := readFile(t, dotPath)
	if !strings.HasPrefix(dot, "graph G {") || !strings.Contains(dot, `"Land_graph/1" -- "Land_graph/2"`) {
		t.Errorf("unexpected DOT:\n%s", dot)
	}
}

func TestRenderComponentsFlag(t *testing.T) {
	dir, _ := testEnv(t)
	graph := filepath.Join(dir, "landscape.json")
	on := filepath.Join(dir, "on.toml")
	if err := os.WriteFile(on, []byte("with_components = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	off := filepath.Join(dir, "off.toml")
	if err := os.WriteFile(off, []byte("with_components = false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"config default", []string{"-c", filepath.Join(dir, "geoviewer.toml")}, true},
		{"config off", []string{"-c", off}, false},
		{"flag overrides config on", []string{"-c", on, "--components=false"}, false},
		{"flag overrides config off", []string{"-c", off, "--components"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outPath := filepath.Join(t.TempDir(), "layers.geojson")
			args := append([]string{"render", "-g", graph, "-o", outPath, "--show", "components"}, tt.args...)
			if _, err := execute(t, args...); err != nil {
				t.Fatalf("render: %v", err)
			}
			got := strings.Contains(readFile(t, outPath), `"layer":"Land_components"`)
			if got != tt.want {
				t.Errorf("components rendered = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	dir, _ := testEnv(t)
	graph := filepath.Join(dir, "landscape.json")
	cfg := filepath.Join(dir, "geoviewer.toml")

	tests := []struct {
		name string
		args []string
	}{
		{"no graph flag", []string{"render", "-c", cfg}},
		{"missing graph file", []string{"render", "-g", filepath.Join(dir, "nope.json"), "-c", cfg}},
		{"missing config", []string{"render", "-g", graph, "-c", filepath.Join(dir, "nope.toml")}},
		{"unknown subtype", []string{"render", "-g", graph, "-c", cfg, "--show", "sparkles"}},
		{"unknown graph", []string{"render", "-g", graph, "-c", cfg, "--show", "Nope/graph"}},
		{"no drawable", []string{"render", "-g", graph, "-c", cfg, "--components=false", "--show", "Land/components"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestBasemaps(t *testing.T) {
	testEnv(t)
	stdout, err := execute(t, "basemaps")
	if err != nil {
		t.Fatalf("basemaps: %v", err)
	}
	for _, want := range []string{"OpenStreetMap", "OpenTopoMap", "4–19"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("basemaps output missing %q:\n%s", want, stdout)
		}
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir, _ := testEnv(t)
	path := filepath.Join(dir, "nested", "config.yaml")

	if _, err := execute(t, "config", "init", "--path", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := execute(t, "config", "init", "--path", path); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, err := execute(t, "config", "init", "--path", path, "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}

	stdout, err := execute(t, "config", "show", "-c", path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(stdout, `layer_update_delay = "200ms"`) {
		t.Errorf("config show output:\n%s", stdout)
	}
}

func TestCompletion(t *testing.T) {
	stdout, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if !strings.Contains(stdout, "geoviewer") {
		t.Error("bash completion should mention the program name")
	}
}
