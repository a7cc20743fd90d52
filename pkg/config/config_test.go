package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geo"
	"github.com/matzehuels/geoviewer/pkg/tiles"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LayerUpdateDelay.Duration != 200*time.Millisecond {
		t.Errorf("expected 200ms delay, got %s", cfg.LayerUpdateDelay)
	}
	if cfg.BaseMap != tiles.DefaultName {
		t.Errorf("expected base map %q, got %q", tiles.DefaultName, cfg.BaseMap)
	}
	if cfg.CRS != geo.WGS84 {
		t.Errorf("expected crs %s, got %s", geo.WGS84, cfg.CRS)
	}
	if !cfg.WithComponents {
		t.Error("components should be computed by default")
	}
	if len(cfg.Metrics) != 5 {
		t.Errorf("expected the 5 standard metrics, got %v", cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg")
	if dir := ConfigDir(); dir != "/tmp/test-xdg/geoviewer" {
		t.Errorf("expected /tmp/test-xdg/geoviewer, got %q", dir)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "geoviewer")
	if dir := ConfigDir(); dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "geoviewer.toml", `
layer_update_delay = "50ms"
log_level = "debug"
with_components = false
base_map = "Local"

[[base_maps]]
name = "Local"
url = "http://localhost:8000/{z}/{x}/{y}.png"
max_zoom = 18

[styles.graph.point_style]
radius = 4.5

[redis]
addr = "localhost:6379"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LayerUpdateDelay.Duration != 50*time.Millisecond {
		t.Errorf("delay = %s", cfg.LayerUpdateDelay)
	}
	if cfg.LogLevel != "debug" || cfg.WithComponents {
		t.Errorf("log_level/with_components not applied: %+v", cfg)
	}
	if len(cfg.BaseMaps) != 1 || cfg.BaseMaps[0].MaxZoom != 18 {
		t.Errorf("base_maps = %+v", cfg.BaseMaps)
	}
	if got := cfg.Styles["graph"].PointStyle.Radius; got != 4.5 {
		t.Errorf("graph radius = %v", got)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr)
	}
	// Untouched fields keep their defaults.
	if cfg.HTTP.Addr != ":8080" || cfg.Output != "layers.geojson" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "geoviewer.yaml", `
layer_update_delay: 1s
metrics: [num_patches]
center: [13.4, 52.5]
zoom: 9
http:
  addr: ":9090"
  timeout: 5s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LayerUpdateDelay.Duration != time.Second {
		t.Errorf("delay = %s", cfg.LayerUpdateDelay)
	}
	if len(cfg.Metrics) != 1 || cfg.Metrics[0] != "num_patches" {
		t.Errorf("metrics = %v", cfg.Metrics)
	}
	if len(cfg.Center) != 2 || cfg.Zoom != 9 {
		t.Errorf("center/zoom = %v/%v", cfg.Center, cfg.Zoom)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.HTTP.Timeout.Duration != 5*time.Second {
		t.Errorf("http = %+v", cfg.HTTP)
	}
}

func TestLoadMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("missing default file should not be an error: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected defaults, got %+v", cfg)
	}

	_, err = Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("explicit missing file: expected INVALID_CONFIG, got %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"syntax", "c.toml", `log_level = `},
		{"bad duration", "c.toml", `layer_update_delay = "soon"`},
		{"negative delay", "c.yaml", "layer_update_delay: -1s\n"},
		{"log level", "c.toml", `log_level = "loud"`},
		{"crs", "c.toml", `crs = "EPSG:27700"`},
		{"center", "c.yaml", "center: [1, 2, 3]\n"},
		{"style", "c.toml", "[styles.sparkles]\ncolormap = \"x\"\n"},
		{"base map url", "c.toml", "[[base_maps]]\nname = \"Bad\"\nurl = \"ftp://x/{z}/{x}/{y}\"\n"},
		{"unknown base map", "c.toml", `base_map = "Nowhere"`},
		{"empty metric", "c.yaml", "metrics: [\"\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(write(t, tt.file, tt.body))
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("expected INVALID_CONFIG, got %v", err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			cfg := Default()
			cfg.LayerUpdateDelay = Duration{75 * time.Millisecond}
			cfg.Redis.Addr = "redis:6379"
			if err := Save(cfg, path); err != nil {
				t.Fatalf("Save: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.LayerUpdateDelay.Duration != 75*time.Millisecond {
				t.Errorf("delay = %s", loaded.LayerUpdateDelay)
			}
			if loaded.Redis.Addr != "redis:6379" {
				t.Errorf("redis addr = %q", loaded.Redis.Addr)
			}
		})
	}
}

func TestCatalogOverrides(t *testing.T) {
	cfg := Default()
	cfg.BaseMaps = []tiles.Spec{{Name: tiles.DefaultName, URL: "https://tiles.example.com/{z}/{x}/{y}.png"}}
	cat, err := cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	s, _ := cat.Lookup(tiles.DefaultName)
	if s.URL != cfg.BaseMaps[0].URL {
		t.Errorf("override not applied: %+v", s)
	}
	if cat.Names()[0] != tiles.DefaultName {
		t.Errorf("override should keep the default's position: %v", cat.Names())
	}
}
