// Package config loads geoviewer settings from TOML or YAML files.
//
// The format is chosen by file extension: ".yaml" and ".yml" are read as
// YAML, everything else as TOML. Fields left out of a file keep their
// [Default] values.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geo"
	"github.com/matzehuels/geoviewer/pkg/geograph"
	"github.com/matzehuels/geoviewer/pkg/render"
	"github.com/matzehuels/geoviewer/pkg/style"
	"github.com/matzehuels/geoviewer/pkg/tiles"
)

// Config holds geoviewer configuration.
type Config struct {
	Metrics          []string                `toml:"metrics" yaml:"metrics"`
	LayerUpdateDelay Duration                `toml:"layer_update_delay" yaml:"layer_update_delay"`
	LogLevel         string                  `toml:"log_level" yaml:"log_level"`
	WithComponents   bool                    `toml:"with_components" yaml:"with_components"`
	CRS              string                  `toml:"crs" yaml:"crs"`
	BaseMap          string                  `toml:"base_map" yaml:"base_map"`
	BaseMaps         []tiles.Spec            `toml:"base_maps" yaml:"base_maps"`
	Styles           map[string]style.Preset `toml:"styles" yaml:"styles"`
	Center           []float64               `toml:"center" yaml:"center"`
	Zoom             float64                 `toml:"zoom" yaml:"zoom"`
	Redis            RedisConfig             `toml:"redis" yaml:"redis"`
	HTTP             HTTPConfig              `toml:"http" yaml:"http"`
	Output           string                  `toml:"output" yaml:"output"`
}

// RedisConfig controls the Redis layer publisher. An empty Addr disables it.
type RedisConfig struct {
	Addr    string `toml:"addr" yaml:"addr"`
	Channel string `toml:"channel" yaml:"channel"`
}

// HTTPConfig controls the HTTP control surface.
type HTTPConfig struct {
	Addr    string   `toml:"addr" yaml:"addr"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// Duration is a time.Duration written as a Go duration string ("200ms").
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Metrics:          append([]string(nil), geograph.StandardMetrics...),
		LayerUpdateDelay: Duration{200 * time.Millisecond},
		LogLevel:         "info",
		WithComponents:   true,
		CRS:              geo.WGS84,
		BaseMap:          tiles.DefaultName,
		Zoom:             7,
		Redis:            RedisConfig{Channel: render.DefaultChannel},
		HTTP:             HTTPConfig{Addr: ":8080", Timeout: Duration{30 * time.Second}},
		Output:           "layers.geojson",
	}
}

// ConfigDir returns the geoviewer config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "geoviewer")
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads the config file at path on top of the defaults and validates
// the result. An empty path means [DefaultPath]; a missing default file is
// not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config")
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", filepath.Base(path))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var buf bytes.Buffer
	if isYAML(path) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
	} else if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate checks the configuration for values the viewer cannot use.
func (c *Config) Validate() error {
	if c.LayerUpdateDelay.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "layer_update_delay must not be negative")
	}
	if !containsFold(logLevels, c.LogLevel) {
		return errors.New(errors.ErrCodeInvalidConfig, "log_level %q must be one of %s", c.LogLevel, strings.Join(logLevels, ", "))
	}
	if c.CRS != "" && !geo.KnownCRS(c.CRS) {
		return errors.New(errors.ErrCodeInvalidConfig, "crs %q has no registered projection", c.CRS)
	}
	for i, m := range c.Metrics {
		if strings.TrimSpace(m) == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "metrics[%d] is empty", i)
		}
	}
	if len(c.Center) != 0 && len(c.Center) != 2 {
		return errors.New(errors.ErrCodeInvalidConfig, "center must be [lon, lat]")
	}
	if c.Zoom < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "zoom must not be negative")
	}
	for name := range c.Styles {
		if _, ok := style.Default()[name]; !ok {
			return errors.New(errors.ErrCodeInvalidConfig, "unknown style preset %q", name)
		}
	}
	if _, err := c.Catalog(); err != nil {
		return err
	}
	return nil
}

// Catalog builds the base map catalogue with the configured overrides.
func (c *Config) Catalog() (*tiles.Catalog, error) {
	cat := tiles.NewCatalog(c.BaseMaps...)
	for _, s := range c.BaseMaps {
		if _, err := cat.Materialize(s); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "base_maps: %s", s.Name)
		}
	}
	if c.BaseMap != "" {
		if _, ok := cat.Lookup(c.BaseMap); !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "base_map %q is not in the catalogue", c.BaseMap)
		}
	}
	return cat, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
