package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/observability"
)

// Properties added to every exported feature.
const (
	PropLayer     = "layer"
	PropLayerType = "layer_type"
	PropValue     = "value"
)

// TileMembersKey is the FeatureCollection member listing tile layers, which
// have no features of their own.
const TileMembersKey = "tile_layers"

// Flatten merges a layer set into one FeatureCollection. Every feature is
// tagged with its layer name and type; choropleth features also carry their
// display value. Tile layers are listed under [TileMembersKey].
func Flatten(layers []layer.Drawable) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	var tilesDocs []LayerDoc
	for _, ld := range Encode(layers).Layers {
		if ld.Type == layer.TypeTile {
			tilesDocs = append(tilesDocs, ld)
			continue
		}
		if ld.Data == nil {
			continue
		}
		for _, f := range ld.Data.Features {
			c := geojson.NewFeature(f.Geometry)
			c.ID = f.ID
			for k, v := range f.Properties {
				c.Properties[k] = v
			}
			c.Properties[PropLayer] = ld.Name
			c.Properties[PropLayerType] = ld.Type
			if ld.Values != nil {
				if key, ok := f.ID.(string); ok {
					if v, ok := ld.Values[key]; ok {
						c.Properties[PropValue] = v
					}
				}
			}
			out.Append(c)
		}
	}
	if len(tilesDocs) > 0 {
		out.ExtraMembers = geojson.Properties{TileMembersKey: tilesDocs}
	}
	return out
}

// GeoJSONWidget writes the flattened layer set to a file, replacing it on
// every update. An empty path writes to the widget's writer instead.
type GeoJSONWidget struct {
	path string
	w    io.Writer
	mu   sync.Mutex
}

// NewGeoJSONWidget creates a widget writing to path.
func NewGeoJSONWidget(path string) *GeoJSONWidget {
	return &GeoJSONWidget{path: path}
}

// NewGeoJSONWriter creates a widget writing one document per update to w.
func NewGeoJSONWriter(w io.Writer) *GeoJSONWidget {
	return &GeoJSONWidget{w: w}
}

var _ layer.Widget = (*GeoJSONWidget)(nil)

// SetLayers implements layer.Widget.
func (g *GeoJSONWidget) SetLayers(ctx context.Context, layers []layer.Drawable) (err error) {
	start := time.Now()
	defer func() {
		observability.Widget().OnPublish(ctx, "geojson", len(layers), time.Since(start), err)
	}()

	data, err := Flatten(layers).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.path == "" {
		if _, err := g.w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write geojson: %w", err)
		}
		return nil
	}
	return writeFileAtomic(g.path, data)
}

// writeFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
