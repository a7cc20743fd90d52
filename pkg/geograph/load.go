package geograph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geo"
)

// File is the on-disk graph format.
//
//	{
//	  "name": "Chernobyl",
//	  "crs": "EPSG:3857",
//	  "max_travel_distance": 100,
//	  "patches": {"type": "FeatureCollection", "features": [...]},
//	  "edges": [[1, 2], [2, 3]],
//	  "habitats": [{"name": "forest", "nodes": [1, 2], "edges": [[1, 2]]}]
//	}
//
// Patch feature IDs are node IDs; feature properties become table attributes.
type File struct {
	Name              string                     `json:"name"`
	CRS               string                     `json:"crs"`
	MaxTravelDistance float64                    `json:"max_travel_distance"`
	Patches           *geojson.FeatureCollection `json:"patches"`
	Edges             [][2]int64                 `json:"edges"`
	Habitats          []HabitatFile              `json:"habitats,omitempty"`
}

// HabitatFile describes one habitat in a [File].
type HabitatFile struct {
	Name              string     `json:"name"`
	Nodes             []int64    `json:"nodes"`
	Edges             [][2]int64 `json:"edges"`
	MaxTravelDistance float64    `json:"max_travel_distance"`
}

// LoadFile reads a graph file from disk.
func LoadFile(path string) (string, *Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a graph file and builds the graph with its habitats.
func Load(r io.Reader) (string, *Memory, error) {
	var gf File
	if err := json.NewDecoder(r).Decode(&gf); err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode graph file")
	}
	g, err := gf.Build()
	if err != nil {
		return "", nil, err
	}
	return gf.Name, g, nil
}

// Build converts the decoded file into a Memory graph.
func (gf *File) Build() (*Memory, error) {
	if gf.Patches == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "graph file has no patches")
	}
	crs := gf.CRS
	if crs == "" {
		crs = geo.WGS84
	}

	tbl := geo.NewTable(crs)
	for i, f := range gf.Patches.Features {
		id, err := featureID(f.ID)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "patch %d", i)
		}
		attrs := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			attrs[k] = v
		}
		tbl.Features = append(tbl.Features, geo.Feature{ID: id, Geometry: f.Geometry, Attrs: attrs})
	}

	g, err := NewMemory(tbl, gf.Edges, gf.MaxTravelDistance)
	if err != nil {
		return nil, err
	}
	for _, h := range gf.Habitats {
		dist := h.MaxTravelDistance
		if dist == 0 {
			dist = gf.MaxTravelDistance
		}
		if _, err := g.AddHabitat(h.Name, h.Nodes, h.Edges, dist); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func featureID(v any) (int64, error) {
	switch id := v.(type) {
	case float64:
		if id != float64(int64(id)) {
			return 0, fmt.Errorf("feature id %v is not an integer", id)
		}
		return int64(id), nil
	case string:
		return strconv.ParseInt(id, 10, 64)
	case nil:
		return 0, fmt.Errorf("feature has no id")
	}
	return 0, fmt.Errorf("unsupported feature id type %T", v)
}
