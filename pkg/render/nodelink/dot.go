package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"
	"github.com/paulmach/orb"

	"github.com/matzehuels/geoviewer/pkg/layer"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Scale multiplies map coordinates into diagram points. Zero means 100.
	Scale float64
	// Labels shows node IDs inside the nodes.
	Labels bool
}

// ToDOT converts the geometry layers of layers to Graphviz DOT.
func ToDOT(layers []layer.Drawable, opts Options) string {
	scale := opts.Scale
	if scale == 0 {
		scale = 100
	}

	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fixedsize=true, width=0.15, fontsize=8];\n")
	buf.WriteString("  edge [penwidth=0.8];\n")

	cluster := 0
	for _, d := range layers {
		gd, ok := d.(*layer.GeoData)
		if !ok || gd.Table.Len() == 0 {
			continue
		}
		fmt.Fprintf(&buf, "\n  subgraph cluster_%d {\n", cluster)
		fmt.Fprintf(&buf, "    label=%q;\n", gd.Name())
		cluster++

		fill := gd.Preset.Style.FillColor
		if fill == "" {
			fill = "black"
		}
		stroke := gd.Preset.Style.Color
		if stroke == "" {
			stroke = "black"
		}

		for _, f := range gd.Table.Features {
			p, ok := f.Geometry.(orb.Point)
			if !ok {
				continue
			}
			label := ""
			if opts.Labels {
				label = strconv.FormatInt(f.ID, 10)
			}
			fmt.Fprintf(&buf, "    %q [label=%q, pos=\"%.2f,%.2f!\", fillcolor=%q];\n",
				nodeID(gd, f.ID), label, p.X()*scale, p.Y()*scale, fill)
		}
		for _, f := range gd.Table.Features {
			if _, ok := f.Geometry.(orb.LineString); !ok {
				continue
			}
			from, okF := f.Attrs["from"].(int64)
			to, okT := f.Attrs["to"].(int64)
			if !okF || !okT {
				continue
			}
			fmt.Fprintf(&buf, "    %q -- %q [color=%q];\n", nodeID(gd, from), nodeID(gd, to), stroke)
		}
		buf.WriteString("  }\n")
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeID(d layer.Drawable, id int64) string {
	return d.Name() + "/" + strconv.FormatInt(id, 10)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return stripSize(buf.Bytes()), nil
}

var sizeAttrRe = regexp.MustCompile(`(<svg[^>]*?)\s+width="[^"]*"\s+height="[^"]*"`)

// stripSize drops the fixed width and height so the SVG scales to its
// container through its viewBox.
func stripSize(svg []byte) []byte {
	return sizeAttrRe.ReplaceAll(svg, []byte("$1"))
}
