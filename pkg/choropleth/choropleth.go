// Package choropleth turns one attribute column of a geo table into a
// [layer.Choropleth] drawable.
//
// The table is reprojected to WGS84 on a copy, since the rendering widget
// only draws WGS84, and its rows are keyed by stringified entity ID.
//
// Numeric columns keep their raw values. Any other column is treated as
// categorical: the distinct values are sorted and numbered from 0, and rows
// without a value get code -1.
package choropleth

import (
	"fmt"
	"math"
	"slices"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geo"
	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/style"
)

// MissingCode is the categorical code of a row without a value.
const MissingCode = -1

// Build creates a choropleth named name over column of t.
// t itself is never modified.
func Build(name string, t *geo.Table, column string, preset style.Preset) (*layer.Choropleth, error) {
	if t == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "choropleth %q: no table", name)
	}
	wgs, err := t.ToCRS(geo.WGS84)
	if err != nil {
		return nil, fmt.Errorf("choropleth %q: %w", name, err)
	}

	var values map[string]float64
	if numeric(wgs, column) {
		values = rawValues(wgs, column)
	} else {
		values = categoryCodes(wgs, column)
	}

	c := layer.NewChoropleth(name, wgs.FeatureCollection(), values, preset)
	c.Column = column
	c.Min, c.Max = bounds(values)
	return c, nil
}

// numeric reports whether every present value of column is a number.
// An empty column counts as numeric.
func numeric(t *geo.Table, column string) bool {
	for _, v := range t.Column(column) {
		if v == nil {
			continue
		}
		if _, ok := toFloat(v); !ok {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func rawValues(t *geo.Table, column string) map[string]float64 {
	out := make(map[string]float64, t.Len())
	for _, f := range t.Features {
		if v, ok := toFloat(f.Attrs[column]); ok {
			out[f.Key()] = v
		}
	}
	return out
}

func categoryCodes(t *geo.Table, column string) map[string]float64 {
	var distinct []string
	seen := map[string]bool{}
	for _, v := range t.Column(column) {
		if v == nil {
			continue
		}
		s := fmt.Sprint(v)
		if !seen[s] {
			seen[s] = true
			distinct = append(distinct, s)
		}
	}
	slices.Sort(distinct)

	codes := make(map[string]int, len(distinct))
	for i, s := range distinct {
		codes[s] = i
	}

	out := make(map[string]float64, t.Len())
	for _, f := range t.Features {
		v := f.Attrs[column]
		if v == nil {
			out[f.Key()] = MissingCode
			continue
		}
		out[f.Key()] = float64(codes[fmt.Sprint(v)])
	}
	return out
}

// bounds returns the value range. An empty map yields 0, 0.
func bounds(values map[string]float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
