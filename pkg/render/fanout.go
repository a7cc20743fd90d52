package render

import (
	"context"
	"errors"

	"github.com/matzehuels/geoviewer/pkg/layer"
)

type fanout []layer.Widget

// Fanout returns a widget that hands every layer set to each of widgets in
// turn. All widgets are called even if one fails; the errors are joined.
func Fanout(widgets ...layer.Widget) layer.Widget {
	var f fanout
	for _, w := range widgets {
		if w != nil {
			f = append(f, w)
		}
	}
	return f
}

func (f fanout) SetLayers(ctx context.Context, layers []layer.Drawable) error {
	var errs []error
	for _, w := range f {
		if err := w.SetLayers(ctx, layers); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
