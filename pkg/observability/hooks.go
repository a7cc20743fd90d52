// Package observability provides hooks for metrics and tracing.
//
// Library packages emit events through the registered hooks and never depend
// on a metrics backend. Main registers a backend at startup (see
// pkg/metrics for the Prometheus one); until then every hook is a no-op.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m := metrics.New()
//	    observability.SetViewerHooks(m)
//	    observability.SetSchedulerHooks(m)
//	    observability.SetWidgetHooks(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	err := widget.SetLayers(ctx, layers)
//	observability.Widget().OnPublish(ctx, "geojson", len(layers), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Viewer Hooks
// =============================================================================

// ViewerHooks receives events from viewer operations.
type ViewerHooks interface {
	// OnGraphAdded records one AddGraph call. groups counts the main graph
	// plus its habitats.
	OnGraphAdded(ctx context.Context, name string, groups int, duration time.Duration, err error)

	// OnVisibilityChanged records one leaf toggle.
	OnVisibilityChanged(ctx context.Context, kind, subtype string, active bool)

	// OnReconcile records one reconciliation pass.
	OnReconcile(ctx context.Context, layers int, duration time.Duration, err error)
}

// =============================================================================
// Scheduler Hooks
// =============================================================================

// SchedulerHooks receives events from the layer update scheduler.
type SchedulerHooks interface {
	// OnRequest records an update request. coalesced is true when the
	// request was absorbed by an already armed timer.
	OnRequest(ctx context.Context, coalesced bool)

	// OnFire records a deferred reconciliation.
	OnFire(ctx context.Context, delay time.Duration, err error)
}

// =============================================================================
// Widget Hooks
// =============================================================================

// WidgetHooks receives events from rendering widgets.
type WidgetHooks interface {
	// OnPublish records one layer set handed to a widget.
	OnPublish(ctx context.Context, widget string, layers int, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopViewerHooks is a no-op implementation of ViewerHooks.
type NoopViewerHooks struct{}

func (NoopViewerHooks) OnGraphAdded(context.Context, string, int, time.Duration, error) {}
func (NoopViewerHooks) OnVisibilityChanged(context.Context, string, string, bool)       {}
func (NoopViewerHooks) OnReconcile(context.Context, int, time.Duration, error)          {}

// NoopSchedulerHooks is a no-op implementation of SchedulerHooks.
type NoopSchedulerHooks struct{}

func (NoopSchedulerHooks) OnRequest(context.Context, bool)                {}
func (NoopSchedulerHooks) OnFire(context.Context, time.Duration, error) {}

// NoopWidgetHooks is a no-op implementation of WidgetHooks.
type NoopWidgetHooks struct{}

func (NoopWidgetHooks) OnPublish(context.Context, string, int, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	viewerHooks    ViewerHooks    = NoopViewerHooks{}
	schedulerHooks SchedulerHooks = NoopSchedulerHooks{}
	widgetHooks    WidgetHooks    = NoopWidgetHooks{}
	hooksMu        sync.RWMutex
)

// SetViewerHooks registers custom viewer hooks.
// This should be called once at application startup before any viewer is created.
func SetViewerHooks(h ViewerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		viewerHooks = h
	}
}

// SetSchedulerHooks registers custom scheduler hooks.
func SetSchedulerHooks(h SchedulerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		schedulerHooks = h
	}
}

// SetWidgetHooks registers custom widget hooks.
func SetWidgetHooks(h WidgetHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		widgetHooks = h
	}
}

// Viewer returns the registered viewer hooks.
func Viewer() ViewerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return viewerHooks
}

// Scheduler returns the registered scheduler hooks.
func Scheduler() SchedulerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return schedulerHooks
}

// Widget returns the registered widget hooks.
func Widget() WidgetHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return widgetHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	viewerHooks = NoopViewerHooks{}
	schedulerHooks = NoopSchedulerHooks{}
	widgetHooks = NoopWidgetHooks{}
}
