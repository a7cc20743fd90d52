// Package metrics is the Prometheus backend for the observability hooks.
//
// A [Metrics] value implements observability.ViewerHooks, SchedulerHooks and
// WidgetHooks, plus an HTTP request observer for the control surface. All
// methods are safe on a nil receiver.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/geoviewer/pkg/observability"
)

const namespace = "geoviewer"

// Metrics exposes viewer metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	graphsAdded         *prometheus.CounterVec
	graphAddDuration    prometheus.Histogram
	toggles             *prometheus.CounterVec
	reconciles          *prometheus.CounterVec
	reconcileDuration   prometheus.Histogram
	renderedLayers      prometheus.Gauge
	updateRequests      *prometheus.CounterVec
	deferredUpdates     *prometheus.CounterVec
	publishes           *prometheus.CounterVec
	publishDuration     *prometheus.HistogramVec
}

var (
	_ observability.ViewerHooks    = (*Metrics)(nil)
	_ observability.SchedulerHooks = (*Metrics)(nil)
	_ observability.WidgetHooks    = (*Metrics)(nil)
)

// New creates a fresh Metrics registry with every viewer metric registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of control API requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of control API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		graphsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphs_added_total",
			Help:      "AddGraph calls by result",
		}, []string{"result"}),
		graphAddDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_add_duration_seconds",
			Help:      "Time spent ingesting a graph and its habitats",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_toggles_total",
			Help:      "Layer visibility changes",
		}, []string{"kind", "subtype", "active"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Layer reconciliations by result",
		}, []string{"result"}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciliation_duration_seconds",
			Help:      "Time spent pushing a layer set to the widget",
			Buckets:   prometheus.DefBuckets,
		}),
		renderedLayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rendered_layers",
			Help:      "Number of layers in the last reconciliation",
		}),
		updateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layer_update_requests_total",
			Help:      "Layer update requests, split by whether they were coalesced",
		}, []string{"coalesced"}),
		deferredUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deferred_updates_total",
			Help:      "Debounced layer updates fired by the scheduler",
		}, []string{"result"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_publishes_total",
			Help:      "Layer sets handed to rendering widgets",
		}, []string{"widget", "result"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "widget_publish_duration_seconds",
			Help:      "Time a widget took to accept a layer set",
			Buckets:   prometheus.DefBuckets,
		}, []string{"widget"}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.graphsAdded,
		m.graphAddDuration,
		m.toggles,
		m.reconciles,
		m.reconcileDuration,
		m.renderedLayers,
		m.updateRequests,
		m.deferredUpdates,
		m.publishes,
		m.publishDuration,
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// OnGraphAdded implements observability.ViewerHooks.
func (m *Metrics) OnGraphAdded(_ context.Context, _ string, _ int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.graphsAdded.WithLabelValues(result(err)).Inc()
	m.graphAddDuration.Observe(duration.Seconds())
}

// OnVisibilityChanged implements observability.ViewerHooks.
func (m *Metrics) OnVisibilityChanged(_ context.Context, kind, subtype string, active bool) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(kind, subtype, strconv.FormatBool(active)).Inc()
}

// OnReconcile implements observability.ViewerHooks.
func (m *Metrics) OnReconcile(_ context.Context, layers int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.reconciles.WithLabelValues(result(err)).Inc()
	m.reconcileDuration.Observe(duration.Seconds())
	if err == nil {
		m.renderedLayers.Set(float64(layers))
	}
}

// OnRequest implements observability.SchedulerHooks.
func (m *Metrics) OnRequest(_ context.Context, coalesced bool) {
	if m == nil {
		return
	}
	m.updateRequests.WithLabelValues(strconv.FormatBool(coalesced)).Inc()
}

// OnFire implements observability.SchedulerHooks.
func (m *Metrics) OnFire(_ context.Context, _ time.Duration, err error) {
	if m == nil {
		return
	}
	m.deferredUpdates.WithLabelValues(result(err)).Inc()
}

// OnPublish implements observability.WidgetHooks.
func (m *Metrics) OnPublish(_ context.Context, widget string, _ int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.publishes.WithLabelValues(widget, result(err)).Inc()
	m.publishDuration.WithLabelValues(widget).Observe(duration.Seconds())
}

// Register installs m as the viewer, scheduler and widget hooks.
func (m *Metrics) Register() {
	if m == nil {
		return
	}
	observability.SetViewerHooks(m)
	observability.SetSchedulerHooks(m)
	observability.SetWidgetHooks(m)
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
