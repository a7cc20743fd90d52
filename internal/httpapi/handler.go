// Package httpapi is the HTTP control surface of a running viewer.
//
// A [Handler] is a viewer control: once bound with [Handler.Bind] it exposes
// the layer tree, visibility toggles, graph styling and viewer state as a
// small JSON API. Toggles go through the viewer's update scheduler, so a
// burst of PUTs produces one widget update.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/geograph"
	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/metrics"
	"github.com/matzehuels/geoviewer/pkg/style"
	"github.com/matzehuels/geoviewer/pkg/viewer"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 15 * time.Second

// Options configures a [Handler].
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Timeout time.Duration
}

// Handler serves the control API for one viewer.
type Handler struct {
	log     *log.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu sync.RWMutex
	v  *viewer.Viewer
}

var _ viewer.Control = (*Handler)(nil)

// NewHandler creates an unbound handler. Until Bind is called every API
// route answers 503.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{log: logger, metrics: opts.Metrics, timeout: timeout}
}

// Bind implements viewer.Control.
func (h *Handler) Bind(v *viewer.Viewer) error {
	if v == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cannot bind a nil viewer")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.v != nil && h.v != v {
		return errors.New(errors.ErrCodePrecondition, "control API is already bound to a viewer")
	}
	h.v = v
	return nil
}

func (h *Handler) viewer() *viewer.Viewer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.v
}

// Router returns the chi router for the API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))
	r.Use(h.accessLog)

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Use(h.requireViewer)

			r.Route("/layers", func(r chi.Router) {
				r.Get("/", h.handleListLayers)
				r.Post("/hide", h.handleHideAll)
				r.Post("/update", h.handleUpdate)
				r.Put("/{kind}/{name}/{subtype}", h.handleSetVisibility)
				r.Delete("/{kind}/{name}", h.handleRemoveLayer)
			})
			r.Put("/style/graph", h.handleSetGraphStyle)
			r.Get("/graphs/{name}", h.handleGetGraph)
			r.Route("/state", func(r chi.Router) {
				r.Get("/", h.handleState)
				r.Put("/map", h.handleSelect(func(v *viewer.Viewer, name string) error { return v.SetCurrentMap(name) }))
				r.Put("/graph", h.handleSelect(func(v *viewer.Viewer, name string) error { return v.SetCurrentGraph(name) }))
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		h.metrics.ObserveHTTPRequest(r.Method, path, status, elapsed)
		h.log.Debug("http_request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
		)
	})
}

func (h *Handler) requireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.viewer() == nil {
			writeError(w, http.StatusServiceUnavailable, "VIEWER_UNAVAILABLE", "no viewer is bound to the control API")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	})
}

// writeErr maps a viewer error onto an HTTP status.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeNameConflict, errors.ErrCodeDuplicateName, errors.ErrCodePrecondition:
		status = http.StatusConflict
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidCRS:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.log.Error("control request failed", "err", err)
		if code == "" {
			code = errors.ErrCodeInternal
		}
	}
	writeError(w, status, string(code), errors.UserMessage(err))
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return stderrors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bound": h.viewer() != nil})
}

func (h *Handler) handleListLayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.viewer().Layers())
}

type visibilityRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(errors.ErrCodeInvalidInput), "invalid JSON body: "+err.Error())
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, string(errors.ErrCodeInvalidInput), `body must set "active"`)
		return
	}

	v := h.viewer()
	kind := layer.Kind(urlParam(r, "kind"))
	name := urlParam(r, "name")
	subtype := layer.Subtype(urlParam(r, "subtype"))
	if err := v.SetLayerVisibility(r.Context(), kind, name, subtype, *req.Active); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, layer.LayerState{
		Kind:      kind,
		Name:      name,
		Subtype:   subtype,
		Active:    *req.Active,
		Available: true,
	})
}

func (h *Handler) handleRemoveLayer(w http.ResponseWriter, r *http.Request) {
	kind := layer.Kind(urlParam(r, "kind"))
	if err := h.viewer().RemoveLayer(r.Context(), kind, urlParam(r, "name")); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHideAll(w http.ResponseWriter, r *http.Request) {
	if err := h.viewer().HideAllLayers(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := h.viewer().RequestLayerUpdate(r.Context()); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type graphStyleRequest struct {
	Radius float64 `json:"radius"`
	Color  string  `json:"color,omitempty"`
}

func (h *Handler) handleSetGraphStyle(w http.ResponseWriter, r *http.Request) {
	var req graphStyleRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(errors.ErrCodeInvalidInput), "invalid JSON body: "+err.Error())
		return
	}
	if err := h.viewer().SetGraphStyle(r.Context(), req.Radius, req.Color); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.viewer().Styles().Get(style.Graph))
}

type graphResponse struct {
	Name      string             `json:"name"`
	IsHabitat bool               `json:"is_habitat"`
	Parent    string             `json:"parent,omitempty"`
	Metrics   []geograph.Metric  `json:"metrics"`
	Layers    []layer.LayerState `json:"layers"`
}

func (h *Handler) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	info, ok := h.viewer().Graph(name)
	if !ok {
		writeError(w, http.StatusNotFound, string(errors.ErrCodeNotFound), "graph "+name+" not found")
		return
	}

	resp := graphResponse{
		Name:      info.Name,
		IsHabitat: info.IsHabitat,
		Parent:    info.Parent,
		Metrics:   info.Metrics,
		Layers:    make([]layer.LayerState, 0, len(layer.GraphSubtypes)),
	}
	if resp.Metrics == nil {
		resp.Metrics = []geograph.Metric{}
	}
	for _, st := range layer.GraphSubtypes {
		l, ok := info.Leaves[st]
		if !ok {
			continue
		}
		ls := layer.LayerState{
			Kind:      layer.KindGraphs,
			Name:      info.Name,
			Subtype:   st,
			Active:    l.Visible(),
			Available: l.Drawable != nil,
			IsHabitat: info.IsHabitat,
			Parent:    info.Parent,
		}
		if l.Drawable != nil {
			ls.LayerName = l.Drawable.Name()
		}
		resp.Layers = append(resp.Layers, ls)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.viewer().State())
}

type selectRequest struct {
	Name string `json:"name"`
}

// handleSelect decodes {"name": ...}, applies set and returns the state.
func (h *Handler) handleSelect(set func(v *viewer.Viewer, name string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectRequest
		if err := decodeJSONStrict(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, string(errors.ErrCodeInvalidInput), "invalid JSON body: "+err.Error())
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, string(errors.ErrCodeInvalidInput), `body must set "name"`)
			return
		}
		v := h.viewer()
		if err := set(v, req.Name); err != nil {
			h.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v.State())
	}
}
