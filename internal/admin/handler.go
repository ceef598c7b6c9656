// Package admin serves the HTTP operations surface: health, metrics, the
// current catalog and the live session table.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"media-distribution/internal/catalog"
	"media-distribution/internal/platform/logger"
	"media-distribution/internal/platform/metrics"
	"media-distribution/internal/session"
)

// Handler exposes admin HTTP endpoints using go-chi.
type Handler struct {
	mediaDir string
	sessions *session.Table
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewHandler returns a Handler over the media directory and session table.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(mediaDir string, sessions *session.Table, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{mediaDir: mediaDir, sessions: sessions, log: log, metrics: m}
}

// Router mounts every endpoint with request id, logging and metrics middleware.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(h.log))
	r.Use(metrics.RequestMiddleware(h.metrics))

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			h.metrics.Handler(func() { h.metrics.SetActiveSessions(h.sessions.ActiveCount()) }).ServeHTTP(w, r)
		})
	}
	r.Get("/catalog", h.Catalog)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Get("/{session_id}", h.GetSession)
	})
	return r
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Catalog handles GET /catalog, sorted by name. A missing media directory
// is reported as an empty catalog.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	assets, err := catalog.Assets(h.mediaDir)
	if err != nil {
		h.log.Warn("catalog unavailable", slog.String("dir", h.mediaDir), slog.String("error", err.Error()))
		assets = []catalog.Asset{}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	writeJSON(w, http.StatusOK, assets)
}

// ListSessions handles GET /sessions. ?client= filters by client address.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	var list []session.Session
	if client := r.URL.Query().Get("client"); client != "" {
		list = h.sessions.ByClient(client)
	} else {
		list = h.sessions.List()
	}
	if list == nil {
		list = []session.Session{}
	}
	writeJSON(w, http.StatusOK, list)
}

// GetSession handles GET /sessions/{session_id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := session.ID(chi.URLParam(r, "session_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s, ok := h.sessions.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
