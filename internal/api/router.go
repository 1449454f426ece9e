// Package api exposes an interactive scoring session over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/config"
	"github.com/sells-group/siteselect/internal/session"
	"github.com/sells-group/siteselect/internal/store"
)

// Handler serves one session. st may be nil when persistence is disabled.
type Handler struct {
	sess  *session.Session
	store store.Store
}

// NewRouter builds the HTTP handler for sess.
func NewRouter(sess *session.Session, st store.Store, cfg config.ServerConfig) http.Handler {
	h := &Handler{sess: sess, store: st}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(zap.L()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimit, cfg.RateBurst))

		r.Get("/config", h.GetConfig)
		r.Get("/result", h.GetResult)
		r.Get("/regions", h.GetRegions)
		r.Post("/score", h.Score)

		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
