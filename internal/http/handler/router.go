package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// requestTimeout bounds every /api request except the websocket stream and
// the loop toggle.
var requestTimeout = 2 * time.Minute

// NewRouter mounts the dashboard, control and stream routes under /api and
// the health check at /health.
func NewRouter(dashboard *DashboardHandler, trading *TradingHandler, hub *Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(allowAllOrigins)

	r.Get("/health", HealthCheckHandler)
	r.Head("/health", HealthCheckHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ws/cycles", hub.ServeWS)
		// Stopping the loop waits for an in-flight cycle, however long it takes.
		r.Post("/toggle-trading", trading.ToggleTrading)
		r.Group(func(r chi.Router) {
			// Manual cycles may wait for a scheduled one to finish.
			r.Use(middleware.Timeout(requestTimeout))
			dashboard.RegisterRoutes(r)
			trading.RegisterRoutes(r)
		})
	})
	return r
}

// allowAllOrigins answers CORS preflights and lets any origin call the API.
func allowAllOrigins(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
