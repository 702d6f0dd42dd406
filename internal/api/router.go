package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"github.com/nerrad567/probekit/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Event stream accepts ?token= since browsers cannot set headers on upgrade.
		r.With(s.authMiddleware(true), s.requirePermission(auth.PermTesterRead)).
			Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(false))
			// Message listings get large; /events is outside this group
			// because the upgrade needs the raw writer.
			r.Use(gzipMiddleware)

			r.With(s.requirePermission(auth.PermTesterRead)).Get("/metrics", s.handleMetrics)
			r.With(s.requirePermission(auth.PermArchiveRead)).Get("/archive", s.handleArchive)

			r.Route("/websocket", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermTesterRead))
					r.Get("/info", s.handleWSInfo)
					r.Get("/stats", s.handleWSStats)
					r.Get("/messages", s.handleWSMessages)
					r.Get("/config", s.handleWSConfig)
				})
				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermTesterOperate), s.rateLimitMiddleware)
					r.Post("/connect", s.handleWSConnect)
					r.Post("/disconnect", s.handleWSDisconnect)
					r.Post("/send", s.handleWSSend)
					r.Post("/ping", s.handleWSPing)
					r.Delete("/messages", s.handleWSClearMessages)
					r.Patch("/config", s.handleWSUpdateConfig)
				})
			})

			r.Route("/mqtt", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermTesterRead))
					r.Get("/info", s.handleMQTTInfo)
					r.Get("/stats", s.handleMQTTStats)
					r.Get("/messages", s.handleMQTTMessages)
					r.Get("/subscriptions", s.handleMQTTSubscriptions)
					r.Get("/config", s.handleMQTTConfig)
				})
				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermTesterOperate), s.rateLimitMiddleware)
					r.Post("/connect", s.handleMQTTConnect)
					r.Post("/disconnect", s.handleMQTTDisconnect)
					r.Post("/publish", s.handleMQTTPublish)
					r.Post("/subscribe", s.handleMQTTSubscribe)
					r.Post("/unsubscribe", s.handleMQTTUnsubscribe)
					r.Delete("/subscriptions", s.handleMQTTClearSubscriptions)
					r.Delete("/messages", s.handleMQTTClearMessages)
					r.Patch("/config", s.handleMQTTUpdateConfig)
				})
			})
		})
	})

	return r
}

// gzipMiddleware compresses responses the client accepts gzip for. Small
// bodies pass through unchanged.
func gzipMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
