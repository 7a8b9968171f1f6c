package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Command dispatch
			r.Route("/commands", func(r chi.Router) {
				r.Post("/slots", s.handleSlotCommand)
				r.Post("/products", s.handleProductCommand)
				r.Post("/machines/{machineID}/reboot", s.handleRebootCommand)
			})

			// Diagnostic connection test
			r.Route("/diagnostics", func(r chi.Router) {
				r.Post("/test", s.handleDiagnosticTest)
				r.Post("/ping", s.handleDiagnosticPing)
				r.Post("/disconnect", s.handleDiagnosticDisconnect)
				r.Get("/status", s.handleDiagnosticStatus)
				r.Delete("/log", s.handleDiagnosticClearLog)
			})

			// Event stream status
			r.Get("/stream/status", s.handleStreamStatus)

			// Payment history
			r.Get("/payments", s.handleListPayments)

			// Live payment feed
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleStreamStatus reports the event stream connection state.
func (s *Server) handleStreamStatus(w http.ResponseWriter, _ *http.Request) {
	if s.stream == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "disabled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": s.stream.Status()})
}
