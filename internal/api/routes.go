package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/dispatch-engine/internal/pkg/httputil"
)

var defaultOrigins = []string{"http://localhost:3000", "http://localhost:5173", "http://localhost:8080"}

// SetupRoutes builds the router for every endpoint.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultOrigins
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Get("/health/ready", h.Readiness)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.withSelection)

		r.Post("/send/immediate", h.SendImmediate)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", h.ListQueue)
			r.Post("/add", h.AddToQueue)
			r.Post("/clear-completed", h.ClearCompletedQueue)
			r.Get("/{id}", h.GetQueueItem)
			r.Delete("/{id}", h.CancelQueueItem)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", h.ListHistory)
			r.Post("/bulk-delete", h.BulkDeleteHistory)
			r.Delete("/{id}", h.DeleteHistory)
		})

		r.Get("/settings", h.GetSettings)
		r.Post("/settings", h.UpdateSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Post("/domains/{id}/activate", h.ActivateDomain)
		r.Post("/accounts/{id}/toggle", h.ToggleAccount)
		r.Post("/accounts/{id}/test", h.TestAccount)
		r.Post("/templates/fetch", h.FetchTemplate)

		r.Post("/webhook/provider", h.ProviderWebhook)
		r.Post("/webhook/zeptomail", h.ProviderWebhook)
		r.Get("/tracking", h.ListTracking)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "route not found")
	})
	return r
}
