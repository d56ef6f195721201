package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mmeshcher/order-alert-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware панели заказов.
// metricsHandler обслуживает scrape-запросы Prometheus.
func (h *Handler) SetupRouter(metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Post("/api/login", h.Login)
	r.Post("/api/orders", h.CreateOrder)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/logout", h.Logout)

		r.Get("/orders/pending", h.PendingOrders)
		r.Get("/orders/reviewed", h.ReviewedOrders)
		r.Get("/orders/summary", h.Summary)
		r.Post("/orders/{id}/review", h.ReviewOrder)

		r.Post("/notifications/ack", h.Acknowledge)
		r.Post("/token", h.SaveToken)

		r.Get("/live", h.Live)
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
