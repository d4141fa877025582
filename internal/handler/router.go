package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/frontdesk-checkout/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware стойки выезда.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.RequestLogger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/quotes", h.Quote)

		r.Get("/policy", h.GetPolicy)
		r.Put("/policy", h.PutPolicy)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Delete("/items/{reservationID}", h.RemoveCartItem)
			r.Post("/rows/toggle-all", h.ToggleAll)
			r.Post("/rows/{reservationID}/toggle", h.ToggleRow)
			r.Put("/rows/{reservationID}/late-fee", h.SetLateFee)
			r.Put("/rows/{reservationID}/tip", h.SetTip)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/runs", h.ListRuns)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.Idempotency(h.idempotency, custommiddleware.DefaultIdempotencyTTL, h.logger))

				r.Post("/check-out", h.CheckOut)
				r.Post("/capture", h.Capture)
				r.Post("/cash", h.RecordCash)
				r.Post("/refund", h.Refund)
				r.Post("/email", h.EmailReceipts)
				r.Post("/print", h.PrintReceipts)
				r.Post("/complete", h.Complete)
			})
		})
	})

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
