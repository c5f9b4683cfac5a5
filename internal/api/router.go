package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(handler.requireAuth)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", handler.CreateOrder)
			r.Get("/{id}", handler.GetOrder)
			r.Post("/{id}/amend", handler.AmendOrder)
			r.Post("/{id}/finalize", handler.FinalizeOrder)
		})

		r.Route("/vault", func(r chi.Router) {
			r.Post("/setup-tokens", handler.CreateSetupToken)
			r.Post("/setup-tokens/{id}/tokenize", handler.Tokenize)
			r.Post("/payment-tokens/{id}/charge", handler.Charge)
		})
	})

	return r
}
