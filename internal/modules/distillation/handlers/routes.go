package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all factory routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/factories", func(r chi.Router) {
		r.Post("/estimate", h.HandleEstimate)
		r.Get("/protocols", h.HandleGetProtocols)
	})
}
