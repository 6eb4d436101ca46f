package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all overhead routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/overhead", func(r chi.Router) {
		r.Post("/required-distance", h.HandleRequiredDistance)
	})
}
