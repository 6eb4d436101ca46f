package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the scaling routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/scaling", h.HandleSweep)
}
