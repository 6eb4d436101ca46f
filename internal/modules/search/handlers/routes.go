package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all search routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/searches", func(r chi.Router) {
		r.Post("/", h.HandleStart)
		r.Get("/", h.HandleListRuns)
		r.Get("/presets", h.HandleGetPresets)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetRun)
			r.Delete("/", h.HandleCancel)
			r.Get("/rows", h.HandleGetRows)
			r.Get("/csv", h.HandleGetCSV)
			r.Get("/frontier", h.HandleGetFrontier)
		})
	})
}
