// Package handlers provides HTTP handlers for error-rate scaling sweeps.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/scaling"
)

// Sweeper runs scaling sweeps.
type Sweeper interface {
	Sweep(ctx context.Context, req scaling.Request) (*scaling.Report, error)
}

// Handler handles scaling HTTP requests
type Handler struct {
	svc Sweeper
	log zerolog.Logger
}

// NewHandler creates a new scaling handler
func NewHandler(svc Sweeper, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "scaling").Logger(),
	}
}

// HandleSweep handles POST /api/scaling. An empty body runs the default sweep.
func (h *Handler) HandleSweep(w http.ResponseWriter, r *http.Request) {
	var req scaling.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	report, err := h.svc.Sweep(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		default:
			h.log.Error().Err(err).Msg("Failed to run scaling sweep")
			http.Error(w, "Failed to run scaling sweep", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": report,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"tuples":    len(report.Fits),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
