// Package handlers provides HTTP handlers for computation overhead estimates.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/distillation"
	"github.com/aristath/magicfactory/internal/modules/overhead"
	"github.com/aristath/magicfactory/pkg/formulas"
)

// Estimator produces factory estimates.
type Estimator interface {
	Estimate(ctx context.Context, proto distillation.Protocol, p distillation.Params) (*distillation.Result, error)
}

// Handler handles overhead HTTP requests
type Handler struct {
	estimator Estimator
	log       zerolog.Logger
}

// NewHandler creates a new overhead handler
func NewHandler(estimator Estimator, log zerolog.Logger) *Handler {
	return &Handler{
		estimator: estimator,
		log:       log.With().Str("handler", "overhead").Logger(),
	}
}

// RequiredDistanceRequest either names a protocol to simulate or supplies a
// factory summary directly.
type RequiredDistanceRequest struct {
	Protocol     string                    `json:"protocol,omitempty"`
	Params       distillation.Params       `json:"params"`
	Factory      *domain.MagicStateFactory `json:"factory,omitempty"`
	Computations []string                  `json:"computations,omitempty"`
}

// HandleRequiredDistance handles POST /api/overhead/required-distance
func (h *Handler) HandleRequiredDistance(w http.ResponseWriter, r *http.Request) {
	var req RequiredDistanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sizes := make([]overhead.ComputationSize, 0, len(req.Computations))
	for _, name := range req.Computations {
		size, err := overhead.ParseSize(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sizes = append(sizes, size)
	}

	var factory domain.MagicStateFactory
	switch {
	case req.Factory != nil:
		factory = *req.Factory
	case req.Protocol != "":
		proto, err := distillation.ParseProtocol(req.Protocol)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := h.estimator.Estimate(r.Context(), proto, req.Params)
		if err != nil {
			h.writeError(w, err)
			return
		}
		factory = res.Factory
	default:
		http.Error(w, "protocol or factory is required", http.StatusBadRequest)
		return
	}

	analyses, err := overhead.Analyze(factory, req.Params.PPhys, sizes...)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"factory":      factory,
			"computations": analyses,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, formulas.ErrNoBracket):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnstableResult), errors.Is(err, formulas.ErrNoConvergence):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Msg("Failed to compute overhead")
		http.Error(w, "Failed to compute overhead", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
