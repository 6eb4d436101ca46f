// Package handlers provides HTTP handlers for factory estimates.
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
)

// Estimator produces factory estimates.
type Estimator interface {
	Estimate(ctx context.Context, proto distillation.Protocol, p distillation.Params) (*distillation.Result, error)
	Precision() uint
}

// Handler handles factory HTTP requests
type Handler struct {
	estimator Estimator
	log       zerolog.Logger
}

// NewHandler creates a new factory handler
func NewHandler(estimator Estimator, log zerolog.Logger) *Handler {
	return &Handler{
		estimator: estimator,
		log:       log.With().Str("handler", "factories").Logger(),
	}
}

// EstimateRequest represents a request to estimate one factory
type EstimateRequest struct {
	Protocol string              `json:"protocol"`
	Params   distillation.Params `json:"params"`
}

// ProtocolInfo describes a registered protocol
type ProtocolInfo struct {
	Name   distillation.Protocol `json:"name"`
	Levels int                   `json:"levels"`
}

// HandleEstimate handles POST /api/factories/estimate
func (h *Handler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

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

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"factory":     res.Factory,
			"description": res.Factory.String(),
			"qubitcycles": res.Factory.QubitCycles(),
			"outcome":     res.Outcome,
			"level1":      res.Level1,
			"params":      res.Params,
		},
		"metadata": map[string]interface{}{
			"timestamp":      time.Now().Format(time.RFC3339),
			"precision_bits": res.Precision,
		},
	})
}

// HandleGetProtocols handles GET /api/factories/protocols
func (h *Handler) HandleGetProtocols(w http.ResponseWriter, r *http.Request) {
	protocols := distillation.Protocols()
	infos := make([]ProtocolInfo, 0, len(protocols))
	for _, p := range protocols {
		infos = append(infos, ProtocolInfo{Name: p, Levels: p.Levels()})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"protocols":      infos,
			"precision_bits": h.estimator.Precision(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnstableResult):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		h.log.Error().Err(err).Msg("Failed to estimate factory")
		http.Error(w, "Failed to estimate factory", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
