// Package handlers provides HTTP handlers for factory searches.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/magicfactory/internal/domain"
	"github.com/aristath/magicfactory/internal/modules/frontier"
	"github.com/aristath/magicfactory/internal/modules/results"
	"github.com/aristath/magicfactory/internal/modules/search"
)

// Runner starts and cancels background searches.
type Runner interface {
	Start(ctx context.Context, req search.Request) (string, error)
	Cancel(runID string) bool
	Active() []string
}

// RunReader reads stored runs and rows.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*results.Run, error)
	ListRuns(ctx context.Context, limit int) ([]results.Run, error)
	ListRows(ctx context.Context, runID string) ([]results.Row, error)
}

// Handler handles search HTTP requests
type Handler struct {
	runner Runner
	reader RunReader
	log    zerolog.Logger
}

// NewHandler creates a new search handler
func NewHandler(runner Runner, reader RunReader, log zerolog.Logger) *Handler {
	return &Handler{
		runner: runner,
		reader: reader,
		log:    log.With().Str("handler", "searches").Logger(),
	}
}

func metadata() map[string]interface{} {
	return map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

// HandleStart handles POST /api/searches
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := h.runner.Start(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "Failed to start search")
		return
	}

	w.Header().Set("Location", "/api/searches/"+id)
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data":     map[string]interface{}{"run_id": id},
		"metadata": metadata(),
	})
}

// HandleListRuns handles GET /api/searches
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.reader.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, err, "Failed to list searches")
		return
	}
	if runs == nil {
		runs = []results.Run{}
	}

	meta := metadata()
	meta["active"] = h.runner.Active()
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     runs,
		"metadata": meta,
	})
}

// HandleGetPresets handles GET /api/searches/presets
func (h *Handler) HandleGetPresets(w http.ResponseWriter, r *http.Request) {
	presets := search.Presets()
	type presetInfo struct {
		search.Preset
		Points int `json:"points"`
	}
	infos := make([]presetInfo, 0, len(presets))
	for _, p := range presets {
		infos = append(infos, presetInfo{Preset: p, Points: p.Space.Size()})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     infos,
		"metadata": metadata(),
	})
}

// HandleGetRun handles GET /api/searches/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.reader.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "Failed to get search")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     run,
		"metadata": metadata(),
	})
}

// HandleGetRows handles GET /api/searches/{id}/rows
func (h *Handler) HandleGetRows(w http.ResponseWriter, r *http.Request) {
	_, rows, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	if rows == nil {
		rows = []results.Row{}
	}

	meta := metadata()
	meta["count"] = len(rows)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     rows,
		"metadata": meta,
	})
}

// HandleGetCSV handles GET /api/searches/{id}/csv
func (h *Handler) HandleGetCSV(w http.ResponseWriter, r *http.Request) {
	run, rows, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	stamp := run.StartedAt
	if run.FinishedAt != nil {
		stamp = *run.FinishedAt
	}
	name := results.FileName(results.FileStem(run.Protocol), stamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := results.WriteCSV(w, run.Protocol, rows); err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to write CSV response")
	}
}

// HandleGetFrontier handles GET /api/searches/{id}/frontier. The optional
// max_qubits query parameter bounds the reported best factory.
func (h *Handler) HandleGetFrontier(w http.ResponseWriter, r *http.Request) {
	maxQubits := 0
	if raw := r.URL.Query().Get("max_qubits"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "max_qubits must be a non-negative integer", http.StatusBadRequest)
			return
		}
		maxQubits = n
	}

	_, rows, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	factories := results.Factories(rows)

	data := map[string]interface{}{
		"pareto":     frontier.Pareto(factories),
		"lower_hull": frontier.LowerHull(factories),
	}
	if best, found := frontier.Best(factories, maxQubits); found {
		data["best"] = best
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":     data,
		"metadata": metadata(),
	})
}

// HandleCancel handles DELETE /api/searches/{id}
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.runner.Cancel(id) {
		http.Error(w, "search is not running", http.StatusNotFound)
		return
	}
	h.log.Info().Str("run_id", id).Msg("Search cancelled")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*results.Run, []results.Row, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.reader.GetRun(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get search")
		return nil, nil, false
	}
	rows, err := h.reader.ListRows(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get search rows")
		return nil, nil, false
	}
	return run, rows, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
