package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
)

// CandidateHistory reads stored candidates.
type CandidateHistory interface {
	ListRecentCandidates(ctx context.Context, limit int) ([]domain.ArbitrageCandidate, error)
}

// CandidateHandler serves the candidates of the last cycle, their capital
// tiers and the stored candidate history.
type CandidateHandler struct {
	cycles  CycleSource
	history CandidateHistory
	logger  *slog.Logger
}

// NewCandidateHandler creates a CandidateHandler. history may be nil, in
// which case the recent endpoint answers 501.
func NewCandidateHandler(cycles CycleSource, history CandidateHistory, logger *slog.Logger) *CandidateHandler {
	return &CandidateHandler{cycles: cycles, history: history, logger: logger}
}

type latestResponse struct {
	CycleID    string                      `json:"cycle_id"`
	At         time.Time                   `json:"at"`
	Candidates []domain.ArbitrageCandidate `json:"candidates"`
}

// Latest returns the candidates of the most recent cycle, best first.
// GET /api/candidates
func (h *CandidateHandler) Latest(w http.ResponseWriter, r *http.Request) {
	last, ok := h.lastReport(w)
	if !ok {
		return
	}
	cs := last.Candidates
	if cs == nil {
		cs = []domain.ArbitrageCandidate{}
	}
	writeJSON(w, http.StatusOK, latestResponse{CycleID: last.ID, At: last.At, Candidates: cs})
}

type sizingResponse struct {
	CycleID string                `json:"cycle_id"`
	At      time.Time             `json:"at"`
	Sizing  []domain.SizingReport `json:"sizing"`
}

// Sizing returns the capital tier estimates of the most recent cycle.
// GET /api/sizing
func (h *CandidateHandler) Sizing(w http.ResponseWriter, r *http.Request) {
	last, ok := h.lastReport(w)
	if !ok {
		return
	}
	sz := last.Sizing
	if sz == nil {
		sz = []domain.SizingReport{}
	}
	writeJSON(w, http.StatusOK, sizingResponse{CycleID: last.ID, At: last.At, Sizing: sz})
}

// Recent returns stored candidates, newest first.
// GET /api/candidates/recent?limit=100
func (h *CandidateHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "candidate history not configured")
		return
	}
	limit := queryInt(r, "limit", 100, 500)
	if limit == 0 {
		limit = 100
	}

	cs, err := h.history.ListRecentCandidates(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list recent candidates failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list candidates")
		return
	}
	if cs == nil {
		cs = []domain.ArbitrageCandidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": cs})
}

func (h *CandidateHandler) lastReport(w http.ResponseWriter) (domain.CycleReport, bool) {
	if h.cycles == nil {
		writeError(w, http.StatusServiceUnavailable, "no cycle source")
		return domain.CycleReport{}, false
	}
	last, ok := h.cycles.LastReport()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no cycle completed yet")
		return domain.CycleReport{}, false
	}
	return last, true
}
