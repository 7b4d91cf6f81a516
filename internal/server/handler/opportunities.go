package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
)

// ActiveSource exposes the live opportunities of the tracker.
type ActiveSource interface {
	Active(now time.Time) []domain.ActiveOpportunity
}

// ClosedHistory reads stored closed opportunities.
type ClosedHistory interface {
	ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.ClosedOpportunity, error)
}

// OpportunityHandler serves live and closed opportunity windows.
type OpportunityHandler struct {
	active  ActiveSource
	history ClosedHistory
	now     func() time.Time
	logger  *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler. Either source may be
// nil; the matching endpoint then answers 501.
func NewOpportunityHandler(active ActiveSource, history ClosedHistory, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{active: active, history: history, now: time.Now, logger: logger}
}

type activeResponse struct {
	At            time.Time                  `json:"at"`
	Opportunities []domain.ActiveOpportunity `json:"opportunities"`
}

// Active returns the opportunities currently open with their running time.
// GET /api/opportunities/active
func (h *OpportunityHandler) Active(w http.ResponseWriter, r *http.Request) {
	if h.active == nil {
		writeError(w, http.StatusNotImplemented, "no tracker in this mode")
		return
	}
	now := h.now().UTC()
	opps := h.active.Active(now)
	if opps == nil {
		opps = []domain.ActiveOpportunity{}
	}
	writeJSON(w, http.StatusOK, activeResponse{At: now, Opportunities: opps})
}

// Closed returns stored closed records, most recent first.
// GET /api/opportunities/closed?limit=50&offset=0&since=...&until=...
func (h *OpportunityHandler) Closed(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "opportunity history not configured")
		return
	}
	opts := parseListOpts(r)

	closed, err := h.history.ListClosed(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list closed opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list closed opportunities")
		return
	}
	if closed == nil {
		closed = []domain.ClosedOpportunity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": closed,
		"limit":         opts.Limit,
		"offset":        opts.Offset,
	})
}
