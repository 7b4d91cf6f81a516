package handler

import (
	"net/http"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
)

// CycleSource exposes the most recent evaluation cycle.
type CycleSource interface {
	LastReport() (domain.CycleReport, bool)
	Cycles() int64
}

// StatusHandler serves the process status for the dashboard.
type StatusHandler struct {
	mode    string
	cycles  CycleSource
	started time.Time
}

// NewStatusHandler creates a StatusHandler for the given run mode.
func NewStatusHandler(mode string, cycles CycleSource) *StatusHandler {
	return &StatusHandler{mode: mode, cycles: cycles, started: time.Now().UTC()}
}

type statusResponse struct {
	Mode         string     `json:"mode"`
	StartedAt    time.Time  `json:"started_at"`
	Cycles       int64      `json:"cycles"`
	LastCycleID  string     `json:"last_cycle_id,omitempty"`
	LastCycleAt  *time.Time `json:"last_cycle_at,omitempty"`
	LastElapsed  string     `json:"last_cycle_elapsed,omitempty"`
	Candidates   int        `json:"candidates"`
	EventsPriced int        `json:"events"`
}

// GetStatus responds with the run mode and cycle progress.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Mode: h.mode, StartedAt: h.started}
	if h.cycles != nil {
		resp.Cycles = h.cycles.Cycles()
		if last, ok := h.cycles.LastReport(); ok {
			at := last.At
			resp.LastCycleID = last.ID
			resp.LastCycleAt = &at
			if last.Elapsed > 0 {
				resp.LastElapsed = last.Elapsed.String()
			}
			resp.Candidates = len(last.Candidates)
			resp.EventsPriced = last.Events
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
