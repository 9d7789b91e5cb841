package handler

import (
	"net/http"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/loop"
)

// LoopView is the read side of the control loop.
type LoopView interface {
	State() loop.State
	Cycles() uint64
	Snapshot() (domain.MarketSnapshot, bool)
	LastReport() (domain.Report, bool)
}

// LoopHandler exposes the loop's state and latest snapshot.
type LoopHandler struct {
	loop       LoopView
	instrument string
}

func NewLoopHandler(l LoopView, instrument string) *LoopHandler {
	return &LoopHandler{loop: l, instrument: instrument}
}

// GetState returns the current phase, cycle count, and last report.
// GET /api/state
func (h *LoopHandler) GetState(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"instrument": h.instrument,
		"state":      h.loop.State().String(),
		"cycles":     h.loop.Cycles(),
	}
	if rep, ok := h.loop.LastReport(); ok {
		resp["last_report"] = rep
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSnapshot returns the latest market snapshot, or 404 before the first
// aggregation completes.
// GET /api/snapshot
func (h *LoopHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loop.Snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instrument": h.instrument,
		"venues":     snap.Venues(),
		"quotes":     snap,
	})
}
