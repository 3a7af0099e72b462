package handlers

import (
	"net/http"

	"github.com/ledgerline/bankrecon-backend/internal/api/dto"
)

// StatsHandler serves aggregate reconciliation statistics.
type StatsHandler struct {
	*Base
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(base *Base) *StatsHandler {
	return &StatsHandler{Base: base}
}

// Get handles GET /api/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStats(r.Context())
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.StatsResponse{
		OpenTransactions:       stats.OpenTransactions,
		ReconciledTransactions: stats.ReconciledTransactions,
		TotalUnallocated:       stats.TotalUnallocated,
		TotalLinks:             stats.TotalLinks,
		LinksByKind:            make(map[string]int, len(stats.LinksByKind)),
		AllocatedByKind:        make(map[string]float64, len(stats.AllocatedByKind)),
	}
	for kind, count := range stats.LinksByKind {
		response.LinksByKind[string(kind)] = count
	}
	for kind, amount := range stats.AllocatedByKind {
		response.AllocatedByKind[string(kind)] = amount
	}

	h.WriteJSON(w, http.StatusOK, response)
}
