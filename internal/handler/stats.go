package handler

import (
	"net/http"

	"github.com/paiban/shiftopt/internal/service"
	"github.com/paiban/shiftopt/pkg/stats"
)

// StatsResponse 统计响应
type StatsResponse struct {
	Success bool          `json:"success"`
	Data    *stats.Report `json:"data,omitempty"`
}

// Stats 计算一组分配的覆盖率与公平性
func (h *ScheduleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var req service.CheckRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	report, err := h.svc.Stats(r.Context(), &req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatsResponse{Success: true, Data: report})
}
