package api

import (
	"net/http"
)

// ListSchedules возвращает расписания с их состоянием.
// GET /api/v1/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		NotConfigured(w, "schedules are not configured")
		return
	}

	schedules, err := h.schedules.List(r.Context())
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		result[i] = ScheduleFromDomain(&schedules[i])
	}

	List(w, result, len(result))
}

// GetSchedule возвращает одно расписание.
// GET /api/v1/schedules/{name}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		NotConfigured(w, "schedules are not configured")
		return
	}

	s, err := h.schedules.GetByName(r.Context(), r.PathValue("name"))
	if HandleRepoError(w, h.log(r), err, "schedule not found") {
		return
	}
	Success(w, ScheduleFromDomain(s))
}
