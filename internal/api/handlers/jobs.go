package handlers

import (
	"field-route-service/internal/api/dto"
	"field-route-service/internal/domain"
	"net/http"
)

// JobHandler exposes read-only job and stop endpoints.
type JobHandler struct {
	Env *Env
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if h.Env.Repo == nil {
		writeError(w, r, http.StatusServiceUnavailable, "job store not configured")
		return
	}

	date, err := h.Env.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, "list jobs", err)
		return
	}
	day := date.Format(domain.DateLayout)

	jobs, err := h.Env.Repo.ListJobs(r.Context(), day)
	if err != nil {
		writeServiceError(w, r, "list jobs", err)
		return
	}

	res := dto.ListJobsResponse{Date: day, Jobs: make([]dto.JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		res.Jobs = append(res.Jobs, dto.JobResponse{
			JobID:           j.JobID,
			CustomerID:      j.CustomerID,
			Date:            j.Date,
			Status:          string(j.Status),
			SiteAddress:     j.SiteAddress,
			BillingAddress:  j.BillingAddress,
			ScheduledTime:   j.ScheduledTime,
			DurationMinutes: j.DurationMinutes,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}

// Stops returns the ordered stops the day's plan would visit.
func (h *JobHandler) Stops(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if h.Env.Repo == nil {
		writeError(w, r, http.StatusServiceUnavailable, "job store not configured")
		return
	}

	date, err := h.Env.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, "list stops", err)
		return
	}

	stops, err := h.Env.LoadStops(r.Context(), date)
	if err != nil {
		writeServiceError(w, r, "list stops", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ListStopsResponse{
		Date:  date.Format(domain.DateLayout),
		Stops: toStopResponses(stops),
	})
}
