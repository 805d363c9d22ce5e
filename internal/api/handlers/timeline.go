package handlers

import (
	"field-route-service/internal/api/dto"
	"field-route-service/internal/domain"
	"field-route-service/internal/services"
	"net/http"
)

type TimelineHandler struct {
	Env *Env
}

// Project computes the day's timeline from inline stops or the job store.
func (h *TimelineHandler) Project(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.TimelineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	stops, tl, _, err := h.Env.project(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "project timeline", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toTimelineResponse(stops, tl))
}

// Adherence projects the timeline and classifies one position fix against it.
func (h *TimelineHandler) Adherence(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.AdherenceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p := req.Position
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 || (p.Lat == 0 && p.Lng == 0) {
		writeError(w, r, http.StatusBadRequest, "position must carry valid lat and lng")
		return
	}

	stops, tl, home, err := h.Env.project(r.Context(), req.TimelineRequest)
	if err != nil {
		writeServiceError(w, r, "classify adherence", err)
		return
	}

	now := h.Env.now()
	if req.Now != nil {
		now = *req.Now
	}

	status, err := services.ClassifyAdherence(r.Context(), services.ClassifyRequest{
		Position: domain.PositionFix{
			Lat:            p.Lat,
			Lng:            p.Lng,
			Timestamp:      p.Timestamp,
			AccuracyMeters: p.Accuracy,
		},
		Timeline:    tl,
		Stops:       stops,
		HomeAddress: home,
		Date:        tl.Date,
		Now:         now,
		LiveWindow:  h.Env.LiveWindow,
	}, h.Env.Provider)
	if err != nil {
		writeServiceError(w, r, "classify adherence", err)
		return
	}
	if status != nil {
		h.Env.metrics().AdherenceInc(string(status.State))
	}

	writeJSON(w, r, http.StatusOK, dto.AdherenceResult{
		Timeline:  toTimelineResponse(stops, tl),
		Adherence: toAdherenceResponse(status),
	})
}
