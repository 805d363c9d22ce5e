package handlers

import (
	"field-route-service/internal/adapters/position"
	"net/http"
	"strings"
)

// PositionHandler ingests device fixes into the position feed.
type PositionHandler struct {
	Env *Env
}

// Publish handles POST /positions/{technician}. A message with status
// "unavailable" ends the technician's live tracking.
func (h *PositionHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if h.Env.Positions == nil {
		writeError(w, r, http.StatusServiceUnavailable, "position feed not configured")
		return
	}

	tech := strings.TrimSpace(r.PathValue("technician"))
	if tech == "" {
		writeError(w, r, http.StatusBadRequest, "technician is required")
		return
	}

	var msg position.Message
	if !decodeBody(w, r, &msg) {
		return
	}

	if msg.Status == position.StatusUnavailable {
		if err := h.Env.Positions.Revoke(r.Context(), tech); err != nil {
			writeServiceError(w, r, "revoke position", err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if !msg.Valid() {
		writeError(w, r, http.StatusBadRequest, "lat/lng out of range")
		return
	}

	if err := h.Env.Positions.Publish(r.Context(), tech, msg.Fix()); err != nil {
		writeServiceError(w, r, "publish position", err)
		return
	}
	h.Env.metrics().PositionFixInc("http")

	w.WriteHeader(http.StatusAccepted)
}
