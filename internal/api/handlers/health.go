package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports liveness and, when the store can be pinged, readiness.
func (e *Env) Health(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	res := map[string]string{
		"status": "ok",
		"time":   e.now().In(e.location()).Format(time.RFC3339),
	}
	if e.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := e.Ping(ctx); err != nil {
			res["status"] = "degraded"
			res["store"] = err.Error()
			writeJSON(w, r, http.StatusServiceUnavailable, res)
			return
		}
	}

	writeJSON(w, r, http.StatusOK, res)
}
