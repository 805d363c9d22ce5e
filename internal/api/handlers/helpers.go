package handlers

import (
	"encoding/json"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"io"
	"log"
	"net/http"
)

// badRequest marks request validation failures.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode failed: method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to status codes: bad input is 400,
// routing failures 502, anything else 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var br badRequest
	if errors.As(err, &br) {
		writeError(w, r, http.StatusBadRequest, br.msg)
		return
	}

	log.Printf("req_id=%s %s failed: %v", obs.RequestID(r.Context()), op, err)

	var re *domain.RoutingError
	if errors.As(err, &re) {
		writeError(w, r, http.StatusBadGateway, "routing failed: "+re.Status)
		return
	}
	writeError(w, r, http.StatusInternalServerError, "internal server error")
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// decodeBody reads exactly one JSON object with no unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}
