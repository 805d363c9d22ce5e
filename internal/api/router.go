package api

import (
	"field-route-service/internal/api/handlers"
	"net/http"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(env *handlers.Env, live *handlers.LiveHandler) http.Handler {
	mux := http.NewServeMux()

	jobHandler := &handlers.JobHandler{Env: env}
	timelineHandler := &handlers.TimelineHandler{Env: env}
	positionHandler := &handlers.PositionHandler{Env: env}

	mux.HandleFunc("/health", env.Health)
	mux.HandleFunc("/jobs", jobHandler.List)
	mux.HandleFunc("/stops", jobHandler.Stops)
	mux.HandleFunc("/timeline", timelineHandler.Project)
	mux.HandleFunc("/adherence", timelineHandler.Adherence)
	mux.HandleFunc("/positions/{technician}", positionHandler.Publish)
	if live != nil {
		mux.HandleFunc("/live", live.ServeWS)
	}

	return requestIDMiddleware(loggingMiddleware(mux))
}
