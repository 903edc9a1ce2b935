package handlers

import (
	"context"
	"net/http"
	"time"

	"profile-service/middleware"
)

const readinessTimeout = 2 * time.Second

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) LiveHandler(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, JSONResponse{"status": "ok"})
}

// ReadyHandler reports ready only while the database answers a ping.
func (h *HealthHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if h.db == nil {
		return middleware.NewAppError(http.StatusServiceUnavailable, "Database unavailable", nil)
	}
	if err := h.db.PingContext(ctx); err != nil {
		return middleware.NewAppError(http.StatusServiceUnavailable, "Database unavailable", err)
	}
	return writeJSON(w, http.StatusOK, JSONResponse{"status": "ok"})
}
