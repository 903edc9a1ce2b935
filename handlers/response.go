package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"profile-service/middleware"
	"profile-service/service"
)

type JSONResponse map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

func requireJSON(r *http.Request) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return middleware.NewAppError(http.StatusBadRequest, "Request body must be JSON", err)
	}
	return nil
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := requireJSON(r); err != nil {
		return err
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return middleware.NewAppError(http.StatusBadRequest, "Invalid request payload", err)
	}
	return nil
}

func internalError(err error) error {
	return middleware.NewAppError(http.StatusInternalServerError, "Internal server error", err)
}

// serviceError maps a service failure onto its HTTP form. Validation errors
// are checked first, so a not-found raised during an update stays a 400.
func serviceError(err error, uuid string) error {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return middleware.NewAppError(http.StatusBadRequest, validationErr.Message, err)
	case errors.Is(err, service.ErrProfileNotFound):
		return &middleware.AppError{
			Status:  http.StatusNotFound,
			Title:   "Profile not found",
			Message: fmt.Sprintf("Profile with UUID %s not found", uuid),
			Err:     err,
		}
	default:
		return internalError(err)
	}
}
