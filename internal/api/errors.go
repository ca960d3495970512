package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"query-scheduler/internal/domain"
)

// Error is the JSON body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// httpStatusFromDomainError maps domain errors to HTTP status codes.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var accessDenied *domain.AccessDeniedError
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var invalidSchedule *domain.InvalidScheduleError
	var persistence *domain.PersistenceError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &accessDenied):
		return http.StatusForbidden
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &invalidSchedule):
		return http.StatusUnprocessableEntity
	case errors.As(err, &persistence):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DomainErrorFromStatus is the inverse of httpStatusFromDomainError, used
// by clients to restore a typed error from a response.
func DomainErrorFromStatus(status int, message string) error {
	switch status {
	case http.StatusNotFound:
		return domain.ErrNotFound("%s", message)
	case http.StatusForbidden, http.StatusUnauthorized:
		return domain.ErrAccessDenied("%s", message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrValidation("%s", message)
	case http.StatusConflict:
		return domain.ErrConflict("%s", message)
	default:
		return &domain.PersistenceError{Err: errors.New(message)}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Error{Code: status, Message: msg})
}
