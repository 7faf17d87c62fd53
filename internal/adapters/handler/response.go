package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/logging"
)

type ErrorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type VehicleResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Vehicle *domain.VehicleSession `json:"vehicle"`
}

type VehiclesResponse struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message,omitempty"`
	Vehicles []domain.VehicleSession `json:"vehicles"`
}

type HistoryResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message,omitempty"`
	History []domain.VehicleSession `json:"history"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error().Err(err).Msg("failed to write response")
	}
}

func OK(w http.ResponseWriter, r *http.Request, v any) {
	JSON(w, r, http.StatusOK, v)
}

func Created(w http.ResponseWriter, r *http.Request, v any) {
	JSON(w, r, http.StatusCreated, v)
}

func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	JSON(w, r, http.StatusBadRequest, ErrorResponse{Message: message})
}

// Error maps domain errors to status codes. Unknown errors are logged and
// reported as a bare 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *domain.ValidationError
		netErr *domain.NetworkError
	)

	switch {
	case errors.As(err, &verr):
		JSON(w, r, http.StatusBadRequest, ErrorResponse{Message: "validation failed", Errors: verr.Fields})
	case errors.Is(err, domain.ErrDuplicatePlate), errors.Is(err, domain.ErrUserExists):
		JSON(w, r, http.StatusConflict, ErrorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		JSON(w, r, http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case errors.As(err, &netErr):
		JSON(w, r, http.StatusBadGateway, ErrorResponse{Message: netErr.UserMessage()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		JSON(w, r, http.StatusUnauthorized, ErrorResponse{Message: "incorrect username or password"})
	case errors.Is(err, domain.ErrInactiveUser):
		JSON(w, r, http.StatusForbidden, ErrorResponse{Message: err.Error()})
	default:
		logging.FromContext(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		JSON(w, r, http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
	}
}
