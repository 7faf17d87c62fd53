package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/parksys/parking-service/internal/core/domain"
	"github.com/parksys/parking-service/internal/core/ports"
)

type RegistrationHandler struct {
	registrationService ports.RegistrationService
}

func NewRegistrationHandler(registration ports.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrationService: registration}
}

type RegistrationRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type RegistrationResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

// Register handles POST /auth/register. Role defaults to ATTENDANT.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, r, "invalid request payload")
		return
	}

	role := domain.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if role == "" {
		role = domain.RoleAttendant
	}

	user, err := h.registrationService.RegisterUser(r.Context(), req.Username, req.Email, req.Password, role)
	if err != nil {
		Error(w, r, err)
		return
	}

	Created(w, r, RegistrationResponse{
		Success: true,
		Message: "user " + user.Username + " registered",
		User:    user,
	})
}
