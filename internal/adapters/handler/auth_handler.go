package handler

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/parksys/parking-service/internal/adapters/middleware"
	"github.com/parksys/parking-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(auth ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: auth}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /auth/login. The desk posts a form; JSON is accepted
// too.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, r, "invalid request body")
			return
		}
	} else {
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}

	if req.Username == "" || req.Password == "" {
		BadRequest(w, r, "username and password are required")
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, result)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), middleware.Token(r.Context())); err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, MessageResponse{Success: true, Message: "logged out"})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Me(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		Error(w, r, err)
		return
	}
	OK(w, r, user)
}
