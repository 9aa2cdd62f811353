package handler

import (
	"net/http"

	"github.com/zynx-ai/backend/internal/contextkeys"
	"github.com/zynx-ai/backend/internal/domain"
	"github.com/zynx-ai/backend/internal/service"
)

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	auth *service.AuthService
	otp  *service.OtpService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, otp *service.OtpService) *AuthHandler {
	return &AuthHandler{auth: auth, otp: otp}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.auth.Signup(r.Context(), &req, clientIP(r), r.UserAgent())
	if err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), &req, clientIP(r), r.UserAgent())
	if err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, resp)
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	resp, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, resp)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Profile handles GET /api/auth/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)

	resp, err := h.auth.Profile(r.Context(), userID)
	if err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, resp)
}

// SendOtp handles POST /api/auth/send-otp.
func (h *AuthHandler) SendOtp(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)

	var req domain.SendOtpRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	if err := h.otp.Send(r.Context(), userID, &req); err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

// VerifyOtp handles POST /api/auth/verify-otp.
func (h *AuthHandler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)

	var req domain.VerifyOtpRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	if err := h.otp.Verify(r.Context(), userID, &req); err != nil {
		Error(w, err)
		return
	}

	Success(w, http.StatusOK, map[string]string{"message": "phone verified"})
}
