package httpapi

import (
	"net/http"

	"github.com/atvirokodosprendimai/identityapi/internal/core/usecase"
)

type registerRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	PhoneNumber     string `json:"phoneNumber"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	const op = "register"
	var req registerRequest
	if !h.decode(w, r, op, usecase.SchemaRegister, &req) {
		return
	}
	if req.Password != req.ConfirmPassword {
		writeFailure(w, http.StatusBadRequest, op, "Validation failed", "confirmPassword: passwords do not match")
		return
	}

	session, err := h.auth.Register(r.Context(), usecase.RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusCreated, op, "User registered successfully", toSessionResponse(session))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	const op = "login"
	var req loginRequest
	if !h.decode(w, r, op, usecase.SchemaLogin, &req) {
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "Login successful", toSessionResponse(session))
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	const op = "refresh"
	var req refreshRequest
	if !h.decode(w, r, op, usecase.SchemaRefresh, &req) {
		return
	}

	session, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "Token refreshed successfully", toSessionResponse(session))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	const op = "logout"
	claims, _ := claimsFrom(r.Context())
	if err := h.auth.Logout(r.Context(), claims.UserID); err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "Logged out successfully", nil)
}
