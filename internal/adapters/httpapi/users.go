package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/usecase"
)

type updateProfileRequest struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	const op = "list-users"
	filter, ok := parseUserFilter(w, r, op)
	if !ok {
		return
	}

	page, err := h.users.List(r.Context(), filter)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "", toUserPageResponse(page))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	const op = "get-user"
	id := userIDParam(r)
	if !selfOrAdmin(r.Context(), id) {
		h.handleDomainError(w, r, op, domain.ErrForbidden)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "", toUserResponse(*user))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	const op = "update-profile"
	id := userIDParam(r)
	if !selfOrAdmin(r.Context(), id) {
		h.handleDomainError(w, r, op, domain.ErrForbidden)
		return
	}
	var req updateProfileRequest
	if !h.decode(w, r, op, usecase.SchemaUpdateProfile, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id, usecase.UpdateProfileInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "Profile updated", toUserResponse(*user))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	const op = "delete-user"
	if err := h.users.Delete(r.Context(), userIDParam(r)); err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "User deleted", nil)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	const op = "set-active"
	var req setActiveRequest
	if !h.decode(w, r, op, usecase.SchemaSetActive, &req) {
		return
	}

	if err := h.users.SetActive(r.Context(), userIDParam(r), req.Active); err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	message := "User deactivated"
	if req.Active {
		message = "User activated"
	}
	writeOK(w, http.StatusOK, op, message, nil)
}

func userIDParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func parseUserFilter(w http.ResponseWriter, r *http.Request, op string) (domain.UserFilter, bool) {
	q := r.URL.Query()
	filter := domain.UserFilter{
		Search: q.Get("search"),
		Role:   q.Get("role"),
	}
	var ok bool
	if filter.Page, ok = queryInt(w, r, op, "page"); !ok {
		return domain.UserFilter{}, false
	}
	if filter.PageSize, ok = queryInt(w, r, op, "pageSize"); !ok {
		return domain.UserFilter{}, false
	}
	return filter, true
}

// queryInt parses an optional integer query parameter; absent means zero.
func queryInt(w http.ResponseWriter, r *http.Request, op, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, op, "Invalid request", name+" must be integer")
		return 0, false
	}
	return v, true
}
