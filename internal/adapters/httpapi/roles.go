package httpapi

import (
	"fmt"
	"net/http"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/usecase"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type assignRoleRequest struct {
	UserID   string `json:"userId"`
	RoleName string `json:"roleName"`
}

type bulkAssignRequest struct {
	UserIDs   []string `json:"userIds"`
	RoleNames []string `json:"roleNames"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	const op = "list-roles"
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	result := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		resp := toRoleResponse(role.Role)
		count := role.UserCount
		resp.UserCount = &count
		result = append(result, resp)
	}
	writeOK(w, http.StatusOK, op, "", result)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	const op = "create-role"
	var req createRoleRequest
	if !h.decode(w, r, op, usecase.SchemaCreateRole, &req) {
		return
	}

	role, err := h.roles.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusCreated, op, fmt.Sprintf("Role '%s' created", role.Name), toRoleResponse(*role))
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	const op = "assign-role"
	var req assignRoleRequest
	if !h.decode(w, r, op, usecase.SchemaAssignRole, &req) {
		return
	}

	result, err := h.roles.AssignRole(r.Context(), req.UserID, req.RoleName)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeAssignment(w, op, result)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	const op = "remove-role"
	var req assignRoleRequest
	if !h.decode(w, r, op, usecase.SchemaAssignRole, &req) {
		return
	}

	result, err := h.roles.RemoveRole(r.Context(), req.UserID, req.RoleName)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeAssignment(w, op, result)
}

func (h *Handler) bulkAssignRoles(w http.ResponseWriter, r *http.Request) {
	const op = "bulk-assign-roles"
	var req bulkAssignRequest
	if !h.decode(w, r, op, usecase.SchemaBulkAssign, &req) {
		return
	}

	result, err := h.roles.BulkAssignRoles(r.Context(), req.UserIDs, req.RoleNames)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{
		Success: result.FailedAssignments == 0,
		Message: fmt.Sprintf("Bulk assignment completed: %d succeeded, %d failed", result.SuccessfulAssignments, result.FailedAssignments),
		Data: bulkAssignmentResponse{
			TotalUsers:            result.TotalUsers,
			SuccessfulAssignments: result.SuccessfulAssignments,
			FailedAssignments:     result.FailedAssignments,
			Errors:                result.Errors,
			UpdatedUsers:          toUserResponses(result.UpdatedUsers),
		},
		Errors:    result.Errors,
		Operation: op,
	})
}

func (h *Handler) userRoles(w http.ResponseWriter, r *http.Request) {
	const op = "user-roles"
	id := userIDParam(r)
	if !selfOrAdmin(r.Context(), id) {
		h.handleDomainError(w, r, op, domain.ErrForbidden)
		return
	}

	user, err := h.roles.UserRoles(r.Context(), id)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "", toUserResponse(*user))
}

func (h *Handler) usersWithRoles(w http.ResponseWriter, r *http.Request) {
	const op = "users-with-roles"
	filter, ok := parseUserFilter(w, r, op)
	if !ok {
		return
	}

	page, err := h.roles.UsersWithRoles(r.Context(), filter)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "", toUserPageResponse(page))
}

func writeAssignment(w http.ResponseWriter, op string, result domain.RoleAssignmentResult) {
	if !result.Success {
		writeFailure(w, http.StatusBadRequest, op, result.Message, result.Errors...)
		return
	}
	var data any
	if result.User != nil {
		data = toUserResponse(*result.User)
	}
	writeOK(w, http.StatusOK, op, result.Message, data)
}
