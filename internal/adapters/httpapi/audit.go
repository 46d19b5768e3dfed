package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atvirokodosprendimai/identityapi/internal/core/usecase"
)

func (h *Handler) entityHistory(w http.ResponseWriter, r *http.Request) {
	const op = "entity-history"
	history, err := h.audit.EntityHistory(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "", toAuditResponses(history))
}

func (h *Handler) myActivity(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	h.activity(w, r, "my-activity", claims.UserID)
}

func (h *Handler) userActivity(w http.ResponseWriter, r *http.Request) {
	h.activity(w, r, "user-activity", userIDParam(r))
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request, op, userID string) {
	from, to, ok := parseRange(w, r, op)
	if !ok {
		return
	}
	page, ok := parsePage(w, r, op)
	if !ok {
		return
	}

	activity, err := h.audit.UserActivity(r.Context(), userID, from, to, page)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "", toAuditResponses(activity))
}

func (h *Handler) systemLog(w http.ResponseWriter, r *http.Request) {
	const op = "system-log"
	from, to, ok := parseRange(w, r, op)
	if !ok {
		return
	}
	page, ok := parsePage(w, r, op)
	if !ok {
		return
	}

	entries, err := h.audit.SystemLog(r.Context(), from, to, page)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "", toAuditResponses(entries))
}

func (h *Handler) auditSummary(w http.ResponseWriter, r *http.Request) {
	const op = "audit-summary"
	from, to, ok := parseRange(w, r, op)
	if !ok {
		return
	}

	summary, err := h.audit.Summary(r.Context(), from, to)
	if err != nil {
		h.handleDomainError(w, r, op, err)
		return
	}
	writeOK(w, http.StatusOK, op, "", toAuditSummaryResponse(summary))
}

// parseRange reads the optional RFC 3339 from/to query parameters.
func parseRange(w http.ResponseWriter, r *http.Request, op string) (*time.Time, *time.Time, bool) {
	from, ok := queryTime(w, r, op, "from")
	if !ok {
		return nil, nil, false
	}
	to, ok := queryTime(w, r, op, "to")
	if !ok {
		return nil, nil, false
	}
	return from, to, true
}

func queryTime(w http.ResponseWriter, r *http.Request, op, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, op, "Invalid request", name+" must be an RFC 3339 timestamp")
		return nil, false
	}
	t = t.UTC()
	return &t, true
}

func parsePage(w http.ResponseWriter, r *http.Request, op string) (usecase.Page, bool) {
	limit, ok := queryInt(w, r, op, "limit")
	if !ok {
		return usecase.Page{}, false
	}
	offset, ok := queryInt(w, r, op, "offset")
	if !ok {
		return usecase.Page{}, false
	}
	return usecase.Page{Limit: limit, Offset: offset}, true
}
