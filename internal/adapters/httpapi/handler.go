package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/atvirokodosprendimai/identityapi/internal/core/changeset"
	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/atvirokodosprendimai/identityapi/internal/core/ports"
	"github.com/atvirokodosprendimai/identityapi/internal/core/usecase"
)

const (
	timeFormat       = "2006-01-02T15:04:05.999999999Z07:00"
	maxJSONBodySize  = 1 << 20
	defaultAuthLimit = 20
)

type Deps struct {
	Auth      *usecase.AuthService
	Roles     *usecase.RoleService
	Users     *usecase.UserService
	Audit     *usecase.AuditService
	Validator *usecase.RequestValidator
	Signer    ports.AccessTokenSigner
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
	// DevMode adds internal error text to 500 responses.
	DevMode bool
	// AuthRateLimit caps register, login and refresh calls per client IP
	// and minute.
	AuthRateLimit int
}

type Handler struct {
	auth      *usecase.AuthService
	roles     *usecase.RoleService
	users     *usecase.UserService
	audit     *usecase.AuditService
	validator *usecase.RequestValidator
	signer    ports.AccessTokenSigner
	metrics   http.Handler
	logger    *slog.Logger
	devMode   bool
	authLimit int
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authLimit := deps.AuthRateLimit
	if authLimit <= 0 {
		authLimit = defaultAuthLimit
	}
	return &Handler{
		auth:      deps.Auth,
		roles:     deps.Roles,
		users:     deps.Users,
		audit:     deps.Audit,
		validator: deps.Validator,
		signer:    deps.Signer,
		metrics:   deps.Metrics,
		logger:    logger,
		devMode:   deps.DevMode,
		authLimit: authLimit,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	}).Handler)
	r.Use(h.clientInfo)

	r.Get("/healthz", h.healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(pub chi.Router) {
			pub.Use(httprate.Limit(h.authLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeFailure(w, http.StatusTooManyRequests, "", "Too many requests, try again later")
				}),
			))
			pub.Post("/auth/register", h.register)
			pub.Post("/auth/login", h.login)
			pub.Post("/auth/refresh", h.refresh)
		})

		v1.Group(func(pr chi.Router) {
			pr.Use(h.requireAuth)
			pr.Post("/auth/logout", h.logout)
			pr.Get("/roles", h.listRoles)
			pr.Get("/users/{id}", h.getUser)
			pr.Put("/users/{id}", h.updateProfile)
			pr.Get("/users/{id}/roles", h.userRoles)
			pr.Get("/audit/me", h.myActivity)

			pr.Group(func(ar chi.Router) {
				ar.Use(requireRole(domain.RoleAdmin))
				ar.Post("/roles", h.createRole)
				ar.Post("/roles/assign", h.assignRole)
				ar.Post("/roles/remove", h.removeRole)
				ar.Post("/roles/bulk-assign", h.bulkAssignRoles)
				ar.Get("/users", h.listUsers)
				ar.Delete("/users/{id}", h.deleteUser)
				ar.Put("/users/{id}/active", h.setActive)
				ar.Get("/users-with-roles", h.usersWithRoles)
				ar.Get("/audit/entity/{entity}/{id}", h.entityHistory)
				ar.Get("/audit/users/{id}", h.userActivity)
				ar.Get("/audit/system", h.systemLog)
				ar.Get("/audit/summary", h.auditSummary)
			})
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// apiResponse is the envelope of every /v1 response.
type apiResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message,omitempty"`
	Data      any      `json:"data,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Operation string   `json:"operation,omitempty"`
}

func writeOK(w http.ResponseWriter, status int, operation, message string, data any) {
	writeJSON(w, status, apiResponse{Success: true, Message: message, Data: data, Operation: operation})
}

func writeFailure(w http.ResponseWriter, status int, operation, message string, errs ...string) {
	writeJSON(w, status, apiResponse{Success: false, Message: message, Errors: errs, Operation: operation})
}

// decode reads the body, checks it against the named schema and unmarshals
// it into dst. It writes the failure response itself and reports false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, operation, schema string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, operation, "invalid json body")
		return false
	}
	if err := h.validator.Validate(schema, body); err != nil {
		h.handleDomainError(w, r, operation, err)
		return false
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeFailure(w, http.StatusBadRequest, operation, "invalid json body")
		return false
	}
	if err := ensureEOF(decoder); err != nil {
		writeFailure(w, http.StatusBadRequest, operation, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("encode json response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		slog.Error("write response", "error", err)
	}
}

func (h *Handler) handleDomainError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var validation *domain.ErrValidation
	switch {
	case errors.As(err, &validation):
		writeFailure(w, http.StatusBadRequest, operation, "Validation failed", validation.Errors...)
	case errors.Is(err, domain.ErrInvalidInput):
		writeFailure(w, http.StatusBadRequest, operation, "Invalid request", err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, operation, "Invalid email or password")
	case errors.Is(err, domain.ErrInvalidToken):
		writeFailure(w, http.StatusUnauthorized, operation, "Invalid or expired token")
	case errors.Is(err, domain.ErrForbidden):
		writeFailure(w, http.StatusForbidden, operation, "Forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeFailure(w, http.StatusNotFound, operation, "Not found", err.Error())
	case errors.Is(err, domain.ErrAlreadyExists):
		writeFailure(w, http.StatusConflict, operation, "Already exists", err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeFailure(w, http.StatusConflict, operation, "The data was changed by another request, please retry")
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"operation", operation,
			"request_id", middleware.GetReqID(r.Context()),
			"phase", commitPhase(err),
			"error", err,
		)
		if h.devMode {
			writeFailure(w, http.StatusInternalServerError, operation, "An error occurred", err.Error())
			return
		}
		writeFailure(w, http.StatusInternalServerError, operation, "An error occurred")
	}
}

func commitPhase(err error) string {
	var ce *changeset.CommitError
	if errors.As(err, &ce) {
		return string(ce.Phase)
	}
	return ""
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}
