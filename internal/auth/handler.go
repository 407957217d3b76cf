package auth

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/platform/httpx"
	"github.com/student-sections/sections-api/internal/rbac"
	"github.com/student-sections/sections-api/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	rbac           rbac.Middleware
	loginPerMinute int
}

// NewHandler constructs a Handler instance. loginPerMinute limits login and
// registration attempts per client IP; zero disables the limit.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, loginPerMinute int) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, loginPerMinute: loginPerMinute}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.loginPerMinute > 0 {
			r.Use(httprate.Limit(h.loginPerMinute, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "too many attempts, try again later")
				}),
			))
		}
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Authenticate)
		r.With(h.rbac.RequireAny(authority.CapReadProfile)).Get("/me", h.handleMe)
		r.With(h.rbac.RequireAny(authority.CapRefreshToken)).Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
		r.With(h.rbac.RequireAny(authority.CapChangePassword)).Post("/change-password", h.handleChangePassword)
		r.With(h.rbac.RequireAny(authority.CapCreateUser)).Post("/admin/create-user", h.handleCreateUser)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Register(r.Context(), in, clientIP(r))
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	token, err := h.service.Login(r.Context(), in, clientIP(r))
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.JSON(w, http.StatusOK, token)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := authority.PrincipalFromContext(r.Context())
	user, err := h.service.Me(r.Context(), principal)
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	principal, _ := authority.PrincipalFromContext(r.Context())
	token, err := h.service.Refresh(r.Context(), principal)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.JSON(w, http.StatusOK, token)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, _ := authority.PrincipalFromContext(r.Context())
	if err := h.service.Logout(r.Context(), principal, clientIP(r)); err != nil {
		h.fail(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var in users.ChangePasswordInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := authority.PrincipalFromContext(r.Context())
	if err := h.service.ChangePassword(r.Context(), principal, in, clientIP(r)); err != nil {
		h.fail(w, "change password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in users.CreateInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	principal, _ := authority.PrincipalFromContext(r.Context())
	user, err := h.service.CreateUser(r.Context(), principal, in, clientIP(r))
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
