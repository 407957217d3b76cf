package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/platform/httpx"
)

// Middleware wires bearer authentication and capability checks for HTTP handlers.
type Middleware struct {
	Authority TokenAuthority
	Logger    *slog.Logger
}

// Authenticate validates the bearer token and stores the principal in the
// request context. Requests without a valid token get a 401 problem.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.Unauthorized(w, "not authenticated")
			return
		}
		principal, err := m.Authority.ValidateToken(r.Context(), raw)
		if err != nil {
			if httpx.StatusFor(err) == http.StatusInternalServerError {
				m.logError("rbac authenticate", err)
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(authority.WithPrincipal(r.Context(), principal)))
	})
}

// RequireAny ensures the current principal holds at least one of the capabilities.
func (m Middleware) RequireAny(caps ...authority.Capability) func(http.Handler) http.Handler {
	normalized := normalizeCapabilities(caps)
	return m.require(normalized, func(p authority.AuthenticatedPrincipal) (authority.Capability, bool) {
		for _, c := range normalized {
			if m.Authority.Authorize(p, c) {
				return c, true
			}
		}
		return normalized[0], false
	})
}

// RequireAll ensures the current principal holds every capability.
func (m Middleware) RequireAll(caps ...authority.Capability) func(http.Handler) http.Handler {
	normalized := normalizeCapabilities(caps)
	return m.require(normalized, func(p authority.AuthenticatedPrincipal) (authority.Capability, bool) {
		for _, c := range normalized {
			if !m.Authority.Authorize(p, c) {
				return c, false
			}
		}
		return "", true
	})
}

func (m Middleware) require(normalized []authority.Capability, check func(authority.AuthenticatedPrincipal) (authority.Capability, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := authority.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Unauthorized(w, "not authenticated")
				return
			}
			if missing, allowed := check(principal); !allowed {
				if m.Logger != nil {
					m.Logger.Info("rbac denied",
						slog.String("subject", principal.ID),
						slog.String("role", string(principal.Role)),
						slog.String("capability", string(missing)))
				}
				httpx.RespondError(w, &authority.DeniedError{Subject: principal.ID, Role: principal.Role, Capability: missing})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func normalizeCapabilities(caps []authority.Capability) []authority.Capability {
	seen := make(map[authority.Capability]struct{}, len(caps))
	normalized := make([]authority.Capability, 0, len(caps))
	for _, c := range caps {
		c = authority.Capability(strings.TrimSpace(strings.ToLower(string(c))))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		normalized = append(normalized, c)
	}
	return normalized
}
