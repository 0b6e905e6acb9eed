package rbac

import (
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/formgate/formgate/internal/shared"
)

// Middleware wires capability gating for HTTP handlers outside the
// engine's own routes.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireCapability ensures the current user holds the capability code,
// directly or through inheritance.
func (m Middleware) RequireCapability(code string) func(http.Handler) http.Handler {
	return m.require(Capability(code))
}

// RequireMaxLevel ensures the current user's highest role sits at level
// or above (numerically at most level).
func (m Middleware) RequireMaxLevel(level int) func(http.Handler) http.Handler {
	return m.require(MaxLevel(level))
}

func (m Middleware) require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := m.currentUserID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			actor, err := m.Service.ResolveActor(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac resolve actor", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			decision, err := m.Service.Authorize(r.Context(), *actor, req)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac authorize", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !decision.Allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
