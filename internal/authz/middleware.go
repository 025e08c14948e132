package authz

import (
	"log/slog"
	"net/http"

	"github.com/stratus-ops/stratus/internal/shared"
)

// Middleware wires route-level authorization gates for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Require ensures the current user holds any grant for the resource/action
// pair. Scoped grants pass the gate; the handler performs the object-level
// Check (or list FilterFor) with the concrete resource context.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := CurrentUserID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			filter, err := m.Resolver.FilterFor(r.Context(), userID, action, resource)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz gate", slog.String("resource", resource), slog.String("action", action), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if filter.Kind == FilterForbidden {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUserID extracts the authenticated user from the request session.
func CurrentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	id := sess.User()
	if id == 0 {
		return 0, false
	}
	return id, true
}
