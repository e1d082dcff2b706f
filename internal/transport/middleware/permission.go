package middleware

import (
	"log/slog"
	"net/http"

	"github.com/reimbursehq/reimbursement-service/internal/auth"
)

// RequirePermissions rejects requests whose actor holds none of the
// given permissions. The services re-check on their own; this keeps
// obviously unauthorized requests out of the handlers.
func RequirePermissions(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := auth.ActorFromContext(r.Context())
			if !ok || actor == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			hasPermission := false
			for _, required := range permissions {
				if actor.HasPermission(required) {
					hasPermission = true
					break
				}
			}

			if !hasPermission {
				slog.Warn("access denied: actor lacks required permissions",
					"actor_id", actor.ID,
					"required_permissions", permissions,
					"actor_permissions", actor.Permissions)
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
