package middleware

import (
	"log/slog"
	"net/http"

	"github.com/adityamishra28203/healthvault/internal"
	"github.com/adityamishra28203/healthvault/internal/authz"
)

// RequirePermission gates a route on one catalog permission, evaluated
// through the authorization engine for the authenticated subject.
func RequirePermission(engine *authz.Engine, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := internal.UserIDFromContext(r.Context())
			hospitalID := internal.HospitalIDFromContext(r.Context())
			if userID == "" || hospitalID == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			decision, err := engine.CheckPermission(r.Context(), userID, hospitalID, resource, action, authz.EvalContext{})
			if err != nil {
				slog.Error("permission check failed", "error", err, "user_id", userID)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			if !decision.Granted {
				slog.Warn("access denied",
					"user_id", userID,
					"resource", resource,
					"action", action,
					"reason", decision.Reason)
				http.Error(w, "Forbidden: "+decision.Reason, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
