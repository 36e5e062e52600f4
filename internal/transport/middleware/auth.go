package middleware

import (
	"net/http"
	"strings"

	"github.com/adityamishra28203/healthvault/internal"
	"github.com/adityamishra28203/healthvault/internal/auth"
	"github.com/adityamishra28203/healthvault/pkg/logger"
)

// Authenticate resolves the bearer token into the subject and hospital ids
// every protected route relies on.
func Authenticate(authService auth.ServiceAPI) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := authService.ValidateAccessToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := internal.ContextWithUserID(r.Context(), claims.UserID)
			ctx = internal.ContextWithHospitalID(ctx, claims.HospitalID)
			ctx = logger.With(ctx, "userID", claims.UserID, "hospitalID", claims.HospitalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
