package security

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"ecomstudio/internal/log"
)

// RequireToken rejects requests whose Authorization header does not carry
// "Bearer <token>". An empty token disables the check.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
				slog.WarnContext(r.Context(), "Rejected unauthenticated request",
					log.FieldComponent, log.ComponentSecurity,
					log.FieldPath, r.URL.Path)
				w.Header().Set("WWW-Authenticate", `Bearer realm="ecomstudio"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
