package auth

import (
	"encoding/json"
	"net/http"
)

// Middleware validates the signed session cookie on every request and
// attaches the effective user to the request context. With an empty
// secret the auth subsystem is unconfigured and every request gets 503.
func Middleware(secret []byte, cookieName string, resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflight never carries credentials.
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if len(secret) == 0 {
				writeAuthError(w, http.StatusServiceUnavailable, "auth not configured")
				return
			}

			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			session, err := VerifySession(secret, cookie.Value)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid session")
				return
			}

			user := resolver.GetUser(r, session)

			next.ServeHTTP(w, r.WithContext(SetSession(r.Context(), user)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
