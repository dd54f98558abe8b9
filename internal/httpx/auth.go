package httpx

import (
	"github.com/ariefcatur/go-catalog-orders/internal/auth"
	"go.uber.org/zap"
	"net/http"
	"strings"
)

// Authenticate accepts a bearer token or a "token" cookie.
func Authenticate(secret []byte, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" {
				if c, err := r.Cookie("token"); err == nil {
					raw = c.Value
				}
			}
			if raw == "" {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			p, err := auth.Parse(secret, raw)
			if err != nil {
				log.Debugw("token rejected", "error", err)
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}

func RequirePermission(permission string) func(http.Handler) http.Handler {
	return guard(func(p auth.Principal) bool { return p.Can(permission) })
}

func RequireRole(role string) func(http.Handler) http.Handler {
	return guard(func(p auth.Principal) bool { return p.Role == role })
}

func guard(allow func(auth.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !allow(p) {
				writeMessage(w, http.StatusForbidden, "Forbidden resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
