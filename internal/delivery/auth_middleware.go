package delivery

import (
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
)

// requestToken reads the control token from the X-Auth header or, for
// websocket upgrades where browsers cannot set headers, the token query.
func requestToken(r *http.Request) string {
	if t := r.Header.Get("X-Auth"); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

// AuthMiddleware guards the control routes. It is a pass-through while no
// control password is configured.
func AuthMiddleware(auth ports.AuthService, log *logger.ZapLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !auth.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := requestToken(r)
			if token == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}

			ok, err := auth.ValidateToken(r.Context(), token)
			if err != nil {
				writeError(w, log, "failed validate token", err)
				return
			}
			if !ok {
				log.Log(logger.LogEntry{
					Level:   "warn",
					Message: "control request with bad token",
					Fields:  map[string]any{"path": r.URL.Path, "remote": r.RemoteAddr},
				})
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
