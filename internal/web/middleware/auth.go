package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvgate/internal/config"
	"github.com/JonMunkholm/csvgate/internal/logging"
)

const (
	codeMissingKey = "AUTH001"
	codeInvalidKey = "AUTH002"
)

// APIKeyAuth checks the caller's key against cfg.APIKeys when
// cfg.RequireAPIKey is set. The key is read from X-API-Key or from an
// "Authorization: Bearer" header. With RequireAPIKey set and no keys
// configured, every request is rejected.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r)
			switch {
			case key == "":
				deny(w, r, http.StatusUnauthorized, codeMissingKey, "missing API key")
			case !keyAccepted(key, cfg.APIKeys):
				deny(w, r, http.StatusForbidden, codeInvalidKey, "invalid API key")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func requestKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		return k
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// keyAccepted compares against every key so timing does not reveal which
// one matched.
func keyAccepted(key string, keys []string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return match == 1
}

func deny(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	logging.FromContext(r.Context()).Warn("auth: request denied",
		"code", code,
		"path", r.URL.Path,
		"method", r.Method,
		"remote_addr", r.RemoteAddr,
	)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="csvgate"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
