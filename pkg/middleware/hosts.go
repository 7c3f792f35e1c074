package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/corebridge/corebridge/pkg/config"
)

// AllowedHosts returns middleware that rejects requests whose Host header is
// not in the ALLOWED_HOSTS whitelist. An empty whitelist accepts everything.
func AllowedHosts(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(cfg.AllowedHosts) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.HostAllowed(r.Host) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "bad_request",
					"message": "host not allowed",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
