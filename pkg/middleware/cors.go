package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/corebridge/corebridge/pkg/config"
)

// CORS returns middleware configured from CORS_ORIGIN_ALLOW_ALL /
// CORS_ORIGIN_WHITELIST. With neither set, cross-origin requests are refused.
func CORS(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.Whitelist
	if cfg.AllowAll {
		origins = []string{"*"}
	}
	if len(origins) == 0 {
		// cors.Handler treats an empty origin list as allow-all; an empty
		// whitelist here must mean "no cross-origin callers".
		origins = []string{"null"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !cfg.AllowAll,
		MaxAge:           300,
	})
}
