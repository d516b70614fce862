package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"workflow-collab-backend/pkg/config"
)

// CORS builds the CORS middleware from configured origins. Development
// falls back to a permissive wildcard without credentials.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"Cache-Control",
			"Last-Event-ID",
		},
		ExposedHeaders: []string{
			"ETag",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}

	if cfg.IsDevelopment() {
		corsOptions.AllowedOrigins = []string{"*"}
		// wildcard origin cannot be combined with credentials
		corsOptions.AllowCredentials = false
	}

	if len(cfg.AllowedOrigins) > 0 && cfg.AllowedOrigins[0] != "*" {
		corsOptions.AllowedOrigins = cfg.AllowedOrigins
		corsOptions.AllowCredentials = true
	}

	return cors.Handler(corsOptions)
}
