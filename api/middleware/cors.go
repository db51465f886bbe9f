package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://bidhouse.app",
	"https://www.bidhouse.app",
}

// CORS applies the allowed origin policy. An empty list falls back to the defaults.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := origins
	if len(allowed) == 0 {
		allowed = defaultCORSOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
