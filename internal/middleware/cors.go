package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS lets any origin call the local API, like the original backend did.
func CORS(next http.Handler) http.Handler {
	return corsHandler(next)
}

var corsHandler = cors.Handler(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
	MaxAge:         300,
})
