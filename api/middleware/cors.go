package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware that lets the storefront UI origins call the API with
// credentials so the session cookie travels.
func CORS(allowedOrigins []string, sessionHeader string) func(http.Handler) http.Handler {
	if sessionHeader == "" {
		sessionHeader = defaultSessionHeader
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With", requestIDHeader, sessionHeader},
		ExposedHeaders:   []string{requestIDHeader, sessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
