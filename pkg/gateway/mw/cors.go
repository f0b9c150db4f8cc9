package mw

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/vango-go/vai-sentinel/pkg/gateway/config"
)

// CORS attaches CORS headers for allowlisted browser origins only. With an
// empty allowlist no origin receives CORS headers.
func CORS(cfg config.Config) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			_, ok := cfg.AllowedOrigins[origin]
			return ok
		},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         600,
	})
}
