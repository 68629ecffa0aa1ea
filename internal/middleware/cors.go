package middleware

import (
	"net/http"
	"strings"
)

// CORS allows browser clients from origin ("*" for any) to call the API and
// answers preflight requests directly.
func CORS(origin string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool)
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			reqOrigin := r.Header.Get("Origin")

			switch {
			case allowed["*"]:
				h.Set("Access-Control-Allow-Origin", "*")
			case reqOrigin != "" && allowed[reqOrigin]:
				h.Set("Access-Control-Allow-Origin", reqOrigin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
