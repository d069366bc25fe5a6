package middlewares

import (
	"net/http"

	"github.com/podvault/podvault/internal/syslog"
)

func CORS(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowedOrigin := r.Header.Get("Origin")
		if allowedOrigin != "" {
			allowedHeaders := r.Header.Get("Access-Control-Request-Headers")
			if allowedHeaders == "" {
				allowedHeaders = "*"
			}

			allowedMethods := r.Header.Get("Access-Control-Request-Method")
			if allowedMethods == "" {
				allowedMethods = "POST, GET, OPTIONS, PUT, DELETE"
			}

			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte{}); err != nil {
				syslog.L.Error(err).WithMessage("cannot send 200 answer").Write()
			}
			return
		}

		next.ServeHTTP(w, r)
	}
}
