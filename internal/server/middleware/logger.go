package middleware

import (
	"log/slog"
	"net/http"
)

// NewRequestLogger logs every handshake request reaching the websocket
// endpoint. Runs after the metadata middleware so the resolved client IP is
// available.
func NewRequestLogger(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				ip = reqMeta.IP
			}

			logger.Info("Handshake request",
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.String("clientIP", ip),
			)
			next.ServeHTTP(w, r)
		})
	}
}
