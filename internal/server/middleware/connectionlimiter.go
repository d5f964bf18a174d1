package middleware

import (
	"log/slog"
	"net/http"
	"sync"
)

// NewConnectionLimiter caps concurrent websocket connections per remote IP.
// The upgrade handler blocks for the lifetime of the connection, so a slot
// is held until the connection is fully torn down. A non-positive limit
// disables the check.
func NewConnectionLimiter(logger *slog.Logger, maxPerIP int) Middleware {
	var mu sync.Mutex
	active := make(map[string]int)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxPerIP <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				logger.Error("Connection limiter could not find request metadata in context. Check middleware order.")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			mu.Lock()
			if active[reqMeta.IP] >= maxPerIP {
				mu.Unlock()
				logger.Warn("IP connection limit reached", slog.String("ip", reqMeta.IP), slog.Int("limit", maxPerIP))
				http.Error(w, "Too Many Active Connections", http.StatusTooManyRequests)
				return
			}
			active[reqMeta.IP]++
			mu.Unlock()

			defer func() {
				mu.Lock()
				active[reqMeta.IP]--
				if active[reqMeta.IP] <= 0 {
					delete(active, reqMeta.IP)
				}
				mu.Unlock()
			}()

			next.ServeHTTP(w, r)
		})
	}
}
