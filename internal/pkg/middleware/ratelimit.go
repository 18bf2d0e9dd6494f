package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"gostocksync/internal/pkg/cache"
	"gostocksync/internal/pkg/logger"
)

// RateLimiter limita requisições por IP numa janela fixa, com contadores no cache.
// Falhas do cache não bloqueiam a requisição.
func RateLimiter(client cache.Client, limit int, window time.Duration, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			key := "rate-limit:" + ip
			ctx := r.Context()

			count, err := client.GetInt(ctx, key)
			if err == cache.ErrCacheMiss {
				if err := client.Set(ctx, key, 1, window); err != nil {
					log.Error("Falha ao iniciar contador de rate limit.", err)
				}
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit-1))
				next.ServeHTTP(w, r)
				return
			} else if err != nil {
				log.Error("Falha ao ler contador de rate limit.", err)
				next.ServeHTTP(w, r)
				return
			}

			if count >= limit {
				w.Header().Set("X-RateLimit-Remaining", "0")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			if _, err := client.Incr(ctx, key); err != nil {
				log.Error("Falha ao incrementar contador de rate limit.", err)
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit-count-1))
			next.ServeHTTP(w, r)
		})
	}
}
