package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-hub/internal/http/response"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/ratelimit"
)

// RateLimitMiddleware возвращает middleware, ограничивающий частоту
// запросов по ключу клиента: UID аккаунта, если запрос аутентифицирован,
// иначе адрес клиента. Лимитер передаётся снаружи и разделяется
// всеми маршрутами, на которые навешан.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := UIDFromContext(r.Context())
			if !ok {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				key = host
			}

			if !limiter.Allow(key) {
				log.Warn("too many requests", slog.String("key", key))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
