// Package middlewarectx содержит HTTP middleware: проверку JWT,
// квоту запросов аккаунта и ограничение частоты запросов.
//
// JWTMiddleware проверяет наличие и валидность JWT токена в заголовке
// Authorization и в случае успеха добавляет в контекст UID и email аккаунта.
//
// В случае ошибки проверки возвращает HTTP 401 Unauthorized с сообщением об ошибке.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-hub/internal/http/response"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// AccountUID — ключ для UID аккаунта в контексте.
	AccountUID Key = "account_uid"
	// Email — ключ для email аккаунта в контексте.
	Email Key = "email"
	// AccountKey — ключ для аккаунта, загруженного проверкой квоты.
	AccountKey Key = "account"
)

// UIDFromContext возвращает UID аккаунта, положенный JWTMiddleware.
func UIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(AccountUID).(string)
	return uid, ok
}

// AccountFromContext возвращает аккаунт, положенный QuotaGateMiddleware.
func AccountFromContext(ctx context.Context) (*models.Account, bool) {
	account, ok := ctx.Value(AccountKey).(*models.Account)
	return account, ok
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке Authorization.
//
// Если токен валиден, добавляет UID и email аккаунта в контекст запроса,
// иначе возвращает ошибку с HTTP статусом 401 Unauthorized.
func JWTMiddleware(maker jwt.Maker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := maker.ParseToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), AccountUID, claims.AccountUID)
			ctx = context.WithValue(ctx, Email, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
