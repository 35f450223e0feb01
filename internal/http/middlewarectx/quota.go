package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-hub/internal/http/response"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
	"github.com/magabrotheeeer/assistant-hub/internal/services/usage"
	"github.com/magabrotheeeer/assistant-hub/internal/storage"
)

// QuotaChecker описывает проверку квоты перед обработкой запроса.
type QuotaChecker interface {
	Check(ctx context.Context, uid string) (*models.Account, error)
}

// QuotaGateMiddleware возвращает middleware, пропускающий запрос только
// при доступной квоте. Загруженный аккаунт кладётся в контекст, чтобы
// обработчик не ходил в хранилище повторно. Счётчик здесь не меняется:
// списание делает обработчик после успешной генерации.
//
// При исчерпанной квоте возвращает 403 со снимком подписки.
func QuotaGateMiddleware(checker QuotaChecker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.QuotaGateMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			uid, ok := UIDFromContext(r.Context())
			if !ok {
				log.Error("no account uid in context")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}

			account, err := checker.Check(r.Context(), uid)
			switch {
			case errors.Is(err, usage.ErrQuotaExceeded):
				log.Info("request denied by quota",
					slog.String("uid", uid),
					slog.String("plan", account.Subscription.Plan),
					slog.Int("used", account.Subscription.Usage.RequestsThisMonth))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.QuotaExceeded(models.DeniedSubscription{
					Plan:             account.Subscription.Plan,
					Status:           account.Subscription.Status,
					Usage:            account.Subscription.Usage,
					CurrentPeriodEnd: account.Subscription.CurrentPeriodEnd,
				}))
				return
			case errors.Is(err, storage.ErrAccountNotFound):
				log.Error("account not found", slog.String("uid", uid))
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("account not found"))
				return
			case err != nil:
				log.Error("failed to check quota", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				return
			}

			ctx := context.WithValue(r.Context(), AccountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
