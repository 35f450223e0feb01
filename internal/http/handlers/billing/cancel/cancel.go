// Package cancel реализует HTTP-обработчик отмены подписки
// в конце оплаченного периода.
package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/assistant-hub/internal/http/response"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/services/billing"
)

// Service описывает интерфейс бизнес-логики отмены подписки.
type Service interface {
	Cancel(ctx context.Context, uid string) error
}

// Handler управляет HTTP-запросами на отмену подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Отменить подписку
// @Description Помечает подписку на отмену в конце оплаченного периода. Доступ сохраняется до конца периода.
// @Tags Billing
// @Produce  json
// @Success 200 {object} map[string]any "Отмена запланирована"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "У аккаунта нет подписки"
// @Failure 502 {object} response.ErrorResponse "Биллинг-провайдер недоступен"
// @Security BearerAuth
// @Router /billing/cancel [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.cancel"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := middlewarectx.UIDFromContext(r.Context())
	if !ok {
		log.Error("no account uid in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	if err := h.service.Cancel(r.Context(), uid); err != nil {
		if errors.Is(err, billing.ErrNoSubscription) {
			log.Info("account has no subscription", slog.String("uid", uid))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("no active subscription"))
			return
		}
		log.Error("failed to cancel subscription", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("failed to cancel subscription"))
		return
	}
	log.Info("subscription cancellation scheduled", slog.String("uid", uid))

	render.JSON(w, r, response.OKWithData(map[string]any{
		"message": "subscription will be cancelled at period end",
	}))
}
