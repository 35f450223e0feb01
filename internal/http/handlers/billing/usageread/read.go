// Package usageread реализует HTTP-обработчик чтения статистики
// использования квоты аккаунта.
package usageread

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/assistant-hub/internal/http/response"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

// Service описывает интерфейс чтения снимка использования.
type Service interface {
	Snapshot(ctx context.Context, uid string) (*models.Account, models.UsageStats, error)
}

// Handler управляет HTTP-запросами на чтение статистики использования.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить статистику использования
// @Description Возвращает счётчик запросов за месяц, лимит, остаток и признак доступности запросов.
// @Tags Billing
// @Produce  json
// @Success 200 {object} models.UsageStats "Статистика использования"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /billing/usage [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.usageread"
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

	_, stats, err := h.service.Snapshot(r.Context(), uid)
	if err != nil {
		log.Error("failed to read usage stats", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to read usage stats"))
		return
	}

	render.JSON(w, r, response.OKWithData(stats))
}
