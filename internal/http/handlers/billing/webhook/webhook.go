// Package webhook реализует приём событий биллинг-провайдера.
//
// Обработчик читает сырое тело запроса, проверяет подпись, разбирает
// событие и передаёт его на применение. Ответ 200 подтверждает доставку:
// провайдер перестаёт повторять событие, поэтому 200 возвращается для
// всех проверенных событий, включая неизвестные типы и события без
// подходящего аккаунта. Не-200 отдаётся только при невалидной подписи
// и при сбое хранилища, когда повтор доставки имеет смысл.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/assistant-hub/internal/billingprovider"
	"github.com/magabrotheeeer/assistant-hub/internal/http/response"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/metrics"
)

// maxBodySize ограничивает размер тела вебхука.
const maxBodySize = 1 << 20

// SignatureHeader — заголовок с подписью события.
const SignatureHeader = "Provider-Signature"

// Reconciler описывает применение проверенного события.
type Reconciler interface {
	Apply(ctx context.Context, ev billingprovider.Event) error
}

// Handler управляет HTTP-запросами вебхука биллинг-провайдера.
type Handler struct {
	log           *slog.Logger
	reconciler    Reconciler
	webhookSecret string
	now           func() time.Time
}

// New создает новый Handler с переданными логгером, reconciler-ом
// и секретом подписи вебхука.
func New(log *slog.Logger, reconciler Reconciler, webhookSecret string) *Handler {
	return &Handler{
		log:           log,
		reconciler:    reconciler,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

// ServeHTTP godoc
// @Summary Принять событие биллинг-провайдера
// @Description Проверяет подпись события и согласует локальное состояние подписки.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]any "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Нечитаемое тело запроса"
// @Failure 401 {object} response.ErrorResponse "Невалидная подпись"
// @Failure 500 {object} response.ErrorResponse "Сбой применения события"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	// Подпись считается по сырым байтам тела, до любого парсинга.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if err := billingprovider.VerifyEvent(body, signature, h.webhookSecret,
		h.now(), billingprovider.DefaultTolerance); err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		log.Warn("webhook signature rejected", sl.Err(err))
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	ev, err := billingprovider.ParseEvent(body)
	if err != nil {
		if errors.Is(err, billingprovider.ErrUnhandledEvent) {
			// Проверенное, но неинтересное событие: подтверждаем,
			// чтобы провайдер не доставлял его повторно.
			log.Info("unhandled event type acknowledged", sl.Err(err))
			render.JSON(w, r, response.OKWithData(map[string]any{"received": true}))
			return
		}
		log.Error("failed to parse event", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid event payload"))
		return
	}

	if err := h.reconciler.Apply(r.Context(), ev); err != nil {
		log.Error("failed to apply event", slog.String("type", ev.EventType()), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to apply event"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{"received": true}))
}
