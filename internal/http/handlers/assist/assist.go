// Package assist реализует HTTP-обработчик запросов к ассистенту.
//
// Один Handler обслуживает все четыре задачи (summarize, fill-field,
// generate, analyze): маршруты отличаются только системным промптом,
// поэтому задача передаётся параметром при создании обработчика.
//
// Списание с квоты происходит после успешной генерации: неудавшийся
// запрос к провайдеру квоту не тратит. Если же списание не удалось
// записать, запрос завершается ошибкой, чтобы не раздавать бесплатные
// запросы сверх лимита.
package assist

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/assistant-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/assistant-hub/internal/http/response"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/metrics"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
	"github.com/magabrotheeeer/assistant-hub/internal/services/completion"
)

// Meter описывает списание одного запроса с квоты аккаунта.
type Meter interface {
	Register(ctx context.Context, account *models.Account) (models.UsageStats, error)
}

// Handler управляет HTTP-запросами к одной задаче ассистента.
type Handler struct {
	log      *slog.Logger
	provider completion.Provider
	meter    Meter
	task     string
	validate *validator.Validate
}

// New создает новый Handler для задачи task.
func New(log *slog.Logger, provider completion.Provider, meter Meter, task string) *Handler {
	return &Handler{
		log:      log,
		provider: provider,
		meter:    meter,
		task:     task,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Выполнить задачу ассистента
// @Description Выполняет задачу генерации текста и списывает один запрос с месячной квоты.
// @Tags Assist
// @Accept  json
// @Produce  json
// @Param request body models.DummyAssist true "Входной текст"
// @Success 200 {object} map[string]any "Результат генерации и снимок использования"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.QuotaExceededResponse "Квота исчерпана"
// @Failure 500 {object} response.ErrorResponse "Не удалось записать списание"
// @Failure 502 {object} response.ErrorResponse "Сервис генерации недоступен"
// @Security BearerAuth
// @Router /assist/{task} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.assist"
	log := h.log.With(
		slog.String("op", op),
		slog.String("task", h.task),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	account, ok := middlewarectx.AccountFromContext(r.Context())
	if !ok {
		log.Error("no account in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.DummyAssist
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	result, err := h.provider.Complete(r.Context(), h.task, req.Input, req.MaxLength)
	if err != nil {
		metrics.CompletionFailures.Inc()
		log.Error("completion failed", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("completion provider unavailable"))
		return
	}

	stats, err := h.meter.Register(r.Context(), account)
	if err != nil {
		log.Error("failed to register usage", slog.String("uid", account.UID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to record usage"))
		return
	}
	log.Info("assist request served",
		slog.String("uid", account.UID),
		slog.Int("used", stats.CurrentUsage))

	render.JSON(w, r, response.OKWithData(map[string]any{
		"result":  result,
		"success": true,
		"usage":   stats,
	}))
}
