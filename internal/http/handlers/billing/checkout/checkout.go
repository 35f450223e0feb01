// Package checkout реализует HTTP-обработчик создания checkout-сессии
// для перехода аккаунта на Pro.
package checkout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/assistant-hub/internal/billingprovider"
	"github.com/magabrotheeeer/assistant-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/assistant-hub/internal/http/response"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

// Service описывает интерфейс бизнес-логики создания checkout-сессии.
type Service interface {
	Checkout(ctx context.Context, uid, successURL, cancelURL string) (*billingprovider.Session, error)
}

// Handler управляет HTTP-запросами на создание checkout-сессии.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать checkout-сессию
// @Description Создает у биллинг-провайдера сессию оплаты Pro-подписки и возвращает её URL.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body models.DummyCheckout true "URL возврата после оплаты"
// @Success 200 {object} map[string]any "Сессия создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 502 {object} response.ErrorResponse "Биллинг-провайдер недоступен"
// @Security BearerAuth
// @Router /billing/checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkout"
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

	var req models.DummyCheckout
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

	session, err := h.service.Checkout(r.Context(), uid, req.SuccessURL, req.CancelURL)
	if err != nil {
		log.Error("failed to create checkout session", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("failed to create checkout session"))
		return
	}
	log.Info("checkout session created", slog.String("session_id", session.ID))

	render.JSON(w, r, response.OKWithData(map[string]any{
		"session_id": session.ID,
		"url":        session.URL,
	}))
}
