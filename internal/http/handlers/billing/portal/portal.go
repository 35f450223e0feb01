// Package portal реализует HTTP-обработчик создания сессии портала
// управления подпиской у биллинг-провайдера.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
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
	"github.com/magabrotheeeer/assistant-hub/internal/services/billing"
)

// Service описывает интерфейс бизнес-логики создания portal-сессии.
type Service interface {
	Portal(ctx context.Context, uid, returnURL string) (*billingprovider.Session, error)
}

// Handler управляет HTTP-запросами на создание portal-сессии.
type Handler struct {
	log       *slog.Logger
	service   Service
	validate  *validator.Validate
	returnURL string
}

// New создает новый Handler. returnURL используется, когда клиент
// не передал свой адрес возврата.
func New(log *slog.Logger, service Service, returnURL string) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		validate:  validator.New(),
		returnURL: returnURL,
	}
}

// ServeHTTP godoc
// @Summary Создать сессию портала подписки
// @Description Создает у биллинг-провайдера сессию портала управления подпиской и возвращает её URL.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body models.DummyPortal false "URL возврата из портала"
// @Success 200 {object} map[string]any "Сессия создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Аккаунт не привязан к биллингу"
// @Failure 502 {object} response.ErrorResponse "Биллинг-провайдер недоступен"
// @Security BearerAuth
// @Router /billing/portal [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.portal"
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

	// Тело необязательное: при пустом используется адрес из конфигурации.
	returnURL := h.returnURL
	var req models.DummyPortal
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if req.ReturnURL != "" {
		if err := h.validate.Struct(req); err != nil {
			log.Error("validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
			return
		}
		returnURL = req.ReturnURL
	}

	session, err := h.service.Portal(r.Context(), uid, returnURL)
	if err != nil {
		if errors.Is(err, billing.ErrNoBillingAccount) {
			log.Info("account has no billing customer", slog.String("uid", uid))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("no billing account, complete checkout first"))
			return
		}
		log.Error("failed to create portal session", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("failed to create portal session"))
		return
	}
	log.Info("portal session created", slog.String("session_id", session.ID))

	render.JSON(w, r, response.OKWithData(map[string]any{
		"session_id": session.ID,
		"url":        session.URL,
	}))
}
