// Package register реализует HTTP-обработчик регистрации аккаунта.
//
// Handler принимает JSON-запрос с email, паролем и именем, валидирует их,
// создаёт аккаунт с бесплатной подпиской и возвращает токен входа.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/assistant-hub/internal/http/response"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
	"github.com/magabrotheeeer/assistant-hub/internal/services/account"
)

// Service описывает интерфейс бизнес-логики регистрации.
type Service interface {
	Register(ctx context.Context, req models.DummyRegister) (string, *models.Account, error)
}

// Handler управляет HTTP-запросами на регистрацию аккаунта.
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
// @Summary Зарегистрировать аккаунт
// @Description Создает аккаунт с бесплатной подпиской и возвращает JWT токен.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.DummyRegister true "Данные регистрации"
// @Success 200 {object} map[string]any "Аккаунт создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или ошибка валидации"
// @Failure 409 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyRegister
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

	token, created, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			log.Info("email already registered", slog.String("email", models.NormalizeEmail(req.Email)))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("email already registered"))
			return
		}
		log.Error("registration failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to register account"))
		return
	}
	log.Info("account registered", slog.String("uid", created.UID))

	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":   token,
		"account": created,
	}))
}
