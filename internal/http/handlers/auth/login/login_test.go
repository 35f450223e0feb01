package login

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/assistant-hub/internal/models"
	"github.com/magabrotheeeer/assistant-hub/internal/services/account"
)

// MockService реализует интерфейс login.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Login(ctx context.Context, req models.DummyLogin) (string, *models.Account, error) {
	args := m.Called(ctx, req)
	var acc *models.Account
	if args.Get(1) != nil {
		acc = args.Get(1).(*models.Account)
	}
	return args.String(0), acc, args.Error(2)
}

func TestLoginHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	acc := &models.Account{
		UID:          "uid-1",
		Email:        "user@example.com",
		Subscription: models.NewSubscription(10, time.Now()),
	}

	tests := []struct {
		name           string
		requestBody    any
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name:        "успешный вход",
			requestBody: models.DummyLogin{Email: "user@example.com", Password: "str0ng-password"},
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, mock.Anything).
					Return("token-123", acc, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "некорректный JSON",
			requestBody:    "not a json",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "отсутствует пароль",
			requestBody:    models.DummyLogin{Email: "user@example.com"},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "неверные учётные данные",
			requestBody: models.DummyLogin{Email: "user@example.com", Password: "wrong"},
			setupMock: func(m *MockService) {
				m.On("Login", mock.Anything, mock.Anything).
					Return("", nil, account.ErrInvalidCredentials)
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockService)
			tt.setupMock(mockSvc)

			handler := New(logger, mockSvc)

			var body []byte
			if str, ok := tt.requestBody.(string); ok {
				body = []byte(str)
			} else {
				body, _ = json.Marshal(tt.requestBody)
			}

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockSvc.AssertExpectations(t)
		})
	}
}
