// Package models содержит доменные структуры приложения: аккаунт пользователя
// со встроенной подпиской и счётчиком использования, а также вспомогательные
// типы для приёма данных из JSON-запросов.
package models

import (
	"strings"
	"time"
)

// Возможные тарифные планы аккаунта.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Возможные статусы подписки.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusCancelled = "cancelled"
	StatusPastDue   = "past_due"
)

// Usage хранит месячный счётчик запросов аккаунта.
type Usage struct {
	RequestsThisMonth int       `json:"requestsThisMonth"` // Количество запросов в текущем месяце
	RequestsLimit     int       `json:"requestsLimit"`     // Лимит запросов на месяц
	LastResetDate     time.Time `json:"lastResetDate"`     // Дата последнего сброса счётчика
}

// Subscription представляет встроенную запись подписки аккаунта.
// У аккаунта всегда ровно одна подписка: создаётся при регистрации
// со значениями по умолчанию и далее только мутируется.
type Subscription struct {
	Plan                   string     `json:"plan"`   // Тарифный план: free или pro
	Status                 string     `json:"status"` // Статус: active, inactive, cancelled, past_due
	BillingCustomerRef     *string    `json:"billingCustomerRef,omitempty"`
	BillingSubscriptionRef *string    `json:"billingSubscriptionRef,omitempty"`
	CurrentPeriodStart     *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd       *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd      bool       `json:"cancelAtPeriodEnd"`
	Usage                  Usage      `json:"usage"`
}

// Account представляет зарегистрированного пользователя сервиса.
type Account struct {
	UID           string       `json:"uid"`   // Уникальный идентификатор аккаунта
	Email         string       `json:"email"` // Электронная почта (уникальная, в нижнем регистре)
	Name          string       `json:"name"`  // Отображаемое имя
	PasswordHash  string       `json:"-"`     // Хэш пароля, не сериализуется
	EmailVerified bool         `json:"emailVerified"`
	Subscription  Subscription `json:"subscription"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// UsageStats снимок использования квоты, прикладываемый к ответам API.
type UsageStats struct {
	CurrentUsage    int    `json:"currentUsage"`
	Limit           int    `json:"limit"`
	Remaining       int    `json:"remaining"`
	Plan            string `json:"plan"`
	Status          string `json:"status"`
	HasReachedLimit bool   `json:"hasReachedLimit"`
	CanMakeRequest  bool   `json:"canMakeRequest"`
}

// DeniedSubscription описывает состояние подписки в ответе об отказе,
// чтобы клиент мог показать предложение перейти на Pro.
type DeniedSubscription struct {
	Plan             string     `json:"plan"`
	Status           string     `json:"status"`
	Usage            Usage      `json:"usage"`
	CurrentPeriodEnd *time.Time `json:"currentPeriodEnd,omitempty"`
}

// NewSubscription возвращает подписку по умолчанию для нового аккаунта:
// бесплатный план, неактивный статус, нулевое использование.
func NewSubscription(freeLimit int, now time.Time) Subscription {
	return Subscription{
		Plan:   PlanFree,
		Status: StatusInactive,
		Usage: Usage{
			RequestsThisMonth: 0,
			RequestsLimit:     freeLimit,
			LastResetDate:     now,
		},
	}
}

// NormalizeEmail приводит адрес к каноническому виду для уникального индекса.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
type DummyRegister struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
}

// DummyLogin используется для приёма данных входа из JSON-запроса.
type DummyLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// DummyCheckout используется для приёма данных создания checkout-сессии.
// Тариф не принимается от клиента: он задан конфигурацией сервера.
type DummyCheckout struct {
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// DummyPortal используется для приёма данных создания portal-сессии.
type DummyPortal struct {
	ReturnURL string `json:"return_url" validate:"required,url"`
}

// DummyAssist используется для приёма данных запроса к ассистенту.
type DummyAssist struct {
	Input     string `json:"input" validate:"required"`
	MaxLength int    `json:"max_length" validate:"omitempty,gte=50,lte=1000"`
}
