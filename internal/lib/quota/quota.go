// Package quota содержит чистую логику учёта месячной квоты запросов:
// решение о допуске запроса и перенос счётчика на новый календарный месяц.
// Функции не имеют побочных эффектов, запись результата — забота вызывающего.
package quota

import (
	"time"

	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

// CanMakeRequest решает, допустим ли запрос при текущем состоянии подписки.
// Для бесплатного плана — пока счётчик меньше лимита. Для Pro каноничным
// признаком является только статус подписки, даты периода не учитываются.
func CanMakeRequest(sub models.Subscription) bool {
	if sub.Plan == models.PlanFree {
		return sub.Usage.RequestsThisMonth < sub.Usage.RequestsLimit
	}
	return sub.Status == models.StatusActive
}

// HasActiveSubscription сообщает, есть ли у аккаунта действующая
// Pro-подписка. Каноничное определение — по плану и статусу.
func HasActiveSubscription(sub models.Subscription) bool {
	return sub.Plan == models.PlanPro && sub.Status == models.StatusActive
}

// HasReachedLimit сообщает, исчерпан ли месячный лимит счётчика.
func HasReachedLimit(u models.Usage) bool {
	return u.RequestsThisMonth >= u.RequestsLimit
}

// Remaining возвращает остаток квоты, не опускаясь ниже нуля.
func Remaining(u models.Usage) int {
	r := u.RequestsLimit - u.RequestsThisMonth
	if r < 0 {
		return 0
	}
	return r
}

// SameMonth сравнивает пары (год, месяц) двух дат в UTC.
// Сравнение именно календарное: длина месяца роли не играет.
func SameMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// Next возвращает состояние счётчика после одного успешного запроса.
// Если now попадает в другой календарный месяц, чем дата последнего сброса,
// счётчик начинается заново с 1 и дата сброса переносится на now,
// иначе счётчик увеличивается на единицу.
func Next(u models.Usage, now time.Time) models.Usage {
	if !SameMonth(u.LastResetDate, now) {
		u.RequestsThisMonth = 1
		u.LastResetDate = now
		return u
	}
	u.RequestsThisMonth++
	return u
}

// Stats собирает снимок использования для ответа API.
func Stats(sub models.Subscription) models.UsageStats {
	return models.UsageStats{
		CurrentUsage:    sub.Usage.RequestsThisMonth,
		Limit:           sub.Usage.RequestsLimit,
		Remaining:       Remaining(sub.Usage),
		Plan:            sub.Plan,
		Status:          sub.Status,
		HasReachedLimit: HasReachedLimit(sub.Usage),
		CanMakeRequest:  CanMakeRequest(sub),
	}
}
