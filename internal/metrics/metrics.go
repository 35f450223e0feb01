// Package metrics объявляет счётчики Prometheus для ключевых событий сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotaDenied считает отказы по квоте с разбивкой по плану.
	QuotaDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_hub_quota_denied_total",
		Help: "Количество запросов, отклонённых проверкой квоты.",
	}, []string{"plan"})

	// WebhookEvents считает обработанные события биллинга по типу и исходу.
	// outcome: applied, dropped, rejected, failed.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_hub_webhook_events_total",
		Help: "Количество событий биллинг-провайдера по типу и исходу.",
	}, []string{"type", "outcome"})

	// CompletionFailures считает ошибки внешнего провайдера генерации текста.
	CompletionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_hub_completion_failures_total",
		Help: "Количество неуспешных обращений к провайдеру генерации.",
	})

	// UsageIncrementFailures считает неуспешные записи инкремента счётчика.
	UsageIncrementFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_hub_usage_increment_failures_total",
		Help: "Количество запросов, завершившихся ошибкой фиксации использования.",
	})
)
