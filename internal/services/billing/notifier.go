package billing

import (
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/assistant-hub/internal/lib/rabbitmq"
)

// Notifier публикует уведомления о событиях подписки для внешних
// потребителей (отправка писем и т.п.).
type Notifier interface {
	PaymentFailed(email, subscriptionRef string) error
	SubscriptionCancelled(email, subscriptionRef string) error
}

// RabbitNotifier публикует уведомления в exchange "notifications".
type RabbitNotifier struct {
	ch *amqp.Channel
}

// NewRabbitNotifier создает новый экземпляр RabbitNotifier.
func NewRabbitNotifier(ch *amqp.Channel) *RabbitNotifier {
	return &RabbitNotifier{ch: ch}
}

type notification struct {
	Email           string `json:"email"`
	SubscriptionRef string `json:"subscription_ref"`
}

// PaymentFailed публикует уведомление о неудачном платеже.
func (n *RabbitNotifier) PaymentFailed(email, subscriptionRef string) error {
	return rabbitmq.PublishMessage(n.ch, "notifications", "payment_failed",
		notification{Email: email, SubscriptionRef: subscriptionRef})
}

// SubscriptionCancelled публикует уведомление об отмене подписки.
func (n *RabbitNotifier) SubscriptionCancelled(email, subscriptionRef string) error {
	return rabbitmq.PublishMessage(n.ch, "notifications", "subscription_cancelled",
		notification{Email: email, SubscriptionRef: subscriptionRef})
}
