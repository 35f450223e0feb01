// Package billingprovider реализует границу с внешним биллинг-провайдером:
// создание checkout/portal-сессий, проверку подписи входящих событий
// и отображение «сырых» JSON-событий в закрытый набор типизированных
// вариантов. Дальше адаптера нетипизированные данные не проходят.
package billingprovider

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Типы событий жизненного цикла подписки, которые обрабатывает сервис.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentSucceeded    = "invoice.payment_succeeded"
	EventPaymentFailed       = "invoice.payment_failed"
)

// ErrUnhandledEvent возвращается для корректных, но не обрабатываемых
// сервисом типов событий. Такие события подтверждаются без обработки.
var ErrUnhandledEvent = errors.New("unhandled event type")

// Event помечает типизированные варианты событий биллинг-провайдера.
// Набор вариантов закрыт: Reconciler обрабатывает их исчерпывающим switch.
type Event interface {
	EventType() string
}

// CheckoutCompleted — покупатель завершил checkout-сессию.
// На этот момент аккаунт ещё не привязан к биллингу, поэтому событие
// несёт email покупателя для поиска аккаунта.
type CheckoutCompleted struct {
	CustomerRef   string
	CustomerEmail string
}

// SubscriptionCreated — провайдер создал подписку для покупателя.
type SubscriptionCreated struct {
	SubscriptionRef   string
	CustomerRef       string
	Status            string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}

// SubscriptionUpdated — изменились статус, границы периода или флаг отмены.
type SubscriptionUpdated struct {
	SubscriptionRef   string
	Status            string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}

// SubscriptionDeleted — подписка удалена у провайдера.
type SubscriptionDeleted struct {
	SubscriptionRef string
}

// PaymentSucceeded — очередной платёж по подписке прошёл.
type PaymentSucceeded struct {
	SubscriptionRef string
	PeriodStart     time.Time
	PeriodEnd       time.Time
}

// PaymentFailed — платёж не прошёл. SubscriptionRef может быть пустым,
// если счёт не связан с подпиской, — такие события игнорируются.
type PaymentFailed struct {
	SubscriptionRef string
}

// EventType реализует Event.
func (CheckoutCompleted) EventType() string   { return EventCheckoutCompleted }
func (SubscriptionCreated) EventType() string { return EventSubscriptionCreated }
func (SubscriptionUpdated) EventType() string { return EventSubscriptionUpdated }
func (SubscriptionDeleted) EventType() string { return EventSubscriptionDeleted }
func (PaymentSucceeded) EventType() string    { return EventPaymentSucceeded }
func (PaymentFailed) EventType() string       { return EventPaymentFailed }

// rawEvent — обёртка события провайдера как оно приходит по проводу.
type rawEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type rawCheckoutSession struct {
	Customer        string `json:"customer"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type rawSubscription struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

type rawInvoice struct {
	Subscription string `json:"subscription"`
	PeriodStart  int64  `json:"period_start"`
	PeriodEnd    int64  `json:"period_end"`
}

// ParseEvent отображает сырое JSON-событие в типизированный вариант.
// Для типов событий вне закрытого набора возвращает ErrUnhandledEvent.
func ParseEvent(body []byte) (Event, error) {
	const op = "billingprovider.ParseEvent"

	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch raw.Type {
	case EventCheckoutCompleted:
		var s rawCheckoutSession
		if err := json.Unmarshal(raw.Data.Object, &s); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return CheckoutCompleted{
			CustomerRef:   s.Customer,
			CustomerEmail: s.CustomerDetails.Email,
		}, nil

	case EventSubscriptionCreated, EventSubscriptionUpdated:
		var s rawSubscription
		if err := json.Unmarshal(raw.Data.Object, &s); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if raw.Type == EventSubscriptionCreated {
			return SubscriptionCreated{
				SubscriptionRef:   s.ID,
				CustomerRef:       s.Customer,
				Status:            s.Status,
				PeriodStart:       time.Unix(s.CurrentPeriodStart, 0).UTC(),
				PeriodEnd:         time.Unix(s.CurrentPeriodEnd, 0).UTC(),
				CancelAtPeriodEnd: s.CancelAtPeriodEnd,
			}, nil
		}
		return SubscriptionUpdated{
			SubscriptionRef:   s.ID,
			Status:            s.Status,
			PeriodStart:       time.Unix(s.CurrentPeriodStart, 0).UTC(),
			PeriodEnd:         time.Unix(s.CurrentPeriodEnd, 0).UTC(),
			CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		}, nil

	case EventSubscriptionDeleted:
		var s rawSubscription
		if err := json.Unmarshal(raw.Data.Object, &s); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return SubscriptionDeleted{SubscriptionRef: s.ID}, nil

	case EventPaymentSucceeded:
		var inv rawInvoice
		if err := json.Unmarshal(raw.Data.Object, &inv); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return PaymentSucceeded{
			SubscriptionRef: inv.Subscription,
			PeriodStart:     time.Unix(inv.PeriodStart, 0).UTC(),
			PeriodEnd:       time.Unix(inv.PeriodEnd, 0).UTC(),
		}, nil

	case EventPaymentFailed:
		var inv rawInvoice
		if err := json.Unmarshal(raw.Data.Object, &inv); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return PaymentFailed{SubscriptionRef: inv.Subscription}, nil

	default:
		return nil, fmt.Errorf("%s: %s: %w", op, raw.Type, ErrUnhandledEvent)
	}
}
