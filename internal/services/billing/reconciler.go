package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/assistant-hub/internal/billingprovider"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/metrics"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

// ReconcilerRepository определяет операции хранилища для применения
// событий провайдера. Каждая операция обновляет только поля, которыми
// владеет её тип события, и возвращает число затронутых строк.
type ReconcilerRepository interface {
	ActivateAfterCheckout(ctx context.Context, email, customerRef string) (int, error)
	ApplySubscriptionCreated(ctx context.Context, customerRef, subscriptionRef, status string,
		periodStart, periodEnd time.Time, cancelAtPeriodEnd bool, proLimit int) (int, error)
	ApplySubscriptionUpdated(ctx context.Context, subscriptionRef, status string,
		periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) (int, error)
	ApplySubscriptionDeleted(ctx context.Context, subscriptionRef string, freeLimit int) (int, error)
	ApplyPaymentSucceeded(ctx context.Context, subscriptionRef string, periodStart, periodEnd time.Time) (int, error)
	ApplyPaymentFailed(ctx context.Context, subscriptionRef string) (int, error)
	GetAccountBySubscriptionRef(ctx context.Context, subscriptionRef string) (*models.Account, error)
}

// Invalidator сбрасывает кешированные снимки аккаунтов.
type Invalidator interface {
	Invalidate(ctx context.Context, key string) error
}

// Reconciler приводит локальное состояние подписок к событиям провайдера.
// Применение идемпотентно: повторное событие записывает те же значения.
// Событие для неизвестного аккаунта или подписки фиксируется в логе
// и отбрасывается без ошибки, чтобы провайдер не повторял доставку вечно.
type Reconciler struct {
	repo      ReconcilerRepository
	notifier  Notifier
	cache     Invalidator
	log       *slog.Logger
	freeLimit int
	proLimit  int
}

// NewReconciler создает новый экземпляр Reconciler.
func NewReconciler(repo ReconcilerRepository, notifier Notifier, cache Invalidator,
	log *slog.Logger, freeLimit, proLimit int) *Reconciler {
	return &Reconciler{
		repo:      repo,
		notifier:  notifier,
		cache:     cache,
		log:       log,
		freeLimit: freeLimit,
		proLimit:  proLimit,
	}
}

// Apply применяет одно проверенное событие провайдера.
// Ошибка означает сбой хранилища; бизнес-исходы (неизвестная цель,
// событие без ссылки на подписку) ошибками не являются.
func (r *Reconciler) Apply(ctx context.Context, ev billingprovider.Event) error {
	const op = "billing.Apply"

	var rows int
	var err error

	switch e := ev.(type) {
	case billingprovider.CheckoutCompleted:
		rows, err = r.repo.ActivateAfterCheckout(ctx, models.NormalizeEmail(e.CustomerEmail), e.CustomerRef)

	case billingprovider.SubscriptionCreated:
		rows, err = r.repo.ApplySubscriptionCreated(ctx, e.CustomerRef, e.SubscriptionRef,
			e.Status, e.PeriodStart, e.PeriodEnd, e.CancelAtPeriodEnd, r.proLimit)

	case billingprovider.SubscriptionUpdated:
		rows, err = r.repo.ApplySubscriptionUpdated(ctx, e.SubscriptionRef,
			e.Status, e.PeriodStart, e.PeriodEnd, e.CancelAtPeriodEnd)

	case billingprovider.SubscriptionDeleted:
		rows, err = r.repo.ApplySubscriptionDeleted(ctx, e.SubscriptionRef, r.freeLimit)
		if err == nil && rows > 0 {
			r.notify(ctx, e.SubscriptionRef, r.notifier.SubscriptionCancelled)
		}

	case billingprovider.PaymentSucceeded:
		if e.SubscriptionRef == "" {
			// Счёт не связан с подпиской (разовый платёж).
			r.drop(ev, "invoice has no subscription ref")
			return nil
		}
		rows, err = r.repo.ApplyPaymentSucceeded(ctx, e.SubscriptionRef, e.PeriodStart, e.PeriodEnd)

	case billingprovider.PaymentFailed:
		if e.SubscriptionRef == "" {
			r.drop(ev, "invoice has no subscription ref")
			return nil
		}
		rows, err = r.repo.ApplyPaymentFailed(ctx, e.SubscriptionRef)
		if err == nil && rows > 0 {
			r.notify(ctx, e.SubscriptionRef, r.notifier.PaymentFailed)
		}

	default:
		// ParseEvent отдаёт только перечисленные варианты.
		r.drop(ev, "no handler for event")
		return nil
	}

	if err != nil {
		metrics.WebhookEvents.WithLabelValues(ev.EventType(), "failed").Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		r.drop(ev, "no matching account")
		return nil
	}

	metrics.WebhookEvents.WithLabelValues(ev.EventType(), "applied").Inc()
	r.invalidate(ctx, ev)
	r.log.Info("billing event applied",
		slog.String("type", ev.EventType()),
		slog.Int("accounts", rows))
	return nil
}

func (r *Reconciler) drop(ev billingprovider.Event, reason string) {
	metrics.WebhookEvents.WithLabelValues(ev.EventType(), "dropped").Inc()
	r.log.Warn("billing event dropped",
		slog.String("type", ev.EventType()),
		slog.String("reason", reason))
}

// notify шлёт уведомление владельцу подписки. Сбой уведомления
// не откатывает применение события.
func (r *Reconciler) notify(ctx context.Context, subscriptionRef string, send func(email, ref string) error) {
	account, err := r.repo.GetAccountBySubscriptionRef(ctx, subscriptionRef)
	if err != nil {
		r.log.Warn("failed to resolve account for notification", sl.Err(err))
		return
	}
	if err := send(account.Email, subscriptionRef); err != nil {
		r.log.Warn("failed to publish notification", sl.Err(err))
	}
}

// invalidate сбрасывает кешированный снимок затронутого аккаунта.
// Неудача не критична: запись в кеше живёт недолго.
func (r *Reconciler) invalidate(ctx context.Context, ev billingprovider.Event) {
	var subscriptionRef string
	switch e := ev.(type) {
	case billingprovider.SubscriptionCreated:
		subscriptionRef = e.SubscriptionRef
	case billingprovider.SubscriptionUpdated:
		subscriptionRef = e.SubscriptionRef
	case billingprovider.SubscriptionDeleted:
		subscriptionRef = e.SubscriptionRef
	case billingprovider.PaymentSucceeded:
		subscriptionRef = e.SubscriptionRef
	case billingprovider.PaymentFailed:
		subscriptionRef = e.SubscriptionRef
	default:
		return
	}

	account, err := r.repo.GetAccountBySubscriptionRef(ctx, subscriptionRef)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Warn("failed to resolve account for cache invalidation", sl.Err(err))
		}
		return
	}
	if err := r.cache.Invalidate(ctx, fmt.Sprintf("account:%s", account.UID)); err != nil {
		r.log.Warn("failed to invalidate account cache", sl.Err(err))
	}
}
