// Package billing содержит бизнес-логику работы с биллинг-провайдером:
// создание checkout/portal-сессий, управление отменой подписки
// и согласование локального состояния с событиями провайдера.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/assistant-hub/internal/billingprovider"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

// ErrNoBillingAccount возвращается, когда у аккаунта нет ссылки
// на покупателя у провайдера, а операция её требует.
var ErrNoBillingAccount = errors.New("account has no billing customer")

// ErrNoSubscription возвращается, когда у аккаунта нет активной
// подписки у провайдера.
var ErrNoSubscription = errors.New("account has no provider subscription")

// ProviderClient описывает вызовы API биллинг-провайдера.
type ProviderClient interface {
	CreateCheckoutSession(ctx context.Context, priceRef, successURL, cancelURL, customerEmail string) (*billingprovider.Session, error)
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (*billingprovider.Session, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionRef string) error
	Reactivate(ctx context.Context, subscriptionRef string) error
}

// AccountReader загружает аккаунты для операций биллинга.
type AccountReader interface {
	GetAccountByUID(ctx context.Context, uid string) (*models.Account, error)
}

// Service реализует клиентские операции биллинга.
type Service struct {
	provider ProviderClient
	repo     AccountReader
	priceRef string
}

// New создает новый экземпляр Service.
func New(provider ProviderClient, repo AccountReader, priceRef string) *Service {
	return &Service{
		provider: provider,
		repo:     repo,
		priceRef: priceRef,
	}
}

// Checkout создаёт checkout-сессию перехода на Pro для аккаунта uid.
func (s *Service) Checkout(ctx context.Context, uid, successURL, cancelURL string) (*billingprovider.Session, error) {
	const op = "billing.Checkout"

	account, err := s.repo.GetAccountByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	session, err := s.provider.CreateCheckoutSession(ctx, s.priceRef, successURL, cancelURL, account.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// Portal создаёт сессию портала управления подпиской.
func (s *Service) Portal(ctx context.Context, uid, returnURL string) (*billingprovider.Session, error) {
	const op = "billing.Portal"

	account, err := s.repo.GetAccountByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if account.Subscription.BillingCustomerRef == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoBillingAccount)
	}
	session, err := s.provider.CreatePortalSession(ctx, *account.Subscription.BillingCustomerRef, returnURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// Cancel помечает подписку аккаунта на отмену в конце периода.
// Локальное состояние не меняется: его обновит событие
// customer.subscription.updated от провайдера.
func (s *Service) Cancel(ctx context.Context, uid string) error {
	const op = "billing.Cancel"

	account, err := s.repo.GetAccountByUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if account.Subscription.BillingSubscriptionRef == nil {
		return fmt.Errorf("%s: %w", op, ErrNoSubscription)
	}
	if err := s.provider.CancelAtPeriodEnd(ctx, *account.Subscription.BillingSubscriptionRef); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Reactivate снимает отложенную отмену подписки аккаунта.
func (s *Service) Reactivate(ctx context.Context, uid string) error {
	const op = "billing.Reactivate"

	account, err := s.repo.GetAccountByUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if account.Subscription.BillingSubscriptionRef == nil {
		return fmt.Errorf("%s: %w", op, ErrNoSubscription)
	}
	if err := s.provider.Reactivate(ctx, *account.Subscription.BillingSubscriptionRef); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
