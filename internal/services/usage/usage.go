// Package usage содержит бизнес-логику проверки квоты и фиксации
// использования. Решение о допуске принимает чистый пакет quota,
// запись инкремента выполняется атомарными условными операциями хранилища.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/assistant-hub/internal/lib/quota"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/sl"
	"github.com/magabrotheeeer/assistant-hub/internal/metrics"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

// ErrQuotaExceeded возвращается, когда запрос не проходит проверку квоты.
// Для системы это ожидаемый исход, а не сбой.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ErrUsageNotPersisted возвращается, когда инкремент счётчика не удалось
// надёжно записать. Запрос в этом случае должен завершиться ошибкой,
// даже если внешний провайдер уже успел сгенерировать текст: молчаливый
// недоучёт позволил бы превышать квоту.
var ErrUsageNotPersisted = errors.New("usage increment not persisted")

// AccountRepository определяет операции хранилища, нужные учёту квоты.
type AccountRepository interface {
	// GetAccountByUID возвращает аккаунт по UID.
	GetAccountByUID(ctx context.Context, uid string) (*models.Account, error)
	// IncrementUsage атомарно увеличивает счётчик в пределах текущего месяца.
	IncrementUsage(ctx context.Context, uid string, now time.Time) (int, bool, error)
	// ResetUsage атомарно начинает новый месяц со счётчиком 1.
	ResetUsage(ctx context.Context, uid string, now time.Time) (int, bool, error)
}

// Cache описывает методы для кэширования снимков аккаунта.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Service реализует учёт квоты поверх хранилища аккаунтов.
type Service struct {
	repo  AccountRepository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// New создает новый экземпляр Service.
func New(repo AccountRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

func cacheKey(uid string) string {
	return fmt.Sprintf("account:%s", uid)
}

// Check загружает аккаунт и проверяет допустимость запроса.
// Чтение идёт напрямую из хранилища: проверка доступа всегда работает
// с актуальным состоянием, кеш обслуживает только витринные чтения.
// При исчерпанной квоте возвращает аккаунт вместе с ErrQuotaExceeded,
// чтобы вызывающий мог отдать клиенту снимок подписки.
func (s *Service) Check(ctx context.Context, uid string) (*models.Account, error) {
	account, err := s.repo.GetAccountByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !quota.CanMakeRequest(account.Subscription) {
		metrics.QuotaDenied.WithLabelValues(account.Subscription.Plan).Inc()
		return account, ErrQuotaExceeded
	}
	return account, nil
}

// Register фиксирует один успешный запрос аккаунта и возвращает свежий
// снимок использования. Выбор между инкрементом и сбросом месяца делается
// по дате последнего сброса, но окончательное решение принимает условие
// в самом UPDATE: если месяц сменился между чтением и записью или другой
// запрос уже выполнил сброс, операция перезапускается в другой ветке.
func (s *Service) Register(ctx context.Context, account *models.Account) (models.UsageStats, error) {
	const op = "usage.Register"
	now := s.now()

	var count int
	var applied bool
	var err error

	if quota.SameMonth(account.Subscription.Usage.LastResetDate, now) {
		count, applied, err = s.repo.IncrementUsage(ctx, account.UID, now)
		if err == nil && !applied {
			// Месяц сменился под нами: начинаем новый.
			count, applied, err = s.repo.ResetUsage(ctx, account.UID, now)
		}
	} else {
		count, applied, err = s.repo.ResetUsage(ctx, account.UID, now)
		if err == nil && !applied {
			// Сброс уже сделал конкурирующий запрос.
			count, applied, err = s.repo.IncrementUsage(ctx, account.UID, now)
		}
	}
	if err != nil {
		metrics.UsageIncrementFailures.Inc()
		return models.UsageStats{}, fmt.Errorf("%s: %w", op, err)
	}
	if !applied {
		metrics.UsageIncrementFailures.Inc()
		return models.UsageStats{}, fmt.Errorf("%s: %w", op, ErrUsageNotPersisted)
	}

	if err := s.cache.Invalidate(ctx, cacheKey(account.UID)); err != nil {
		s.log.Warn("failed to invalidate account cache", slog.String("uid", account.UID), sl.Err(err))
	}

	sub := account.Subscription
	sub.Usage.RequestsThisMonth = count
	if !quota.SameMonth(sub.Usage.LastResetDate, now) {
		sub.Usage.LastResetDate = now
	}
	return quota.Stats(sub), nil
}

// Snapshot возвращает снимок использования для витринных чтений,
// допускающих небольшое устаревание; использует кеш.
func (s *Service) Snapshot(ctx context.Context, uid string) (*models.Account, models.UsageStats, error) {
	var account *models.Account
	found, err := s.cache.Get(ctx, cacheKey(uid), &account)
	if err != nil {
		s.log.Warn("failed to read account cache", slog.String("uid", uid), sl.Err(err))
	}
	if !found || account == nil {
		account, err = s.repo.GetAccountByUID(ctx, uid)
		if err != nil {
			return nil, models.UsageStats{}, err
		}
		if err := s.cache.Set(ctx, cacheKey(uid), account, time.Minute); err != nil {
			s.log.Warn("failed to cache account", slog.String("uid", uid), sl.Err(err))
		}
	}
	return account, quota.Stats(account.Subscription), nil
}
