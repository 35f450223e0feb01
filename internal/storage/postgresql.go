// Package storage реализует хранилище аккаунтов на основе PostgreSQL.
// Все мутации подписки и счётчика использования выполняются точечными
// условными UPDATE по отдельным полям, а не перезаписью всей записи:
// это позволяет конкурирующим инкрементам и событиям биллинга
// не терять изменения друг друга.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

// ErrAccountNotFound возвращается, когда аккаунт не найден по UID или email.
var ErrAccountNotFound = errors.New("account not found")

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с аккаунтами и их подписками.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

const accountColumns = `uid, email, name, password_hash, email_verified,
	      plan, status, billing_customer_ref, billing_subscription_ref,
	      current_period_start, current_period_end, cancel_at_period_end,
	      requests_this_month, requests_limit, last_reset_date, created_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	var customerRef, subscriptionRef sql.NullString
	var periodStart, periodEnd sql.NullTime

	err := row.Scan(&a.UID, &a.Email, &a.Name, &a.PasswordHash, &a.EmailVerified,
		&a.Subscription.Plan, &a.Subscription.Status, &customerRef, &subscriptionRef,
		&periodStart, &periodEnd, &a.Subscription.CancelAtPeriodEnd,
		&a.Subscription.Usage.RequestsThisMonth, &a.Subscription.Usage.RequestsLimit,
		&a.Subscription.Usage.LastResetDate, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	if customerRef.Valid {
		a.Subscription.BillingCustomerRef = &customerRef.String
	}
	if subscriptionRef.Valid {
		a.Subscription.BillingSubscriptionRef = &subscriptionRef.String
	}
	if periodStart.Valid {
		a.Subscription.CurrentPeriodStart = &periodStart.Time
	}
	if periodEnd.Valid {
		a.Subscription.CurrentPeriodEnd = &periodEnd.Time
	}
	return a, nil
}

// monthBounds возвращает границы календарного месяца даты now в UTC.
// SQL-предикаты на last_reset_date строятся на этих границах, поэтому
// решение «инкремент или сброс» в базе совпадает с чистой логикой quota.
func monthBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// ===== ACCOUNT METHODS =====

// RegisterAccount сохраняет новый аккаунт с подпиской по умолчанию.
func (s *Storage) RegisterAccount(ctx context.Context, a models.Account) error {
	const op = "storage.RegisterAccount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO accounts (uid, email, name, password_hash, email_verified,
			      plan, status, requests_this_month, requests_limit, last_reset_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.DB.ExecContext(ctx, query,
		a.UID, a.Email, a.Name, a.PasswordHash, a.EmailVerified,
		a.Subscription.Plan, a.Subscription.Status,
		a.Subscription.Usage.RequestsThisMonth, a.Subscription.Usage.RequestsLimit,
		a.Subscription.Usage.LastResetDate)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAccountByUID возвращает аккаунт по его UID.
func (s *Storage) GetAccountByUID(ctx context.Context, uid string) (*models.Account, error) {
	const op = "storage.GetAccountByUID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE uid = $1`
	a, err := scanAccount(s.DB.QueryRowContext(ctx, query, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// GetAccountByEmail возвращает аккаунт по нормализованному email.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.GetAccountByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	a, err := scanAccount(s.DB.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// GetAccountBySubscriptionRef возвращает аккаунт по ссылке на подписку
// у биллинг-провайдера.
func (s *Storage) GetAccountBySubscriptionRef(ctx context.Context, subscriptionRef string) (*models.Account, error) {
	const op = "storage.GetAccountBySubscriptionRef"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE billing_subscription_ref = $1`
	a, err := scanAccount(s.DB.QueryRowContext(ctx, query, subscriptionRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// ===== USAGE METHODS =====

// IncrementUsage атомарно увеличивает счётчик запросов на единицу,
// но только если дата последнего сброса лежит в том же календарном месяце,
// что и now. Возвращает новое значение счётчика и признак того,
// что строка была изменена. Инкремент выполняется на стороне базы,
// поэтому два конкурирующих вызова не теряют друг друга.
func (s *Storage) IncrementUsage(ctx context.Context, uid string, now time.Time) (int, bool, error) {
	const op = "storage.IncrementUsage"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	monthStart, monthEnd := monthBounds(now)
	query := `UPDATE accounts
			  SET requests_this_month = requests_this_month + 1
			  WHERE uid = $1
			    AND last_reset_date >= $2
			    AND last_reset_date < $3
			  RETURNING requests_this_month`
	var count int
	err := s.DB.QueryRowContext(ctx, query, uid, monthStart, monthEnd).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return count, true, nil
}

// ResetUsage атомарно начинает новый месяц: счётчик становится равным 1,
// дата сброса — now. Срабатывает только если последний сброс был
// в другом календарном месяце; если другой запрос уже успел выполнить
// сброс, условие не выполняется и вызывающий должен повторить инкремент.
func (s *Storage) ResetUsage(ctx context.Context, uid string, now time.Time) (int, bool, error) {
	const op = "storage.ResetUsage"
	select {
	case <-ctx.Done():
		return 0, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	monthStart, monthEnd := monthBounds(now)
	query := `UPDATE accounts
			  SET requests_this_month = 1,
			      last_reset_date = $4
			  WHERE uid = $1
			    AND (last_reset_date < $2 OR last_reset_date >= $3)
			  RETURNING requests_this_month`
	var count int
	err := s.DB.QueryRowContext(ctx, query, uid, monthStart, monthEnd, now.UTC()).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return count, true, nil
}

// ===== RECONCILIATION METHODS =====
// Каждый метод обновляет только поля своего события и возвращает количество
// затронутых строк: 0 означает, что аккаунт с такой ссылкой не найден.

// ActivateAfterCheckout привязывает аккаунт к покупателю биллинг-провайдера
// после завершения checkout-сессии и активирует Pro-план.
func (s *Storage) ActivateAfterCheckout(ctx context.Context, email, customerRef string) (int, error) {
	const op = "storage.ActivateAfterCheckout"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET billing_customer_ref = $2,
			      plan = $3,
			      status = $4
			  WHERE email = $1`
	result, err := s.DB.ExecContext(ctx, query,
		models.NormalizeEmail(email), customerRef, models.PlanPro, models.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ApplySubscriptionCreated записывает ссылку на подписку, границы периода
// и Pro-лимит. Ищет аккаунт по ссылке на покупателя, так как событие
// может прийти раньше, чем подписка будет известна локально.
func (s *Storage) ApplySubscriptionCreated(ctx context.Context, customerRef, subscriptionRef, status string,
	periodStart, periodEnd time.Time, cancelAtPeriodEnd bool, proLimit int) (int, error) {
	const op = "storage.ApplySubscriptionCreated"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET billing_subscription_ref = $2,
			      plan = $3,
			      status = $4,
			      current_period_start = $5,
			      current_period_end = $6,
			      cancel_at_period_end = $7,
			      requests_limit = $8
			  WHERE billing_customer_ref = $1`
	result, err := s.DB.ExecContext(ctx, query,
		customerRef, subscriptionRef, models.PlanPro, status,
		periodStart, periodEnd, cancelAtPeriodEnd, proLimit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ApplySubscriptionUpdated обновляет статус, границы периода и флаг отмены.
func (s *Storage) ApplySubscriptionUpdated(ctx context.Context, subscriptionRef, status string,
	periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) (int, error) {
	const op = "storage.ApplySubscriptionUpdated"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET status = $2,
			      current_period_start = $3,
			      current_period_end = $4,
			      cancel_at_period_end = $5
			  WHERE billing_subscription_ref = $1`
	result, err := s.DB.ExecContext(ctx, query,
		subscriptionRef, status, periodStart, periodEnd, cancelAtPeriodEnd)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ApplySubscriptionDeleted переводит аккаунт на бесплатный план со статусом
// cancelled и возвращает лимит бесплатного тарифа. Счётчик использования
// не трогается: его обнуляет только смена календарного месяца.
func (s *Storage) ApplySubscriptionDeleted(ctx context.Context, subscriptionRef string, freeLimit int) (int, error) {
	const op = "storage.ApplySubscriptionDeleted"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET status = $2,
			      plan = $3,
			      requests_limit = $4
			  WHERE billing_subscription_ref = $1`
	result, err := s.DB.ExecContext(ctx, query,
		subscriptionRef, models.StatusCancelled, models.PlanFree, freeLimit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ApplyPaymentSucceeded активирует подписку и обновляет границы периода.
func (s *Storage) ApplyPaymentSucceeded(ctx context.Context, subscriptionRef string,
	periodStart, periodEnd time.Time) (int, error) {
	const op = "storage.ApplyPaymentSucceeded"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET status = $2,
			      current_period_start = $3,
			      current_period_end = $4
			  WHERE billing_subscription_ref = $1`
	result, err := s.DB.ExecContext(ctx, query,
		subscriptionRef, models.StatusActive, periodStart, periodEnd)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ApplyPaymentFailed переводит подписку в статус past_due, план не меняется.
func (s *Storage) ApplyPaymentFailed(ctx context.Context, subscriptionRef string) (int, error) {
	const op = "storage.ApplyPaymentFailed"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET status = $2
			  WHERE billing_subscription_ref = $1`
	result, err := s.DB.ExecContext(ctx, query, subscriptionRef, models.StatusPastDue)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
