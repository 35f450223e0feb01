// Package account содержит бизнес-логику регистрации и входа.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/assistant-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/assistant-hub/internal/lib/password"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
	"github.com/magabrotheeeer/assistant-hub/internal/storage"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
// Для клиента неразличимо, какой из двух элементов неверен.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailTaken возвращается при попытке регистрации на занятый email.
var ErrEmailTaken = errors.New("email already registered")

// Repository определяет операции хранилища, нужные сервису аккаунтов.
type Repository interface {
	RegisterAccount(ctx context.Context, account models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByUID(ctx context.Context, uid string) (*models.Account, error)
}

// Service реализует регистрацию, вход и чтение профиля.
type Service struct {
	repo      Repository
	maker     jwt.Maker
	freeLimit int
	now       func() time.Time
}

// New создает новый экземпляр Service.
func New(repo Repository, maker jwt.Maker, freeLimit int) *Service {
	return &Service{
		repo:      repo,
		maker:     maker,
		freeLimit: freeLimit,
		now:       time.Now,
	}
}

// Register создаёт аккаунт с бесплатной подпиской и возвращает токен входа.
func (s *Service) Register(ctx context.Context, req models.DummyRegister) (string, *models.Account, error) {
	const op = "account.Register"

	email := models.NormalizeEmail(req.Email)
	if _, err := s.repo.GetAccountByEmail(ctx, email); err == nil {
		return "", nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	} else if !errors.Is(err, storage.ErrAccountNotFound) {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := password.GetHash(req.Password)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	account := models.Account{
		UID:          uuid.New().String(),
		Email:        email,
		Name:         req.Name,
		PasswordHash: hash,
		Subscription: models.NewSubscription(s.freeLimit, s.now()),
		CreatedAt:    s.now(),
	}
	if err := s.repo.RegisterAccount(ctx, account); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.maker.GenerateToken(account.UID, account.Email)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, &account, nil
}

// Login проверяет учётные данные и возвращает токен входа.
func (s *Service) Login(ctx context.Context, req models.DummyLogin) (string, *models.Account, error) {
	const op = "account.Login"

	account, err := s.repo.GetAccountByEmail(ctx, models.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(account.PasswordHash, req.Password); err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.maker.GenerateToken(account.UID, account.Email)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, account, nil
}

// Profile возвращает аккаунт по UID из токена.
func (s *Service) Profile(ctx context.Context, uid string) (*models.Account, error) {
	return s.repo.GetAccountByUID(ctx, uid)
}
