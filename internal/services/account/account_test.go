package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/assistant-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/assistant-hub/internal/models"
	"github.com/magabrotheeeer/assistant-hub/internal/storage"
)

type memRepo struct {
	byEmail map[string]*models.Account
	byUID   map[string]*models.Account
}

func newMemRepo() *memRepo {
	return &memRepo{
		byEmail: make(map[string]*models.Account),
		byUID:   make(map[string]*models.Account),
	}
}

func (m *memRepo) RegisterAccount(_ context.Context, account models.Account) error {
	m.byEmail[account.Email] = &account
	m.byUID[account.UID] = &account
	return nil
}

func (m *memRepo) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	account, ok := m.byEmail[email]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return account, nil
}

func (m *memRepo) GetAccountByUID(_ context.Context, uid string) (*models.Account, error) {
	account, ok := m.byUID[uid]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	return account, nil
}

func newService(repo Repository) *Service {
	maker := jwt.NewJWTMaker("test-secret", time.Hour)
	return New(repo, maker, 10)
}

func TestRegister_CreatesFreeSubscription(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)

	token, account, err := svc.Register(context.Background(), models.DummyRegister{
		Email:    "  User@Example.COM ",
		Password: "str0ng-password",
		Name:     "User",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	assert.Equal(t, "user@example.com", account.Email)
	assert.Equal(t, models.PlanFree, account.Subscription.Plan)
	assert.Equal(t, models.StatusInactive, account.Subscription.Status)
	assert.Equal(t, 0, account.Subscription.Usage.RequestsThisMonth)
	assert.Equal(t, 10, account.Subscription.Usage.RequestsLimit)
	assert.NotEqual(t, "str0ng-password", account.PasswordHash)
}

func TestRegister_RejectsDuplicateEmail(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)

	_, _, err := svc.Register(context.Background(), models.DummyRegister{
		Email: "user@example.com", Password: "password1", Name: "User",
	})
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), models.DummyRegister{
		Email: "USER@example.com", Password: "password2", Name: "Other",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)

	_, registered, err := svc.Register(context.Background(), models.DummyRegister{
		Email: "user@example.com", Password: "str0ng-password", Name: "User",
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid credentials", email: "user@example.com", password: "str0ng-password"},
		{name: "email is case insensitive", email: "USER@EXAMPLE.COM", password: "str0ng-password"},
		{name: "wrong password", email: "user@example.com", password: "wrong", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "ghost@example.com", password: "str0ng-password", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, account, err := svc.Login(context.Background(), models.DummyLogin{
				Email:    tt.email,
				Password: tt.password,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.Equal(t, registered.UID, account.UID)
		})
	}
}
