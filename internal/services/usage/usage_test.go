package usage

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/assistant-hub/internal/models"
)

type fakeRepo struct {
	mu      sync.Mutex
	account models.Account
}

func (f *fakeRepo) GetAccountByUID(_ context.Context, _ string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account := f.account
	return &account, nil
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.UTC().Date()
	by, bm, _ := b.UTC().Date()
	return ay == by && am == bm
}

func (f *fakeRepo) IncrementUsage(_ context.Context, _ string, now time.Time) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !sameMonth(f.account.Subscription.Usage.LastResetDate, now) {
		return 0, false, nil
	}
	f.account.Subscription.Usage.RequestsThisMonth++
	return f.account.Subscription.Usage.RequestsThisMonth, true, nil
}

func (f *fakeRepo) ResetUsage(_ context.Context, _ string, now time.Time) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sameMonth(f.account.Subscription.Usage.LastResetDate, now) {
		return 0, false, nil
	}
	f.account.Subscription.Usage.RequestsThisMonth = 1
	f.account.Subscription.Usage.LastResetDate = now
	return 1, true, nil
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string]*models.Account
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]*models.Account)}
}

func (f *fakeCache) Get(_ context.Context, key string, result any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.items[key]
	if !ok {
		return false, nil
	}
	*(result.(**models.Account)) = account
	return true, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value.(*models.Account)
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func freeAccount(used int, lastReset time.Time) models.Account {
	return models.Account{
		UID:   "uid-1",
		Email: "user@example.com",
		Subscription: models.Subscription{
			Plan:   models.PlanFree,
			Status: models.StatusInactive,
			Usage: models.Usage{
				RequestsThisMonth: used,
				RequestsLimit:     10,
				LastResetDate:     lastReset,
			},
		},
	}
}

func TestCheck_AllowsUnderLimit(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{account: freeAccount(3, now)}
	svc := New(repo, newFakeCache(), discardLogger())

	account, err := svc.Check(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 3, account.Subscription.Usage.RequestsThisMonth)
}

func TestCheck_DeniesAtLimit(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{account: freeAccount(10, now)}
	svc := New(repo, newFakeCache(), discardLogger())

	account, err := svc.Check(context.Background(), "uid-1")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	require.NotNil(t, account, "denial must still carry the account snapshot")
	assert.Equal(t, models.PlanFree, account.Subscription.Plan)
}

func TestRegister_IncrementsWithinMonth(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{account: freeAccount(3, now.Add(-24*time.Hour))}
	svc := New(repo, newFakeCache(), discardLogger())
	svc.now = func() time.Time { return now }

	account, err := svc.Check(context.Background(), "uid-1")
	require.NoError(t, err)

	stats, err := svc.Register(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.CurrentUsage)
	assert.Equal(t, 6, stats.Remaining)
}

func TestRegister_ResetsOnNewMonth(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 5, 0, 0, time.UTC)
	repo := &fakeRepo{account: freeAccount(10, time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC))}
	svc := New(repo, newFakeCache(), discardLogger())
	svc.now = func() time.Time { return now }

	account, err := repo.GetAccountByUID(context.Background(), "uid-1")
	require.NoError(t, err)

	stats, err := svc.Register(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CurrentUsage)
	assert.Equal(t, 9, stats.Remaining)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.True(t, sameMonth(repo.account.Subscription.Usage.LastResetDate, now))
}

// Пойманный месяц сменился между чтением аккаунта и записью инкремента:
// Register должен переключиться на сброс, а не потерять запрос.
func TestRegister_RetriesWhenMonthFlipsUnderneath(t *testing.T) {
	readAt := time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)
	writeAt := time.Date(2025, 7, 1, 0, 1, 0, 0, time.UTC)
	repo := &fakeRepo{account: freeAccount(7, readAt)}
	svc := New(repo, newFakeCache(), discardLogger())
	svc.now = func() time.Time { return writeAt }

	// Снимок прочитан в июне, запись идёт уже в июле.
	snapshot := freeAccount(7, readAt)

	stats, err := svc.Register(context.Background(), &snapshot)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CurrentUsage)
}

// N параллельных запросов дают ровно N инкрементов: условный UPDATE
// в хранилище исключает потерянные обновления.
func TestRegister_ConcurrentIncrementsCountEachRequest(t *testing.T) {
	const n = 50
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{account: freeAccount(0, now)}
	repo.account.Subscription.Usage.RequestsLimit = 1000
	svc := New(repo, newFakeCache(), discardLogger())
	svc.now = func() time.Time { return now }

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			account, err := svc.Check(context.Background(), "uid-1")
			assert.NoError(t, err)
			_, err = svc.Register(context.Background(), account)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, n, repo.account.Subscription.Usage.RequestsThisMonth)
}

func TestSnapshot_UsesCacheOnSecondRead(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	repo := &fakeRepo{account: freeAccount(4, now)}
	cache := newFakeCache()
	svc := New(repo, cache, discardLogger())

	_, stats, err := svc.Snapshot(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.CurrentUsage)

	// Изменение в хранилище не видно, пока жива кешированная копия.
	repo.mu.Lock()
	repo.account.Subscription.Usage.RequestsThisMonth = 9
	repo.mu.Unlock()

	_, stats, err = svc.Snapshot(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.CurrentUsage)
}
