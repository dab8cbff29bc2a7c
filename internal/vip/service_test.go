package vip

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/lock"
	"github.com/Proton-105/himera-wallet/internal/notify"
	"github.com/Proton-105/himera-wallet/internal/wallet"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type fixture struct {
	engine *wallet.Engine
	svc    *Service
	store  *ledger.MemoryStore
	notes  *notify.Recorder
	clock  *clock
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()

	c := &clock{now: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)}
	store := ledger.NewMemoryStore()
	notes := &notify.Recorder{}
	engine := wallet.NewEngine(store, lock.NopLocker{}, notes, nil,
		wallet.WithClock(c.Now),
		wallet.WithRechargeRecorder(Recorder{}),
	)

	for _, u := range users {
		_, _, err := engine.Bootstrap(context.Background(), domain.User{UserID: u})
		require.NoError(t, err)
	}

	return &fixture{engine: engine, svc: NewService(engine, nil), store: store, notes: notes, clock: c}
}

func (f *fixture) deposit(t *testing.T, user string, amount int64) {
	t.Helper()
	_, err := f.engine.Deposit(context.Background(), user, decimal.NewFromInt(amount))
	require.NoError(t, err)
}

func TestEligibleLevel(t *testing.T) {
	tests := []struct {
		total int64
		want  int
	}{
		{0, 0},
		{499, 0},
		{500, 1},
		{1999, 1},
		{2000, 2},
		{5000, 3},
		{15000, 4},
		{50000, 5},
		{1000000, 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EligibleLevel(decimal.NewFromInt(tt.total)), "total %d", tt.total)
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, DaysRemaining(nil, now))

	end := now.Add(30*24*time.Hour - time.Minute)
	assert.Equal(t, 29, *DaysRemaining(&end, now))

	past := now.Add(-72 * time.Hour)
	assert.Equal(t, 0, *DaysRemaining(&past, now))
}

func TestDepositAccumulatesRecharge(t *testing.T) {
	f := newFixture(t, "u1")

	res, err := f.engine.Deposit(context.Background(), "u1", decimal.NewFromInt(300))
	require.NoError(t, err)
	assert.Equal(t, 0, res.EligibleVIPLevel)

	res, err = f.engine.Deposit(context.Background(), "u1", decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.Equal(t, 1, res.EligibleVIPLevel)

	view, err := f.svc.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, view.TotalRecharged.Equal(decimal.NewFromInt(550)))
	assert.Equal(t, 1, view.EligibleLevel)
	assert.Nil(t, view.DaysRemaining)
	assert.Equal(t, "Basic", view.CurrentLevelData.Name)
}

func TestSubscribeRequiresRecharge(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	f.deposit(t, "u1", 400)
	_, err := f.svc.Subscribe(ctx, "u1", 1)
	require.ErrorIs(t, err, apperrors.ErrInsufficientRecharge)

	f.deposit(t, "u1", 100)
	res, err := f.svc.Subscribe(ctx, "u1", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Status.Level)
	assert.True(t, res.Status.IsActive)
	require.NotNil(t, res.Status.SubscriptionEnd)
	assert.Equal(t, f.clock.now.Add(30*24*time.Hour), *res.Status.SubscriptionEnd)
	assert.NotEmpty(t, res.TransactionID)

	w, err := f.engine.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, w.Coins.Equal(decimal.NewFromInt(1000+500-99)))
	assert.Contains(t, f.notes.Keys("u1"), "vip_activated")
}

func TestSubscribeValidation(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	_, err := f.svc.Subscribe(ctx, "u1", 6)
	assert.ErrorIs(t, err, apperrors.ErrInvalidLevel)

	_, err = f.svc.Subscribe(ctx, "u1", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidLevel)

	// level 5 needs 50000 recharge and 1999 coins: recharge first, then burn the coins
	f.deposit(t, "u1", 50000)
	_, err = f.engine.Transfer(ctx, "u1", decimal.NewFromInt(50000), "coins", "stars")
	require.NoError(t, err)

	_, err = f.svc.Subscribe(ctx, "u1", 5)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
}

func TestSubscribeLevelZeroWritesNoTransaction(t *testing.T) {
	f := newFixture(t, "u1")

	res, err := f.svc.Subscribe(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, res.TransactionID)

	page, err := f.engine.Transactions(context.Background(), "u1", domain.TxVIPSubscription, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestResubscribeOverwritesWindow(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()
	f.deposit(t, "u1", 2000)

	_, err := f.svc.Subscribe(ctx, "u1", 1)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(10 * 24 * time.Hour)
	res, err := f.svc.Subscribe(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Status.Level)
	assert.Equal(t, f.clock.now, *res.Status.SubscriptionStart)
	assert.Equal(t, f.clock.now.Add(SubscriptionPeriod), *res.Status.SubscriptionEnd)
}

func TestCancelAndToggle(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	status, err := f.svc.Cancel(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, status.AutoRenew)

	on, err := f.svc.ToggleAutoRenew(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, on)

	off, err := f.svc.ToggleAutoRenew(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, off)

	_, err = f.svc.ToggleAutoRenew(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrVIPStatusNotFound)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t, "renew", "lapse", "broke")
	ctx := context.Background()

	for _, u := range []string{"renew", "lapse", "broke"} {
		f.deposit(t, u, 500)
		_, err := f.svc.Subscribe(ctx, u, 1)
		require.NoError(t, err)
	}

	_, err := f.svc.Cancel(ctx, "lapse")
	require.NoError(t, err)

	// leave "broke" with fewer coins than the fee
	_, err = f.engine.Transfer(ctx, "broke", decimal.NewFromInt(1350), "coins", "stars")
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(SubscriptionPeriod)
	report, err := f.svc.ExpireDue(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, ExpiryReport{Renewed: 1, Expired: 2}, report)

	active, err := f.svc.IsActive(ctx, "renew")
	require.NoError(t, err)
	assert.True(t, active)

	for _, u := range []string{"lapse", "broke"} {
		active, err := f.svc.IsActive(ctx, u)
		require.NoError(t, err)
		assert.False(t, active, u)
		assert.Contains(t, f.notes.Keys(u), "vip_expired")
	}

	renewals, err := f.engine.Transactions(ctx, "renew", domain.TxVIPRenewal, 10, 0)
	require.NoError(t, err)
	require.Len(t, renewals.Transactions, 1)
	assert.True(t, renewals.Transactions[0].Amount.Equal(decimal.NewFromInt(-99)))

	// nothing is due on a second pass
	report, err = f.svc.ExpireDue(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, ExpiryReport{}, report)
}
