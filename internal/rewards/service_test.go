package rewards

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

func (c *clock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	engine *wallet.Engine
	svc    *Service
	store  *ledger.MemoryStore
	notes  *notify.Recorder
	clock  *clock
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()

	c := &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := ledger.NewMemoryStore()
	notes := &notify.Recorder{}
	engine := wallet.NewEngine(store, lock.NopLocker{}, notes, nil, wallet.WithClock(c.Now))

	for _, u := range users {
		_, _, err := engine.Bootstrap(context.Background(), domain.User{UserID: u})
		require.NoError(t, err)
	}

	return &fixture{engine: engine, svc: NewService(engine, nil), store: store, notes: notes, clock: c}
}

func (f *fixture) track(t *testing.T, user string, minutes int) *TrackResult {
	t.Helper()
	var res *TrackResult
	for i := 0; i < minutes; i++ {
		var err error
		res, err = f.svc.TrackActivity(context.Background(), user)
		require.NoError(t, err)
	}
	return res
}

func (f *fixture) wallet(t *testing.T, user string) *domain.Wallet {
	t.Helper()
	w, err := f.engine.Get(context.Background(), user)
	require.NoError(t, err)
	return w
}

func TestActivityAvailable(t *testing.T) {
	cfg := Activity()
	tests := []struct {
		name    string
		minutes int
		claimed int
		want    int
	}{
		{"nothing yet", 14, 0, 0},
		{"one block", 15, 0, 1},
		{"three blocks", 45, 0, 3},
		{"partially claimed", 45, 2, 1},
		{"capped by daily max", 200, 0, 6},
		{"cap reached", 200, 6, 0},
		{"claimed more than earned", 10, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.Available(tt.minutes, tt.claimed))
		})
	}
}

func TestActivityProgress(t *testing.T) {
	towards, percent := Activity().Progress(21)
	assert.Equal(t, 6, towards)
	assert.InDelta(t, 40.0, percent, 0.0001)
}

func TestHostReward(t *testing.T) {
	rates := Hosting()
	tests := []struct {
		name     string
		hostType domain.HostType
		welcome  bool
		minutes  int
		want     int64
	}{
		{"video welcome below minimum", domain.HostVideo, true, 59, 0},
		{"video welcome one hour", domain.HostVideo, true, 60, 2000},
		{"video welcome partial hour", domain.HostVideo, true, 125, 4000},
		{"video normal", domain.HostVideo, false, 180, 3000},
		{"video normal below minimum", domain.HostVideo, false, 30, 0},
		{"audio welcome below minimum", domain.HostAudio, true, 119, 0},
		{"audio welcome two blocks", domain.HostAudio, true, 240, 6000},
		{"audio normal one hour", domain.HostAudio, false, 60, 500},
		{"audio normal short", domain.HostAudio, false, 59, 0},
		{"audio normal long", domain.HostAudio, false, 150, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rates.Reward(tt.hostType, tt.welcome, tt.minutes)
			assert.True(t, decimal.NewFromInt(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestStreak(t *testing.T) {
	sessions := []domain.ActivitySession{
		{Date: "2026-03-05", RewardsClaimed: 2},
		{Date: "2026-03-04", RewardsClaimed: 1},
		{Date: "2026-03-03", RewardsClaimed: 0},
		{Date: "2026-03-02", RewardsClaimed: 4},
	}
	assert.Equal(t, 2, Streak(sessions))
	assert.Equal(t, 0, Streak(nil))
}

func TestClaimActivityReward(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	res := f.track(t, "u1", 45)
	assert.Equal(t, 45, res.TotalActiveMinutes)
	assert.Equal(t, 3, res.RewardsAvailable)
	assert.True(t, res.CanClaim)

	first, err := f.svc.ClaimActivityReward(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(250).Equal(first.RewardAmount))
	assert.True(t, first.IsFirstReward)
	assert.Equal(t, 1, first.RewardsClaimedToday)

	for i := 0; i < 2; i++ {
		next, err := f.svc.ClaimActivityReward(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(200).Equal(next.RewardAmount))
		assert.False(t, next.IsFirstReward)
	}

	_, err = f.svc.ClaimActivityReward(ctx, "u1")
	require.ErrorIs(t, err, apperrors.ErrNoRewardsAvailable)

	w := f.wallet(t, "u1")
	assert.True(t, decimal.NewFromInt(1650).Equal(w.Coins), "coins %s", w.Coins)
	assert.Equal(t, []string{"welcome", "activity_reward", "activity_reward", "activity_reward"}, f.notes.Keys("u1"))
}

func TestClaimActivityRewardDailyCap(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	f.track(t, "u1", 120)
	for i := 0; i < 6; i++ {
		_, err := f.svc.ClaimActivityReward(ctx, "u1")
		require.NoError(t, err)
	}

	_, err := f.svc.ClaimActivityReward(ctx, "u1")
	require.ErrorIs(t, err, apperrors.ErrNoRewardsAvailable)
	assert.Contains(t, err.Error(), "daily limit")
}

func TestClaimActivityRewardWithoutSession(t *testing.T) {
	f := newFixture(t, "u1")

	_, err := f.svc.ClaimActivityReward(context.Background(), "u1")
	require.ErrorIs(t, err, apperrors.ErrNoActivityToday)
}

func TestActivityStatusCreatesSession(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	status, err := f.svc.ActivityStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", status.Today)
	assert.Zero(t, status.TotalActiveMinutes)
	assert.Equal(t, 15, status.MinutesRequired)

	f.track(t, "u1", 20)
	status, err = f.svc.ActivityStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 20, status.TotalActiveMinutes)
	assert.Equal(t, 5, status.MinutesTowardsNext)
	assert.Equal(t, 1, status.RewardsAvailable)
}

func TestDailySummaryStreak(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	for day := 0; day < 3; day++ {
		f.track(t, "u1", 15)
		_, err := f.svc.ClaimActivityReward(ctx, "u1")
		require.NoError(t, err)
		if day < 2 {
			f.clock.advance(24 * time.Hour)
		}
	}

	summary, err := f.svc.DailySummary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-04", summary.Today)
	assert.Equal(t, 3, summary.ActivityStreak)
	assert.Equal(t, 1, summary.RewardsToday)
	assert.True(t, decimal.NewFromInt(250).Equal(summary.TotalEarnedToday))
	assert.Len(t, summary.WeeklyActivities, 3)
}

func TestMessagingRewardCap(t *testing.T) {
	f := newFixture(t, "u1")
	ctx := context.Background()

	for i := 1; i <= 50; i++ {
		claim, err := f.svc.ClaimMessagingReward(ctx, "u1")
		require.NoError(t, err, "claim %d", i)
		assert.Equal(t, i, claim.RewardsClaimedToday)
	}

	_, err := f.svc.ClaimMessagingReward(ctx, "u1")
	require.ErrorIs(t, err, apperrors.ErrDailyLimitReached)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodePrecondition, appErr.Code)

	status, err := f.svc.MessagingStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, status.RewardsClaimedToday)
	assert.False(t, status.CanClaimMore)
	assert.True(t, decimal.NewFromInt(1000).Equal(status.TotalEarnedToday))

	w := f.wallet(t, "u1")
	assert.True(t, decimal.NewFromInt(2000).Equal(w.Coins))

	// a new UTC day resets the counter
	f.clock.advance(24 * time.Hour)
	_, err = f.svc.ClaimMessagingReward(ctx, "u1")
	require.NoError(t, err)
}

func TestHostSessionLifecycle(t *testing.T) {
	f := newFixture(t, "host")
	ctx := context.Background()

	_, err := f.svc.StartHostSession(ctx, "host", "radio")
	require.ErrorIs(t, err, apperrors.ErrInvalidHostType)

	_, err = f.svc.EndHostSession(ctx, "host")
	require.ErrorIs(t, err, apperrors.ErrNoActiveSession)

	session, err := f.svc.StartHostSession(ctx, "host", domain.HostVideo)
	require.NoError(t, err)
	assert.True(t, session.IsWelcome)

	_, err = f.svc.StartHostSession(ctx, "host", domain.HostAudio)
	require.ErrorIs(t, err, apperrors.ErrSessionAlreadyActive)

	active, err := f.svc.ActiveHostSession(ctx, "host")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, session.SessionID, active.SessionID)

	f.clock.advance(125 * time.Minute)
	res, err := f.svc.EndHostSession(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, 125, res.Session.DurationMinutes)
	assert.True(t, decimal.NewFromInt(4000).Equal(res.StarsEarned))
	assert.NotEmpty(t, res.TransactionID)

	active, err = f.svc.ActiveHostSession(ctx, "host")
	require.NoError(t, err)
	assert.Nil(t, active)

	w := f.wallet(t, "host")
	assert.True(t, decimal.NewFromInt(4000).Equal(w.Stars))
}

func TestHostSessionAfterWelcomePeriod(t *testing.T) {
	f := newFixture(t, "host")
	ctx := context.Background()

	_, err := f.svc.StartHostSession(ctx, "host", domain.HostAudio)
	require.NoError(t, err)
	f.clock.advance(10 * time.Minute)
	res, err := f.svc.EndHostSession(ctx, "host")
	require.NoError(t, err)
	assert.True(t, res.StarsEarned.IsZero())
	assert.Empty(t, res.TransactionID)

	f.clock.advance(8 * 24 * time.Hour)
	session, err := f.svc.StartHostSession(ctx, "host", domain.HostAudio)
	require.NoError(t, err)
	assert.False(t, session.IsWelcome)

	f.clock.advance(90 * time.Minute)
	res, err = f.svc.EndHostSession(ctx, "host")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(500).Equal(res.StarsEarned))
	assert.Equal(t, []string{"welcome", "host_reward"}, f.notes.Keys("host"))
}

func TestEarningActionsTouchAgency(t *testing.T) {
	f := newFixture(t, "agent")
	ctx := context.Background()

	stale := f.clock.now.AddDate(0, 0, -10)
	require.NoError(t, f.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.SaveAgency(ctx, &domain.AgencyStatus{
			UserID:                "agent",
			ReferralCode:          "MN00000001",
			TotalCommissionEarned: decimal.Zero,
			IsActive:              false,
			LastActiveDate:        stale,
			CreatedAt:             stale,
			UpdatedAt:             stale,
		})
	}))

	f.track(t, "agent", 1)

	require.NoError(t, f.store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		agency, err := tx.GetAgency(ctx, "agent", false)
		require.NoError(t, err)
		assert.True(t, agency.IsActive)
		assert.Equal(t, f.clock.now, agency.LastActiveDate)
		return nil
	}))
}
