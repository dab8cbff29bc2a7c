package wallet

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/lock"
	"github.com/Proton-105/himera-wallet/internal/notify"
)

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type stubRecharge struct {
	total decimal.Decimal
	err   error
}

func (s *stubRecharge) RecordRecharge(_ context.Context, _ ledger.Tx, _ string, amount decimal.Decimal, _ time.Time) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.total = s.total.Add(amount)
	if s.total.GreaterThanOrEqual(dec(500)) {
		return 1, nil
	}
	return 0, nil
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *ledger.MemoryStore, *notify.Recorder) {
	t.Helper()

	store := ledger.NewMemoryStore()
	rec := &notify.Recorder{}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	engine := NewEngine(store, lock.NopLocker{}, rec, nil, opts...)

	return engine, store, rec
}

func bootstrap(t *testing.T, e *Engine, userID string) *domain.Wallet {
	t.Helper()
	w, _, err := e.Bootstrap(context.Background(), domain.User{UserID: userID, Name: userID})
	require.NoError(t, err)
	return w
}

func TestBootstrapIsIdempotent(t *testing.T) {
	e, store, rec := newTestEngine(t)
	ctx := context.Background()

	w, created, err := e.Bootstrap(ctx, domain.User{UserID: "u1", Email: "u1@example.com"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, w.Coins.Equal(dec(1000)))
	assert.True(t, w.Bonus.Equal(dec(100)))
	assert.True(t, w.Stars.IsZero())

	_, created, err = e.Bootstrap(ctx, domain.User{UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, []string{"welcome"}, rec.Keys("u1"))

	require.NoError(t, store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		vip, err := tx.GetVIPStatus(ctx, "u1", false)
		require.NoError(t, err)
		assert.Equal(t, 0, vip.Level)
		assert.True(t, vip.AutoRenew)
		return nil
	}))
}

func TestDeposit(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		wantErr error
	}{
		{"zero", dec(0), apperrors.ErrInvalidAmount},
		{"negative", dec(-5), apperrors.ErrInvalidAmount},
		{"rounds to zero", decimal.RequireFromString("0.004"), apperrors.ErrInvalidAmount},
		{"above cap", decimal.RequireFromString("100000.01"), apperrors.ErrAmountTooLarge},
		{"at cap", dec(100000), nil},
		{"regular", dec(500), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recharge := &stubRecharge{total: decimal.Zero}
			e, _, rec := newTestEngine(t, WithRechargeRecorder(recharge))
			bootstrap(t, e, "u1")

			res, err := e.Deposit(context.Background(), "u1", tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			assert.True(t, res.Wallet.Coins.Equal(dec(1000).Add(tt.amount)))
			assert.True(t, res.Wallet.TotalDeposited.Equal(tt.amount))
			assert.NotEmpty(t, res.TransactionID)
			assert.Equal(t, 1, res.EligibleVIPLevel)
			assert.True(t, recharge.total.Equal(tt.amount))
			assert.Contains(t, rec.Keys("u1"), "deposit_completed")
		})
	}
}

func TestDepositRollsBackWhenRechargeFails(t *testing.T) {
	e, _, _ := newTestEngine(t, WithRechargeRecorder(&stubRecharge{err: errors.New("vip table unavailable")}))
	bootstrap(t, e, "u1")

	_, err := e.Deposit(context.Background(), "u1", dec(100))
	require.Error(t, err)

	w, err := e.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, w.Coins.Equal(dec(1000)))
	assert.True(t, w.TotalDeposited.IsZero())

	page, err := e.Transactions(context.Background(), "u1", "", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestWithdrawInternal(t *testing.T) {
	e, _, _ := newTestEngine(t)
	bootstrap(t, e, "u1")
	ctx := context.Background()

	_, err := e.WithdrawInternal(ctx, "u1", dec(10))
	require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	_, err = e.Transfer(ctx, "u1", dec(300), "coins", "withdrawable")
	require.NoError(t, err)

	res, err := e.WithdrawInternal(ctx, "u1", dec(120))
	require.NoError(t, err)
	assert.True(t, res.Wallet.Withdrawable.Equal(dec(180)))
	assert.True(t, res.Wallet.TotalWithdrawn.Equal(dec(120)))

	page, err := e.Transactions(ctx, "u1", domain.TxWithdrawal, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, domain.StatusPending, page.Transactions[0].Status)
	assert.True(t, page.Transactions[0].Amount.Equal(dec(-120)))

	_, err = e.WithdrawInternal(ctx, "u1", dec(0))
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
}

func TestSubCentAmountsWriteNothing(t *testing.T) {
	tiny := decimal.RequireFromString("0.004")
	ops := map[string]func(e *Engine) error{
		"deposit": func(e *Engine) error {
			_, err := e.Deposit(context.Background(), "u1", tiny)
			return err
		},
		"withdraw": func(e *Engine) error {
			_, err := e.WithdrawInternal(context.Background(), "u1", tiny)
			return err
		},
		"transfer": func(e *Engine) error {
			_, err := e.Transfer(context.Background(), "u1", tiny, "coins", "stars")
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			e, _, rec := newTestEngine(t)
			bootstrap(t, e, "u1")

			require.ErrorIs(t, op(e), apperrors.ErrInvalidAmount)

			page, err := e.Transactions(context.Background(), "u1", "", 10, 0)
			require.NoError(t, err)
			assert.Zero(t, page.Total)
			assert.Equal(t, []string{"welcome"}, rec.Keys("u1"))
		})
	}
}

func TestTransfer(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		from, to string
		wantErr  error
	}{
		{"coins to stars", 200, "coins", "stars", nil},
		{"column spelling", 50, "bonus_balance", "coins_balance", nil},
		{"same field", 10, "coins", "coins", apperrors.ErrInvalidBalanceType},
		{"unknown field", 10, "gems", "coins", apperrors.ErrInvalidBalanceType},
		{"non positive", 0, "coins", "stars", apperrors.ErrInvalidAmount},
		{"short source", 101, "bonus", "coins", apperrors.ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			bootstrap(t, e, "u1")

			res, err := e.Transfer(context.Background(), "u1", dec(tt.amount), tt.from, tt.to)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, res.DebitTransactionID, res.CreditTransactionID)

			page, err := e.Transactions(context.Background(), "u1", domain.TxTransfer, 10, 0)
			require.NoError(t, err)
			require.Len(t, page.Transactions, 2)

			sum := page.Transactions[0].Amount.Add(page.Transactions[1].Amount)
			assert.True(t, sum.IsZero())
		})
	}
}

func TestApplySignedDeltaRefusesOverdraft(t *testing.T) {
	e, _, _ := newTestEngine(t)
	bootstrap(t, e, "u1")

	_, _, err := e.ApplySignedDelta(context.Background(), Posting{
		UserID: "u1",
		Field:  domain.FieldStars,
		Delta:  dec(-1),
		Type:   domain.TxBonus,
	})
	require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	w, txn, err := e.ApplySignedDelta(context.Background(), Posting{
		UserID: "u1",
		Field:  domain.FieldStars,
		Delta:  dec(25),
		Type:   domain.TxBonus,
	})
	require.NoError(t, err)
	assert.True(t, w.Stars.Equal(dec(25)))
	assert.Equal(t, domain.StatusCompleted, txn.Status)
}

func TestExecuteIsAllOrNothingAcrossWallets(t *testing.T) {
	e, _, _ := newTestEngine(t)
	bootstrap(t, e, "a")
	bootstrap(t, e, "b")
	ctx := context.Background()

	err := e.Execute(ctx, "test", []string{"a", "b"}, func(ctx context.Context, b *Batch) error {
		if _, err := b.Stage(Posting{UserID: "a", Field: domain.FieldCoins, Delta: dec(-400), Type: domain.TxGiftSent}); err != nil {
			return err
		}
		_, err := b.Stage(Posting{UserID: "b", Field: domain.FieldBonus, Delta: dec(-500), Type: domain.TxGiftReceived})
		return err
	})
	require.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	wa, err := e.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, wa.Coins.Equal(dec(1000)))
}

func TestExecuteUnknownWallet(t *testing.T) {
	e, _, _ := newTestEngine(t)

	err := e.Execute(context.Background(), "test", []string{"ghost"}, func(context.Context, *Batch) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrWalletNotFound)
}

// TestRandomSequenceReconciles runs random operations and checks that no balance went
// negative and that seed + signed transaction sums equals each balance.
func TestRandomSequenceReconciles(t *testing.T) {
	e, store, _ := newTestEngine(t)
	users := []string{"u1", "u2", "u3"}
	for _, u := range users {
		bootstrap(t, e, u)
	}

	fields := []string{"coins", "stars", "bonus", "withdrawable"}
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for i := 0; i < 400; i++ {
		user := users[rng.Intn(len(users))]
		amount := decimal.NewFromInt(int64(rng.Intn(400) + 1))

		switch rng.Intn(4) {
		case 0:
			_, _ = e.Deposit(ctx, user, amount)
		case 1:
			_, _ = e.WithdrawInternal(ctx, user, amount)
		case 2:
			_, _ = e.Transfer(ctx, user, amount, fields[rng.Intn(4)], fields[rng.Intn(4)])
		case 3:
			field := domain.BalanceField(fields[rng.Intn(4)])
			delta := amount
			if rng.Intn(2) == 0 {
				delta = delta.Neg()
			}
			_, _, _ = e.ApplySignedDelta(ctx, Posting{UserID: user, Field: field, Delta: delta, Type: domain.TxBonus})
		}
	}

	seed := map[domain.BalanceField]decimal.Decimal{
		domain.FieldCoins:        domain.SeedCoins,
		domain.FieldStars:        decimal.Zero,
		domain.FieldBonus:        domain.SeedBonus,
		domain.FieldWithdrawable: decimal.Zero,
	}

	require.NoError(t, store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		for _, u := range users {
			w, err := tx.GetWallet(ctx, u)
			require.NoError(t, err)

			for field, start := range seed {
				balance, err := w.Balance(field)
				require.NoError(t, err)
				assert.False(t, balance.IsNegative(), "%s %s negative", u, field)

				sum, _, err := tx.SumTransactions(ctx, ledger.SumFilter{UserIDs: []string{u}, Currency: field})
				require.NoError(t, err)
				assert.True(t, start.Add(sum).Equal(balance), "%s %s: seed %s + sum %s != %s", u, field, start, sum, balance)
			}
		}
		return nil
	}))
}

func TestConcurrentSpendsNeverOverdraw(t *testing.T) {
	const (
		workers = 50
		spend   = 100
	)

	lockers := map[string]func(t *testing.T) lock.Locker{
		"store serialisation": func(*testing.T) lock.Locker { return lock.NopLocker{} },
		"redis lock": func(t *testing.T) lock.Locker {
			client := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return lock.NewRedisLocker(client, 5*time.Second, 10*time.Second, nil)
		},
	}

	for name, newLocker := range lockers {
		t.Run(name, func(t *testing.T) {
			store := ledger.NewMemoryStore()
			e := NewEngine(store, newLocker(t), &notify.Recorder{}, nil, WithClock(func() time.Time { return fixedNow }))
			start := bootstrap(t, e, "u1").Coins
			ctx := context.Background()

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _, err := e.ApplySignedDelta(ctx, Posting{
						UserID: "u1",
						Field:  domain.FieldCoins,
						Delta:  dec(-spend),
						Type:   domain.TxGameBet,
					})
					if err != nil {
						assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)
						return
					}
					mu.Lock()
					succeeded++
					mu.Unlock()
				}()
			}
			wg.Wait()

			want := int(start.IntPart()) / spend
			assert.Equal(t, want, succeeded)

			w, err := e.Get(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, w.Coins.IsNegative())
			assert.True(t, start.Sub(dec(int64(want*spend))).Equal(w.Coins), "coins %s", w.Coins)

			require.NoError(t, store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
				sum, count, err := tx.SumTransactions(ctx, ledger.SumFilter{UserIDs: []string{"u1"}, Currency: domain.FieldCoins})
				require.NoError(t, err)
				assert.Equal(t, want, count)
				assert.True(t, start.Add(sum).Equal(w.Coins), "seed %s + sum %s != %s", start, sum, w.Coins)
				return nil
			}))
		})
	}
}
