package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seedWallet(t *testing.T, s *MemoryStore, userID string) {
	t.Helper()
	require.NoError(t, s.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.CreateUser(ctx, &domain.User{UserID: userID, Name: "name-" + userID, CreatedAt: testNow}); err != nil {
			return err
		}
		return tx.CreateWallet(ctx, domain.NewWallet(userID, testNow))
	}))
}

func TestMemoryStoreAtomicRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	seedWallet(t, s, "u1")
	boom := errors.New("boom")

	err := s.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		w, err := tx.GetWallet(ctx, "u1")
		require.NoError(t, err)
		require.NoError(t, w.Apply(domain.FieldCoins, decimal.NewFromInt(-500), testNow))
		require.NoError(t, tx.UpdateWallet(ctx, w))
		require.NoError(t, tx.InsertTransaction(ctx, &domain.Transaction{TransactionID: "t1", UserID: "u1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx Tx) error {
		w, err := tx.GetWallet(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, w.Coins.Equal(domain.SeedCoins))

		txns, total, err := tx.ListTransactions(ctx, TransactionFilter{UserID: "u1"})
		require.NoError(t, err)
		assert.Empty(t, txns)
		assert.Zero(t, total)
		return nil
	}))
}

func TestMemoryStoreViewIsReadOnly(t *testing.T) {
	s := NewMemoryStore()

	err := s.View(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.CreateWallet(ctx, domain.NewWallet("u1", testNow))
	})
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	seedWallet(t, s, "u1")

	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx Tx) error {
		w, err := tx.GetWallet(ctx, "u1")
		require.NoError(t, err)
		w.Coins = decimal.NewFromInt(1)
		return nil
	}))

	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx Tx) error {
		w, err := tx.GetWallet(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, w.Coins.Equal(domain.SeedCoins))
		return nil
	}))
}

func TestMemoryStoreLockWallets(t *testing.T) {
	s := NewMemoryStore()
	seedWallet(t, s, "b")
	seedWallet(t, s, "a")

	require.NoError(t, s.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		got, err := tx.LockWallets(ctx, "b", "a", "b")
		require.NoError(t, err)
		assert.Len(t, got, 2)

		_, err = tx.LockWallets(ctx, "a", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestMemoryStoreTransactionsNewestFirstWithPaging(t *testing.T) {
	s := NewMemoryStore()
	seedWallet(t, s, "u1")

	require.NoError(t, s.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		for i, typ := range []domain.TransactionType{domain.TxDeposit, domain.TxGameBet, domain.TxDeposit} {
			txn := &domain.Transaction{
				TransactionID: domain.NewID("txn"),
				UserID:        "u1",
				Type:          typ,
				Amount:        decimal.NewFromInt(int64(i + 1)),
				Currency:      domain.FieldCoins,
				CreatedAt:     testNow.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.InsertTransaction(ctx, txn); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx Tx) error {
		txns, total, err := tx.ListTransactions(ctx, TransactionFilter{UserID: "u1", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, txns, 2)
		assert.True(t, txns[0].Amount.Equal(decimal.NewFromInt(3)))

		deposits, total, err := tx.ListTransactions(ctx, TransactionFilter{UserID: "u1", Type: domain.TxDeposit, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, deposits, 1)
		assert.True(t, deposits[0].Amount.Equal(decimal.NewFromInt(1)))

		sum, count, err := tx.SumTransactions(ctx, SumFilter{
			UserIDs: []string{"u1"},
			Types:   []domain.TransactionType{domain.TxDeposit},
			Since:   testNow.Add(time.Minute),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.True(t, sum.Equal(decimal.NewFromInt(3)))
		return nil
	}))
}

func TestMemoryStoreCharityAndLeaderboard(t *testing.T) {
	s := NewMemoryStore()
	seedWallet(t, s, "u1")
	seedWallet(t, s, "u2")

	require.NoError(t, s.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		for _, c := range []struct {
			user   string
			amount int64
		}{{"u1", 4}, {"u2", 10}, {"u1", 1}} {
			if err := tx.AddCharity(ctx, decimal.NewFromInt(c.amount), testNow); err != nil {
				return err
			}
			if err := tx.InsertCharityContribution(ctx, &domain.CharityContribution{
				ContributionID: domain.NewID("chr"),
				UserID:         c.user,
				Amount:         decimal.NewFromInt(c.amount),
				Source:         domain.CharitySourceGift,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx Tx) error {
		cw, err := tx.GetCharityWallet(ctx)
		require.NoError(t, err)
		assert.True(t, cw.TotalBalance.Equal(decimal.NewFromInt(15)))
		assert.True(t, cw.TotalReceived.Equal(decimal.NewFromInt(15)))

		board, err := tx.CharityLeaderboard(ctx, 20)
		require.NoError(t, err)
		require.Len(t, board, 2)
		assert.Equal(t, "u2", board[0].UserID)
		assert.Equal(t, 1, board[0].Rank)
		assert.Equal(t, "name-u2", board[0].Name)
		assert.Equal(t, 2, board[1].Count)

		total, count, err := tx.UserCharityTotal(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, 2, count)
		return nil
	}))
}

func TestMemoryStoreAgencyCodeUnique(t *testing.T) {
	s := NewMemoryStore()

	err := s.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.SaveAgency(ctx, &domain.AgencyStatus{UserID: "u1", ReferralCode: "MNAAAA0000"}))
		return tx.SaveAgency(ctx, &domain.AgencyStatus{UserID: "u2", ReferralCode: "MNAAAA0000"})
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreNotifications(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		for _, id := range []string{"n1", "n2", "n3"} {
			if err := tx.InsertNotification(ctx, &domain.Notification{NotificationID: id, UserID: "u1"}); err != nil {
				return err
			}
		}
		if err := tx.MarkNotificationRead(ctx, "u1", "n1"); err != nil {
			return err
		}
		assert.ErrorIs(t, tx.MarkNotificationRead(ctx, "u2", "n2"), ErrNotFound)
		return nil
	}))

	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx Tx) error {
		unreadItems, unread, err := tx.ListNotifications(ctx, "u1", true, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, unread)
		require.Len(t, unreadItems, 2)
		assert.Equal(t, "n3", unreadItems[0].NotificationID)
		return nil
	}))

	require.NoError(t, s.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		marked, err := tx.MarkAllNotificationsRead(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 2, marked)
		return nil
	}))
}

func TestMemoryStoreUpdateTransactionStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		for _, txn := range []domain.Transaction{
			{TransactionID: "t1", UserID: "u1", ReferenceID: "wd_1", Status: domain.StatusPending, Amount: decimal.NewFromInt(-10)},
			{TransactionID: "t2", UserID: "u1", ReferenceID: "wd_2", Status: domain.StatusPending, Amount: decimal.NewFromInt(-20)},
			{TransactionID: "t3", UserID: "u2", ReferenceID: "wd_1", Status: domain.StatusPending, Amount: decimal.NewFromInt(-30)},
		} {
			if err := tx.InsertTransaction(ctx, &txn); err != nil {
				return err
			}
		}
		return nil
	}))

	err := s.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		n, err := tx.UpdateTransactionStatus(ctx, "u1", "wd_1", domain.StatusPending, domain.StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = tx.UpdateTransactionStatus(ctx, "u1", "wd_1", domain.StatusPending, domain.StatusCancelled)
		require.NoError(t, err)
		assert.Zero(t, n)
		return errors.New("rollback")
	})
	require.Error(t, err)

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx Tx) error {
		txns, _, err := tx.ListTransactions(ctx, TransactionFilter{UserID: "u1"})
		require.NoError(t, err)
		for _, txn := range txns {
			assert.Equal(t, domain.StatusPending, txn.Status, "rolled back update leaked into %s", txn.TransactionID)
		}

		_, err = tx.UpdateTransactionStatus(ctx, "u1", "wd_1", domain.StatusPending, domain.StatusCancelled)
		assert.ErrorIs(t, err, ErrReadOnly)
		return nil
	}))

	require.NoError(t, s.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.UpdateTransactionStatus(ctx, "u1", "wd_1", domain.StatusPending, domain.StatusCancelled)
		return err
	}))
	require.NoError(t, s.View(ctx, func(ctx context.Context, tx Tx) error {
		txns, _, err := tx.ListTransactions(ctx, TransactionFilter{UserID: "u1"})
		require.NoError(t, err)
		statuses := map[string]domain.TransactionStatus{}
		for _, txn := range txns {
			statuses[txn.TransactionID] = txn.Status
		}
		assert.Equal(t, domain.StatusCancelled, statuses["t1"])
		assert.Equal(t, domain.StatusPending, statuses["t2"])
		return nil
	}))
}
