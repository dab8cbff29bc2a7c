package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresStore(db, nil), mock
}

var walletCols = []string{
	"user_id", "coins_balance", "stars_balance", "bonus_balance", "withdrawable_balance",
	"total_deposited", "total_withdrawn", "created_at", "updated_at",
}

func TestPostgresGetWalletNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM wallets WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := store.View(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.GetWallet(ctx, "u1")
		return err
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLockWalletsSortsAndDetectsMissing(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows(walletCols).
		AddRow("a", "10.00", "0", "0", "0", "0", "0", testNow, testNow)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM wallets WHERE user_id = ANY\(\$1\) ORDER BY user_id FOR UPDATE`).
		WithArgs(pq.Array([]string{"a", "b"})).
		WillReturnRows(rows)
	mock.ExpectRollback()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		_, err := tx.LockWallets(ctx, "b", "a")
		return err
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAtomicCommitsWalletAndTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM wallets WHERE user_id = ANY`).
		WillReturnRows(sqlmock.NewRows(walletCols).AddRow("u1", "1000.00", "0", "100.00", "0", "0", "0", testNow, testNow))
	mock.ExpectExec(`UPDATE wallets`).
		WithArgs("u1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		wallets, err := tx.LockWallets(ctx, "u1")
		if err != nil {
			return err
		}
		w := wallets["u1"]
		assert.True(t, w.Coins.Equal(decimal.NewFromInt(1000)))

		if err := w.Apply(domain.FieldCoins, decimal.NewFromInt(-100), testNow); err != nil {
			return err
		}
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, &domain.Transaction{
			TransactionID: "txn_1",
			UserID:        "u1",
			Type:          domain.TxGameBet,
			Amount:        decimal.NewFromInt(-100),
			Currency:      domain.FieldCoins,
			Status:        domain.StatusCompleted,
			CreatedAt:     testNow,
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUniqueViolationMapsToConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO referrals`).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "referrals_referred_id_key"})
	mock.ExpectRollback()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertReferral(ctx, &domain.Referral{ReferralID: "r1", ReferrerID: "a", ReferredID: "b", Status: "active", CreatedAt: testNow})
	})

	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateWalletMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE wallets`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpdateWallet(ctx, domain.NewWallet("ghost", testNow))
	})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateTransactionStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE transactions SET status = \$4\s+WHERE user_id = \$1 AND reference_id = \$2 AND status = \$3`).
		WithArgs("u1", "wd_1", "pending", "cancelled").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var n int
	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		n, err = tx.UpdateTransactionStatus(ctx, "u1", "wd_1", domain.StatusPending, domain.StatusCancelled)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddCharityUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO charity_wallet .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(sqlmock.AnyArg(), testNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Atomic(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.AddCharity(ctx, decimal.NewFromInt(4), testNow)
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommitFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := store.Atomic(context.Background(), func(context.Context, Tx) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit ledger transaction")
}

func TestPostgresHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectPing()

	assert.NoError(t, NewPostgresStore(db, nil).HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
