// Package wallet owns every balance mutation. Other domain services stage their
// postings through Engine.Execute so funds are checked and written in one ledger transaction.
package wallet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/lock"
	"github.com/Proton-105/himera-wallet/internal/notify"
	"github.com/Proton-105/himera-wallet/pkg/metrics"
)

// RechargeRecorder accumulates deposits towards VIP eligibility inside the deposit transaction.
type RechargeRecorder interface {
	RecordRecharge(ctx context.Context, tx ledger.Tx, userID string, amount decimal.Decimal, at time.Time) (eligibleLevel int, err error)
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRechargeRecorder wires VIP recharge tracking into Deposit.
func WithRechargeRecorder(r RechargeRecorder) Option {
	return func(e *Engine) { e.recharge = r }
}

// Engine applies every balance mutation under the per-user lock and a single ledger transaction.
type Engine struct {
	store    ledger.Store
	locker   lock.Locker
	notifier notify.Notifier
	recharge RechargeRecorder
	log      *slog.Logger
	now      func() time.Time
}

// NewEngine constructs an engine. A nil notifier drops events and a nil logger uses slog.Default.
func NewEngine(store ledger.Store, locker lock.Locker, notifier notify.Notifier, log *slog.Logger, opts ...Option) *Engine {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		store:    store,
		locker:   locker,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Now returns the engine clock reading in UTC.
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

// Notify forwards an event to the notifier. Delivery problems never reach the caller.
func (e *Engine) Notify(ctx context.Context, event notify.Event) {
	e.notifier.Notify(ctx, event)
}

// Posting is one signed change to one balance together with the transaction that records it.
type Posting struct {
	UserID          string
	Field           domain.BalanceField
	Delta           decimal.Decimal
	Type            domain.TransactionType
	Status          domain.TransactionStatus
	ReferenceID     string
	Description     string
	TrackDeposit    bool
	TrackWithdrawal bool
}

// Batch is the staging area handed to Execute callbacks.
type Batch struct {
	tx      ledger.Tx
	now     time.Time
	wallets map[string]*domain.Wallet
	touched map[string]bool
	staged  []domain.Transaction
}

// Tx exposes the underlying ledger transaction for non-wallet records.
func (b *Batch) Tx() ledger.Tx { return b.tx }

// Now is the timestamp every record in the batch is written with.
func (b *Batch) Now() time.Time { return b.now }

// Wallet returns the locked wallet with all postings staged so far applied.
func (b *Batch) Wallet(userID string) *domain.Wallet { return b.wallets[userID] }

// Stage applies p to the locked wallet and queues its transaction record.
// A posting that would overdraw the balance fails with ErrInsufficientFunds.
func (b *Batch) Stage(p Posting) (*domain.Transaction, error) {
	w, ok := b.wallets[p.UserID]
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrWalletNotFound, "%s", p.UserID)
	}

	if err := w.Apply(p.Field, p.Delta, b.now); err != nil {
		switch {
		case errors.Is(err, domain.ErrNegativeBalance):
			return nil, apperrors.Wrap(apperrors.ErrInsufficientFunds, "%s balance is too low", p.Field)
		case errors.Is(err, domain.ErrUnknownField):
			return nil, apperrors.ErrInvalidBalanceType
		default:
			return nil, err
		}
	}
	if p.TrackDeposit {
		w.TotalDeposited = w.TotalDeposited.Add(p.Delta.Abs())
	}
	if p.TrackWithdrawal {
		w.TotalWithdrawn = w.TotalWithdrawn.Add(p.Delta.Abs())
	}
	b.touched[p.UserID] = true

	status := p.Status
	if status == "" {
		status = domain.StatusCompleted
	}

	txn := domain.Transaction{
		TransactionID: domain.NewID("txn"),
		UserID:        p.UserID,
		Type:          p.Type,
		Amount:        p.Delta,
		Currency:      p.Field,
		Status:        status,
		ReferenceID:   p.ReferenceID,
		Description:   p.Description,
		CreatedAt:     b.now,
	}
	b.staged = append(b.staged, txn)

	return &txn, nil
}

func (b *Batch) flush(ctx context.Context) error {
	for userID := range b.touched {
		if err := b.tx.UpdateWallet(ctx, b.wallets[userID]); err != nil {
			return err
		}
	}
	for i := range b.staged {
		if err := b.tx.InsertTransaction(ctx, &b.staged[i]); err != nil {
			return err
		}
	}
	return nil
}

// Execute locks the wallets of userIDs, runs fn against a fresh Batch and commits
// every staged posting together with whatever fn wrote through Batch.Tx.
func (e *Engine) Execute(ctx context.Context, op string, userIDs []string, fn func(ctx context.Context, b *Batch) error) error {
	start := time.Now()

	release, err := e.locker.Lock(ctx, userIDs...)
	if err != nil {
		metrics.RecordOperation(op, "locked", time.Since(start))
		return err
	}
	defer release()

	var staged []domain.Transaction
	err = e.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		wallets, err := tx.LockWallets(ctx, userIDs...)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return apperrors.ErrWalletNotFound
			}
			return err
		}

		b := &Batch{
			tx:      tx,
			now:     e.Now(),
			wallets: wallets,
			touched: make(map[string]bool, len(wallets)),
		}
		if err := fn(ctx, b); err != nil {
			return err
		}
		if err := b.flush(ctx); err != nil {
			return err
		}
		staged = b.staged

		return nil
	})
	if err != nil {
		metrics.RecordOperation(op, "failed", time.Since(start))
		return storeErr(err)
	}

	metrics.RecordOperation(op, "ok", time.Since(start))
	for _, txn := range staged {
		metrics.RecordLedgerAmount(string(txn.Currency), txn.Amount.InexactFloat64())
	}

	return nil
}

// View runs fn in a read-only ledger transaction and translates store failures.
func (e *Engine) View(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return storeErr(e.store.View(ctx, fn))
}

// Atomic runs fn in a ledger transaction without touching wallets.
func (e *Engine) Atomic(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return storeErr(e.store.Atomic(ctx, fn))
}

// storeErr keeps domain errors as they are and classifies the rest as database failures.
func storeErr(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return apperrors.NewDatabaseError(err)
}
