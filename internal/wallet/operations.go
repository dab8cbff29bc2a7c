package wallet

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/notify"
)

// MaxDeposit caps a single deposit.
var MaxDeposit = decimal.NewFromInt(100000)

// DepositResult is returned by Deposit.
type DepositResult struct {
	Wallet           *domain.Wallet `json:"wallet"`
	TransactionID    string         `json:"transaction_id"`
	EligibleVIPLevel int            `json:"eligible_vip_level"`
}

// MutationResult is returned by single-posting operations.
type MutationResult struct {
	Wallet        *domain.Wallet `json:"wallet"`
	TransactionID string         `json:"transaction_id"`
}

// TransferResult carries both legs of an internal transfer.
type TransferResult struct {
	Wallet              *domain.Wallet `json:"wallet"`
	DebitTransactionID  string         `json:"debit_transaction_id"`
	CreditTransactionID string         `json:"credit_transaction_id"`
}

// Bootstrap creates the user mirror, the seeded wallet and the level-0 VIP status on first sight.
// Subsequent calls return the existing wallet. created reports whether anything was written.
func (e *Engine) Bootstrap(ctx context.Context, user domain.User) (*domain.Wallet, bool, error) {
	var (
		wallet  *domain.Wallet
		created bool
	)

	err := e.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		existing, err := tx.GetWallet(ctx, user.UserID)
		if err == nil {
			wallet = existing
			return nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		now := e.Now()
		if _, err := tx.GetUser(ctx, user.UserID); errors.Is(err, ledger.ErrNotFound) {
			u := user
			u.CreatedAt = now
			if err := tx.CreateUser(ctx, &u); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		wallet = domain.NewWallet(user.UserID, now)
		if err := tx.CreateWallet(ctx, wallet); err != nil {
			return err
		}

		if _, err := tx.GetVIPStatus(ctx, user.UserID, false); errors.Is(err, ledger.ErrNotFound) {
			if err := tx.SaveVIPStatus(ctx, domain.NewVIPStatus(user.UserID, now)); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		created = true
		return nil
	})
	if err != nil {
		// a concurrent bootstrap won the race; read what it wrote
		if errors.Is(err, ledger.ErrConflict) {
			w, getErr := e.Get(ctx, user.UserID)
			return w, false, getErr
		}
		return nil, false, err
	}

	if created {
		e.log.Info("wallet bootstrapped", "user_id", user.UserID)
		e.Notify(ctx, notify.Event{
			UserID:   user.UserID,
			Key:      "welcome",
			Category: notify.CategoryWelcome,
			Params: map[string]string{
				"coins": domain.SeedCoins.String(),
				"bonus": domain.SeedBonus.String(),
			},
			ActionURL: "/wallet",
		})
	}

	return wallet, created, nil
}

// Get returns the caller's wallet.
func (e *Engine) Get(ctx context.Context, userID string) (*domain.Wallet, error) {
	var wallet *domain.Wallet
	err := e.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		w, err := tx.GetWallet(ctx, userID)
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.ErrWalletNotFound
		}
		wallet = w
		return err
	})

	return wallet, err
}

// Deposit credits coins and counts the amount towards VIP recharge.
func (e *Engine) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*DepositResult, error) {
	amount = domain.Cents(amount)
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}
	if amount.GreaterThan(MaxDeposit) {
		return nil, apperrors.ErrAmountTooLarge
	}

	result := &DepositResult{}
	err := e.Execute(ctx, "deposit", []string{userID}, func(ctx context.Context, b *Batch) error {
		txn, err := b.Stage(Posting{
			UserID:       userID,
			Field:        domain.FieldCoins,
			Delta:        amount,
			Type:         domain.TxDeposit,
			Description:  "Deposit of " + amount.String() + " coins",
			TrackDeposit: true,
		})
		if err != nil {
			return err
		}
		result.TransactionID = txn.TransactionID

		if e.recharge != nil {
			level, err := e.recharge.RecordRecharge(ctx, b.Tx(), userID, amount, b.Now())
			if err != nil {
				return err
			}
			result.EligibleVIPLevel = level
		}

		result.Wallet = b.Wallet(userID).Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Notify(ctx, notify.Event{
		UserID:    userID,
		Key:       "deposit_completed",
		Category:  notify.CategoryWallet,
		Params:    map[string]string{"amount": amount.String()},
		ActionURL: "/wallet",
	})

	return result, nil
}

// WithdrawInternal moves funds out of the withdrawable balance into a pending payout record.
func (e *Engine) WithdrawInternal(ctx context.Context, userID string, amount decimal.Decimal) (*MutationResult, error) {
	amount = domain.Cents(amount)
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}

	result := &MutationResult{}
	err := e.Execute(ctx, "withdraw", []string{userID}, func(ctx context.Context, b *Batch) error {
		w := b.Wallet(userID)
		if w.Withdrawable.LessThan(amount) {
			return apperrors.Wrap(apperrors.ErrInsufficientFunds, "withdrawable balance is %s", w.Withdrawable.StringFixed(2))
		}

		txn, err := b.Stage(Posting{
			UserID:          userID,
			Field:           domain.FieldWithdrawable,
			Delta:           amount.Neg(),
			Type:            domain.TxWithdrawal,
			Status:          domain.StatusPending,
			Description:     "Withdrawal of " + amount.String(),
			TrackWithdrawal: true,
		})
		if err != nil {
			return err
		}

		result.TransactionID = txn.TransactionID
		result.Wallet = b.Wallet(userID).Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Notify(ctx, notify.Event{
		UserID:    userID,
		Key:       "withdrawal_requested",
		Category:  notify.CategoryWallet,
		Params:    map[string]string{"amount": amount.String()},
		ActionURL: "/wallet",
	})

	return result, nil
}

// Transfer moves amount between two balances of the same wallet and records both legs.
func (e *Engine) Transfer(ctx context.Context, userID string, amount decimal.Decimal, from, to string) (*TransferResult, error) {
	fromField, okFrom := domain.ParseBalanceField(from)
	toField, okTo := domain.ParseBalanceField(to)
	if !okFrom || !okTo || fromField == toField {
		return nil, apperrors.ErrInvalidBalanceType
	}
	amount = domain.Cents(amount)
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}

	result := &TransferResult{}
	err := e.Execute(ctx, "transfer", []string{userID}, func(ctx context.Context, b *Batch) error {
		source, _ := b.Wallet(userID).Balance(fromField)
		if source.LessThan(amount) {
			return apperrors.Wrap(apperrors.ErrInsufficientFunds, "%s balance is %s", fromField, source.StringFixed(2))
		}

		description := "Transfer " + amount.String() + " from " + string(fromField) + " to " + string(toField)
		debit, err := b.Stage(Posting{
			UserID:      userID,
			Field:       fromField,
			Delta:       amount.Neg(),
			Type:        domain.TxTransfer,
			Description: description,
		})
		if err != nil {
			return err
		}

		credit, err := b.Stage(Posting{
			UserID:      userID,
			Field:       toField,
			Delta:       amount,
			Type:        domain.TxTransfer,
			ReferenceID: debit.TransactionID,
			Description: description,
		})
		if err != nil {
			return err
		}

		result.DebitTransactionID = debit.TransactionID
		result.CreditTransactionID = credit.TransactionID
		result.Wallet = b.Wallet(userID).Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ApplySignedDelta changes one balance and appends the matching transaction, both or neither.
func (e *Engine) ApplySignedDelta(ctx context.Context, p Posting) (*domain.Wallet, *domain.Transaction, error) {
	if p.Delta.IsZero() {
		return nil, nil, apperrors.ErrInvalidAmount
	}
	if _, ok := domain.ParseBalanceField(string(p.Field)); !ok {
		return nil, nil, apperrors.ErrInvalidBalanceType
	}

	var (
		wallet *domain.Wallet
		txn    *domain.Transaction
	)
	err := e.Execute(ctx, string(p.Type), []string{p.UserID}, func(ctx context.Context, b *Batch) error {
		var err error
		txn, err = b.Stage(p)
		if err != nil {
			return err
		}
		wallet = b.Wallet(p.UserID).Clone()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return wallet, txn, nil
}

// TransactionPage is one page of history.
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"`
	Total        int                  `json:"total"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

// Transactions lists the caller's transactions newest first, optionally filtered by type.
func (e *Engine) Transactions(ctx context.Context, userID string, txType domain.TransactionType, limit, offset int) (*TransactionPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	page := &TransactionPage{Limit: limit, Offset: offset}
	err := e.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		txns, total, err := tx.ListTransactions(ctx, ledger.TransactionFilter{
			UserID: userID,
			Type:   txType,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		page.Transactions = txns
		page.Total = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}
