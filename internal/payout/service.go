// Package payout handles saved payment methods and stars withdrawals.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/notify"
	"github.com/Proton-105/himera-wallet/internal/vip"
	"github.com/Proton-105/himera-wallet/internal/wallet"
)

// Settings are the withdrawal rules.
type Settings struct {
	MinStarsRequired      decimal.Decimal `json:"min_stars_required"`
	ProcessingTimeDays    int             `json:"processing_time_days"`
	VIPProcessingTimeDays int             `json:"vip_processing_time_days"`
}

// DefaultSettings returns the production withdrawal rules.
func DefaultSettings() Settings {
	return Settings{
		MinStarsRequired:      decimal.NewFromInt(100000),
		ProcessingTimeDays:    3,
		VIPProcessingTimeDays: 1,
	}
}

func (s Settings) processingDays(isVIP bool) int {
	if isVIP {
		return s.VIPProcessingTimeDays
	}
	return s.ProcessingTimeDays
}

// Service handles payment methods and star withdrawals.
type Service struct {
	engine   *wallet.Engine
	validate *validator.Validate
	settings Settings
	log      *slog.Logger
}

// NewService constructs a payout service with the default withdrawal rules.
func NewService(engine *wallet.Engine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		settings: DefaultSettings(),
		log:      log.With("component", "payout"),
	}
}

// Eligibility tells the caller whether and how fast they can withdraw.
type Eligibility struct {
	Config              Settings               `json:"config"`
	CurrentStars        decimal.Decimal        `json:"current_stars"`
	IsEligible          bool                   `json:"is_eligible"`
	IsVIP               bool                   `json:"is_vip"`
	ProcessingTimeDays  int                    `json:"processing_time_days"`
	SavedPaymentMethods []domain.PaymentMethod `json:"saved_payment_methods"`
	StarsNeeded         decimal.Decimal        `json:"stars_needed"`
}

func (s *Service) Config(ctx context.Context, userID string) (*Eligibility, error) {
	isVIP, err := vip.IsActive(ctx, s.engine, userID)
	if err != nil {
		return nil, err
	}

	out := &Eligibility{Config: s.settings, IsVIP: isVIP, ProcessingTimeDays: s.settings.processingDays(isVIP)}
	err = s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		w, err := tx.GetWallet(ctx, userID)
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.ErrWalletNotFound
		}
		if err != nil {
			return err
		}
		out.CurrentStars = w.Stars

		out.SavedPaymentMethods, err = tx.ListPaymentMethods(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	out.IsEligible = out.CurrentStars.GreaterThanOrEqual(s.settings.MinStarsRequired)
	out.StarsNeeded = decimal.Max(decimal.Zero, s.settings.MinStarsRequired.Sub(out.CurrentStars))
	return out, nil
}

// PaymentMethodInput is a payout destination to save.
type PaymentMethodInput struct {
	MethodType domain.PaymentMethodType
	Bank       *domain.BankDetails
	UPI        *domain.UPIDetails
	IsDefault  bool
}

func (s *Service) validateMethod(in PaymentMethodInput) error {
	var details any
	switch {
	case in.MethodType == domain.MethodBank && in.Bank != nil:
		details = in.Bank
	case in.MethodType == domain.MethodUPI && in.UPI != nil:
		details = in.UPI
	default:
		return apperrors.ErrInvalidPaymentMethod
	}

	if err := s.validate.Struct(details); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperrors.Wrap(apperrors.ErrInvalidPaymentMethod, "%s is required", verrs[0].Field())
		}
		return apperrors.ErrInvalidPaymentMethod
	}
	return nil
}

// SavePaymentMethod stores a bank account or UPI handle. A new default replaces the previous one.
func (s *Service) SavePaymentMethod(ctx context.Context, userID string, in PaymentMethodInput) (*domain.PaymentMethod, error) {
	if err := s.validateMethod(in); err != nil {
		return nil, err
	}

	method := &domain.PaymentMethod{
		MethodID:   domain.NewID("pm"),
		UserID:     userID,
		MethodType: in.MethodType,
		IsDefault:  in.IsDefault,
		CreatedAt:  s.engine.Now(),
	}
	if in.MethodType == domain.MethodBank {
		method.Bank = in.Bank
	} else {
		method.UPI = in.UPI
	}

	err := s.engine.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if in.IsDefault {
			if err := tx.ClearDefaultPaymentMethods(ctx, userID); err != nil {
				return err
			}
		}
		return tx.InsertPaymentMethod(ctx, method)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment method saved", "user_id", userID, "method_id", method.MethodID, "type", method.MethodType)
	return method, nil
}

// WithdrawalReceipt is returned when a withdrawal is requested.
type WithdrawalReceipt struct {
	Withdrawal               *domain.Withdrawal `json:"withdrawal"`
	TransactionID            string             `json:"transaction_id"`
	RequiresFaceVerification bool               `json:"requires_face_verification"`
	Wallet                   *domain.Wallet     `json:"wallet"`
}

// RequestWithdrawal reserves stars for a payout and records a pending withdrawal.
func (s *Service) RequestWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, methodID string) (*WithdrawalReceipt, error) {
	amount = domain.Cents(amount)
	receipt := &WithdrawalReceipt{RequiresFaceVerification: true}

	err := s.engine.Execute(ctx, "withdrawal_request", []string{userID}, func(ctx context.Context, b *wallet.Batch) error {
		tx := b.Tx()
		stars := b.Wallet(userID).Stars

		if stars.LessThan(s.settings.MinStarsRequired) {
			return apperrors.Wrap(apperrors.ErrBelowWithdrawalMinimum,
				"Minimum %s stars required for withdrawal", s.settings.MinStarsRequired)
		}
		if !amount.IsPositive() {
			return apperrors.ErrInvalidAmount
		}
		if amount.GreaterThan(stars) {
			return apperrors.Wrap(apperrors.ErrInsufficientBalance, "Insufficient stars balance")
		}

		method, err := tx.GetPaymentMethod(ctx, userID, methodID)
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.ErrPaymentMethodNotFound
		}
		if err != nil {
			return err
		}

		isVIP := false
		if status, err := tx.GetVIPStatus(ctx, userID, false); err == nil {
			isVIP = status.IsActive
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		days := s.settings.processingDays(isVIP)
		withdrawal := &domain.Withdrawal{
			WithdrawalID:        domain.NewID("wd"),
			UserID:              userID,
			Amount:              amount,
			Status:              domain.WithdrawalPending,
			PaymentMethodID:     method.MethodID,
			PaymentMethodType:   method.MethodType,
			IsVIP:               isVIP,
			EstimatedCompletion: b.Now().Add(time.Duration(days) * 24 * time.Hour),
			CreatedAt:           b.Now(),
			UpdatedAt:           b.Now(),
		}
		if err := tx.InsertWithdrawal(ctx, withdrawal); err != nil {
			return err
		}

		txn, err := b.Stage(wallet.Posting{
			UserID:          userID,
			Field:           domain.FieldStars,
			Delta:           amount.Neg(),
			Type:            domain.TxWithdrawal,
			Status:          domain.StatusPending,
			ReferenceID:     withdrawal.WithdrawalID,
			Description:     fmt.Sprintf("Withdrawal request of %s stars", amount),
			TrackWithdrawal: true,
		})
		if err != nil {
			return err
		}

		receipt.Withdrawal = withdrawal
		receipt.TransactionID = txn.TransactionID
		receipt.Wallet = b.Wallet(userID).Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.engine.Notify(ctx, notify.Event{
		UserID:    userID,
		Key:       "payout_requested",
		Category:  notify.CategoryPayout,
		Params:    map[string]string{"amount": amount.String()},
		ActionURL: "/withdrawal",
	})

	return receipt, nil
}

// VerifyFace records the face check on a pending withdrawal and moves it to processing.
func (s *Service) VerifyFace(ctx context.Context, userID, withdrawalID string) (*domain.Withdrawal, error) {
	var withdrawal *domain.Withdrawal
	err := s.engine.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		withdrawal, err = loadWithdrawal(ctx, tx, userID, withdrawalID)
		if err != nil {
			return err
		}
		if withdrawal.Status != domain.WithdrawalPending || !CanTransition(withdrawal.Status, domain.WithdrawalProcessing) {
			return apperrors.Wrap(apperrors.ErrWithdrawalStatus, "Withdrawal cannot be verified")
		}

		withdrawal.FaceVerified = true
		withdrawal.Status = domain.WithdrawalProcessing
		withdrawal.UpdatedAt = s.engine.Now()
		return tx.UpdateWithdrawal(ctx, withdrawal)
	})
	if err != nil {
		return nil, err
	}

	s.engine.Notify(ctx, notify.Event{
		UserID:    userID,
		Key:       "payout_verified",
		Category:  notify.CategoryPayout,
		ActionURL: "/withdrawal",
	})

	return withdrawal, nil
}

// Cancel withdraws a pending request and returns the reserved stars.
func (s *Service) Cancel(ctx context.Context, userID, withdrawalID string) (*domain.Withdrawal, error) {
	var withdrawal *domain.Withdrawal
	err := s.engine.Execute(ctx, "withdrawal_cancel", []string{userID}, func(ctx context.Context, b *wallet.Batch) error {
		var err error
		withdrawal, err = loadWithdrawal(ctx, b.Tx(), userID, withdrawalID)
		if err != nil {
			return err
		}
		if !CanTransition(withdrawal.Status, domain.WithdrawalCancelled) {
			return apperrors.Wrap(apperrors.ErrWithdrawalStatus, "Withdrawal is %s", withdrawal.Status)
		}

		n, err := b.Tx().UpdateTransactionStatus(ctx, userID, withdrawal.WithdrawalID, domain.StatusPending, domain.StatusCancelled)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.Wrap(apperrors.ErrWithdrawalStatus, "Withdrawal has no pending debit")
		}

		// total_withdrawn never decreases. The reversal entry keeps the ledger summing to the balance.
		if _, err := b.Stage(wallet.Posting{
			UserID:      userID,
			Field:       domain.FieldStars,
			Delta:       withdrawal.Amount,
			Type:        domain.TxWithdrawal,
			ReferenceID: withdrawal.WithdrawalID,
			Description: "Withdrawal cancelled, stars returned",
		}); err != nil {
			return err
		}

		withdrawal.Status = domain.WithdrawalCancelled
		withdrawal.UpdatedAt = b.Now()
		return b.Tx().UpdateWithdrawal(ctx, withdrawal)
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

func loadWithdrawal(ctx context.Context, tx ledger.Tx, userID, withdrawalID string) (*domain.Withdrawal, error) {
	w, err := tx.GetWithdrawal(ctx, userID, withdrawalID, true)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, apperrors.ErrWithdrawalNotFound
	}
	return w, err
}

// History lists the newest withdrawals.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.Withdrawal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var out []domain.Withdrawal
	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.ListWithdrawals(ctx, userID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
