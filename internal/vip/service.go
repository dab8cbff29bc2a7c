package vip

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/notify"
	"github.com/Proton-105/himera-wallet/internal/wallet"
)

// Recorder adds deposits to total_recharged inside the deposit transaction.
type Recorder struct{}

// RecordRecharge adds amount to total_recharged and returns the level it now qualifies for.
func (Recorder) RecordRecharge(ctx context.Context, tx ledger.Tx, userID string, amount decimal.Decimal, at time.Time) (int, error) {
	status, err := loadForUpdate(ctx, tx, userID, at)
	if err != nil {
		return 0, err
	}

	status.TotalRecharged = status.TotalRecharged.Add(amount)
	status.UpdatedAt = at
	if err := tx.SaveVIPStatus(ctx, status); err != nil {
		return 0, err
	}

	return EligibleLevel(status.TotalRecharged), nil
}

func loadForUpdate(ctx context.Context, tx ledger.Tx, userID string, now time.Time) (*domain.VIPStatus, error) {
	status, err := tx.GetVIPStatus(ctx, userID, true)
	if errors.Is(err, ledger.ErrNotFound) {
		return domain.NewVIPStatus(userID, now), nil
	}
	return status, err
}

// Service manages VIP subscriptions and their renewal.
type Service struct {
	engine *wallet.Engine
	log    *slog.Logger
}

// NewService constructs a VIP service.
func NewService(engine *wallet.Engine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{engine: engine, log: log}
}

// StatusView is the stored status enriched with level data.
type StatusView struct {
	domain.VIPStatus
	CurrentLevelData Level `json:"current_level_data"`
	EligibleLevel    int   `json:"eligible_level"`
	DaysRemaining    *int  `json:"days_remaining"`
}

func (s *Service) Status(ctx context.Context, userID string) (*StatusView, error) {
	var status *domain.VIPStatus
	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		status, err = tx.GetVIPStatus(ctx, userID, false)
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.ErrVIPStatusNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	current, ok := LevelByNumber(status.Level)
	if !ok {
		current = levels[0]
	}

	return &StatusView{
		VIPStatus:        *status,
		CurrentLevelData: current,
		EligibleLevel:    EligibleLevel(status.TotalRecharged),
		DaysRemaining:    DaysRemaining(status.SubscriptionEnd, s.engine.Now()),
	}, nil
}

// SubscribeResult is returned by Subscribe.
type SubscribeResult struct {
	Status        *domain.VIPStatus `json:"vip_status"`
	Level         Level             `json:"level"`
	TransactionID string            `json:"transaction_id,omitempty"`
}

// Subscribe charges the monthly fee and opens a fresh 30-day window at level.
func (s *Service) Subscribe(ctx context.Context, userID string, level int) (*SubscribeResult, error) {
	lvl, ok := LevelByNumber(level)
	if !ok {
		return nil, apperrors.ErrInvalidLevel
	}

	result := &SubscribeResult{Level: lvl}
	err := s.engine.Execute(ctx, "vip_subscribe", []string{userID}, func(ctx context.Context, b *wallet.Batch) error {
		status, err := loadForUpdate(ctx, b.Tx(), userID, b.Now())
		if err != nil {
			return err
		}

		if status.TotalRecharged.LessThan(lvl.RechargeRequirement) {
			return apperrors.Wrap(apperrors.ErrInsufficientRecharge,
				"Need to recharge %s to unlock %s", lvl.RechargeRequirement.String(), lvl.Name)
		}
		if b.Wallet(userID).Coins.LessThan(lvl.MonthlyFee) {
			return apperrors.ErrInsufficientBalance
		}

		if lvl.MonthlyFee.IsPositive() {
			txn, err := b.Stage(wallet.Posting{
				UserID:      userID,
				Field:       domain.FieldCoins,
				Delta:       lvl.MonthlyFee.Neg(),
				Type:        domain.TxVIPSubscription,
				Description: "VIP " + lvl.Name + " subscription",
			})
			if err != nil {
				return err
			}
			result.TransactionID = txn.TransactionID
		}

		openWindow(status, lvl.Level, b.Now())
		if err := b.Tx().SaveVIPStatus(ctx, status); err != nil {
			return err
		}

		result.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.engine.Notify(ctx, notify.Event{
		UserID:    userID,
		Key:       "vip_activated",
		Category:  notify.CategoryVIP,
		Params:    map[string]string{"level": lvl.Name},
		ActionURL: "/vip",
	})

	return result, nil
}

func openWindow(status *domain.VIPStatus, level int, now time.Time) {
	end := now.Add(SubscriptionPeriod)
	start := now
	status.Level = level
	status.SubscriptionStart = &start
	status.SubscriptionEnd = &end
	status.IsActive = true
	status.UpdatedAt = now
}

// Cancel turns auto-renew off. The current window stays valid until it ends.
func (s *Service) Cancel(ctx context.Context, userID string) (*domain.VIPStatus, error) {
	status, err := s.updateStatus(ctx, userID, func(st *domain.VIPStatus) { st.AutoRenew = false })
	if err != nil {
		return nil, err
	}

	s.engine.Notify(ctx, notify.Event{
		UserID:    userID,
		Key:       "vip_cancelled",
		Category:  notify.CategoryVIP,
		ActionURL: "/vip",
	})

	return status, nil
}

// ToggleAutoRenew flips auto-renew and returns the new value.
func (s *Service) ToggleAutoRenew(ctx context.Context, userID string) (bool, error) {
	status, err := s.updateStatus(ctx, userID, func(st *domain.VIPStatus) { st.AutoRenew = !st.AutoRenew })
	if err != nil {
		return false, err
	}
	return status.AutoRenew, nil
}

func (s *Service) updateStatus(ctx context.Context, userID string, mutate func(*domain.VIPStatus)) (*domain.VIPStatus, error) {
	var status *domain.VIPStatus
	err := s.engine.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		status, err = tx.GetVIPStatus(ctx, userID, true)
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.ErrVIPStatusNotFound
		}
		if err != nil {
			return err
		}

		mutate(status)
		status.UpdatedAt = s.engine.Now()
		return tx.SaveVIPStatus(ctx, status)
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// IsActive reports whether the user currently holds an active subscription.
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	return IsActive(ctx, s.engine, userID)
}

// Viewer is the read side IsActive needs.
type Viewer interface {
	View(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error
}

// IsActive reads the VIP flag through any ledger viewer. A missing status counts as inactive.
func IsActive(ctx context.Context, v Viewer, userID string) (bool, error) {
	active := false
	err := v.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		status, err := tx.GetVIPStatus(ctx, userID, false)
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		active = status.IsActive
		return nil
	})
	return active, err
}

// ExpiryReport summarises one sweep.
type ExpiryReport struct {
	Renewed int
	Expired int
	Failed  int
}

// ExpireDue renews or deactivates every active subscription whose window has ended.
func (s *Service) ExpireDue(ctx context.Context, batchSize int) (ExpiryReport, error) {
	var report ExpiryReport

	now := s.engine.Now()
	var due []domain.VIPStatus
	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		due, err = tx.ListDueVIP(ctx, now, batchSize)
		return err
	})
	if err != nil {
		return report, err
	}

	for _, candidate := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		renewed, err := s.expireOne(ctx, candidate.UserID)
		switch {
		case err != nil:
			report.Failed++
			s.log.Error("vip expiry failed", slog.String("user_id", candidate.UserID), slog.Any("error", err))
		case renewed == nil:
			// already handled by another worker
		case *renewed:
			report.Renewed++
		default:
			report.Expired++
		}
	}

	if report.Renewed+report.Expired+report.Failed > 0 {
		s.log.Info("vip expiry sweep finished",
			slog.Int("renewed", report.Renewed),
			slog.Int("expired", report.Expired),
			slog.Int("failed", report.Failed),
		)
	}

	return report, nil
}

// expireOne returns nil when the subscription was no longer due.
func (s *Service) expireOne(ctx context.Context, userID string) (*bool, error) {
	var (
		renewed *bool
		lvl     Level
	)

	err := s.engine.Execute(ctx, "vip_expire", []string{userID}, func(ctx context.Context, b *wallet.Batch) error {
		status, err := b.Tx().GetVIPStatus(ctx, userID, true)
		if err != nil {
			return err
		}
		if !status.IsActive || status.SubscriptionEnd == nil || status.SubscriptionEnd.After(b.Now()) {
			return nil
		}

		lvl, _ = LevelByNumber(status.Level)
		ok := status.AutoRenew && b.Wallet(userID).Coins.GreaterThanOrEqual(lvl.MonthlyFee)
		if ok {
			if lvl.MonthlyFee.IsPositive() {
				if _, err := b.Stage(wallet.Posting{
					UserID:      userID,
					Field:       domain.FieldCoins,
					Delta:       lvl.MonthlyFee.Neg(),
					Type:        domain.TxVIPRenewal,
					Description: "VIP " + lvl.Name + " renewal",
				}); err != nil {
					return err
				}
			}
			openWindow(status, status.Level, b.Now())
		} else {
			status.IsActive = false
			status.UpdatedAt = b.Now()
		}

		renewed = &ok
		return b.Tx().SaveVIPStatus(ctx, status)
	})
	if err != nil || renewed == nil {
		return nil, err
	}

	key := "vip_expired"
	if *renewed {
		key = "vip_renewed"
	}
	s.engine.Notify(ctx, notify.Event{
		UserID:    userID,
		Key:       key,
		Category:  notify.CategoryVIP,
		Params:    map[string]string{"level": lvl.Name, "fee": lvl.MonthlyFee.String(), "days": strconv.Itoa(int(SubscriptionPeriod.Hours() / 24))},
		ActionURL: "/vip",
	})

	return renewed, nil
}
