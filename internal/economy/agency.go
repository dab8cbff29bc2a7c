package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/notify"
	"github.com/Proton-105/himera-wallet/internal/wallet"
)

const codeAttempts = 3

// NewReferralCode returns "MN" followed by eight upper-case hex digits.
func NewReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "MN" + strings.ToUpper(raw[:8])
}

// NormalizeCode is how codes are stored and compared.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ReferralView is a referral with the referred user's current standing.
type ReferralView struct {
	domain.Referral
	Active bool `json:"is_active"`
}

// AgencyView is the agent dashboard.
type AgencyView struct {
	domain.AgencyStatus
	ActiveReferrals  int             `json:"active_referrals"`
	MonthlyEarnings  decimal.Decimal `json:"monthly_earnings"`
	HostEarnings     decimal.Decimal `json:"host_earnings"`
	GiftEarnings     decimal.Decimal `json:"gift_earnings"`
	ReferralEarnings decimal.Decimal `json:"referral_earnings"`
	CommissionRate   int             `json:"commission_rate"`
	LevelInfo        Bracket         `json:"level_info"`
	NextLevelInfo    *Bracket        `json:"next_level_info"`
	Referrals        []ReferralView  `json:"referrals"`
	AllLevels        []Bracket       `json:"all_levels"`
}

var earningTypes = []domain.TransactionType{domain.TxHostReward, domain.TxGiftReceived}

// AgencyStatus returns the caller's agent profile, creating it with a fresh referral code on first use.
func (s *Service) AgencyStatus(ctx context.Context, userID string) (*AgencyView, error) {
	var (
		view *AgencyView
		err  error
	)
	for attempt := 0; attempt < codeAttempts; attempt++ {
		err = s.engine.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
			var err error
			view, err = s.agencyView(ctx, tx, userID)
			return err
		})
		if !errors.Is(err, ledger.ErrConflict) {
			break
		}
		s.log.Warn("referral code collision, retrying", "user_id", userID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) agencyView(ctx context.Context, tx ledger.Tx, userID string) (*AgencyView, error) {
	now := s.engine.Now()

	agency, err := tx.GetAgency(ctx, userID, true)
	if errors.Is(err, ledger.ErrNotFound) {
		agency = &domain.AgencyStatus{
			UserID:                userID,
			ReferralCode:          NewReferralCode(),
			TotalCommissionEarned: decimal.Zero,
			CommissionTier:        brackets[0].Tier,
			IsActive:              true,
			LastActiveDate:        now,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := tx.SaveAgency(ctx, agency); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	referrals, err := tx.ListReferrals(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]ReferralView, 0, len(referrals))
	var activeIDs []string
	for _, r := range referrals {
		active, err := referralActive(ctx, tx, r, now)
		if err != nil {
			return nil, err
		}
		views = append(views, ReferralView{Referral: r, Active: active})
		if active {
			activeIDs = append(activeIDs, r.ReferredID)
		}
	}

	since := now.Add(-EarningsWindow)
	host, _, err := tx.SumTransactions(ctx, ledger.SumFilter{
		UserIDs:  []string{userID},
		Types:    []domain.TransactionType{domain.TxHostReward},
		Currency: domain.FieldStars,
		Since:    since,
	})
	if err != nil {
		return nil, err
	}
	gifts, _, err := tx.SumTransactions(ctx, ledger.SumFilter{
		UserIDs:  []string{userID},
		Types:    []domain.TransactionType{domain.TxGiftReceived},
		Currency: domain.FieldStars,
		Since:    since,
	})
	if err != nil {
		return nil, err
	}
	referred := decimal.Zero
	if len(activeIDs) > 0 {
		referred, _, err = tx.SumTransactions(ctx, ledger.SumFilter{
			UserIDs:  activeIDs,
			Types:    earningTypes,
			Currency: domain.FieldStars,
			Since:    since,
		})
		if err != nil {
			return nil, err
		}
	}

	earnings := host.Add(gifts).Add(referred)
	bracket := CommissionRate(earnings)
	if agency.CommissionTier != bracket.Tier {
		agency.CommissionTier = bracket.Tier
		agency.UpdatedAt = now
		if err := tx.SaveAgency(ctx, agency); err != nil {
			return nil, err
		}
	}

	return &AgencyView{
		AgencyStatus:     *agency,
		ActiveReferrals:  len(activeIDs),
		MonthlyEarnings:  earnings,
		HostEarnings:     host,
		GiftEarnings:     gifts,
		ReferralEarnings: referred,
		CommissionRate:   bracket.Rate,
		LevelInfo:        bracket,
		NextLevelInfo:    NextBracket(bracket.Tier),
		Referrals:        views,
		AllLevels:        Brackets(),
	}, nil
}

// referralActive treats a referred user without an agent profile as active; an agent counts
// only while it has earned within the inactivity period.
func referralActive(ctx context.Context, tx ledger.Tx, r domain.Referral, now time.Time) (bool, error) {
	if r.Status != domain.ReferralActive {
		return false, nil
	}
	agent, err := tx.GetAgency(ctx, r.ReferredID, false)
	if errors.Is(err, ledger.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return agent.IsActive && IsAgentActive(agent.LastActiveDate, now), nil
}

// ApplyReferral links the caller to the owner of code. A user can be referred only once.
func (s *Service) ApplyReferral(ctx context.Context, userID, code string) (*domain.Referral, error) {
	var referral *domain.Referral
	err := s.engine.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		now := s.engine.Now()

		_, err := tx.GetReferralByReferred(ctx, userID)
		if err == nil {
			return apperrors.ErrAlreadyReferred
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		referrer, err := tx.GetAgencyByCode(ctx, NormalizeCode(code))
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.ErrReferralCodeNotFound
		}
		if err != nil {
			return err
		}
		if referrer.UserID == userID {
			return apperrors.ErrSelfReferral
		}

		referral = &domain.Referral{
			ReferralID: domain.NewID("ref"),
			ReferrerID: referrer.UserID,
			ReferredID: userID,
			Status:     domain.ReferralActive,
			CreatedAt:  now,
		}
		err = tx.InsertReferral(ctx, referral)
		if errors.Is(err, ledger.ErrConflict) {
			return apperrors.ErrAlreadyReferred
		}
		if err != nil {
			return err
		}

		locked, err := tx.GetAgency(ctx, referrer.UserID, true)
		if err != nil {
			return err
		}
		locked.TotalReferrals++
		locked.UpdatedAt = now
		return tx.SaveAgency(ctx, locked)
	})
	if err != nil {
		return nil, err
	}

	s.engine.Notify(ctx, notify.Event{
		UserID:    referral.ReferrerID,
		Key:       "new_referral",
		Category:  notify.CategoryAgency,
		ActionURL: "/agency",
	})

	return referral, nil
}

// SweepInactiveAgents deactivates agents that have not earned within the inactivity period.
func (s *Service) SweepInactiveAgents(ctx context.Context) (int, error) {
	deactivated := 0
	err := s.engine.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		now := s.engine.Now()
		stale, err := tx.ListStaleAgents(ctx, now.Add(-InactivityPeriod))
		if err != nil {
			return err
		}

		deactivated = 0
		for i := range stale {
			agent := &stale[i]
			agent.IsActive = false
			agent.UpdatedAt = now
			if err := tx.SaveAgency(ctx, agent); err != nil {
				return err
			}
			deactivated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if deactivated > 0 {
		s.log.Info("inactive agents swept", "deactivated", deactivated)
	}
	return deactivated, nil
}

// Commissions pages through the caller's referral commission transactions.
func (s *Service) Commissions(ctx context.Context, userID string, limit, offset int) (*wallet.TransactionPage, error) {
	return s.engine.Transactions(ctx, userID, domain.TxReferralCommission, limit, offset)
}

// Conversion is the outcome of a stars to coins conversion.
type Conversion struct {
	StarsConverted decimal.Decimal `json:"stars_converted"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	FeePercent     int             `json:"fee_percent"`
	CoinsReceived  decimal.Decimal `json:"coins_received"`
	TransactionID  string          `json:"transaction_id"`
	Wallet         *domain.Wallet  `json:"wallet"`
}

// ConvertStars exchanges stars for coins minus the conversion fee.
func (s *Service) ConvertStars(ctx context.Context, userID string, amount decimal.Decimal) (*Conversion, error) {
	amount = domain.Cents(amount)
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}

	fee := domain.Percent(amount, ConversionFeePercent)
	received := amount.Sub(fee)
	result := &Conversion{
		StarsConverted: amount,
		FeeAmount:      fee,
		FeePercent:     ConversionFeePercent,
		CoinsReceived:  received,
	}

	err := s.engine.Execute(ctx, "stars_conversion", []string{userID}, func(ctx context.Context, b *wallet.Batch) error {
		if b.Wallet(userID).Stars.LessThan(amount) {
			return apperrors.Wrap(apperrors.ErrInsufficientBalance, "Insufficient stars balance")
		}

		description := fmt.Sprintf("Converted %s stars to %s coins (%d%% fee: %s)", amount, received, ConversionFeePercent, fee)
		debit, err := b.Stage(wallet.Posting{
			UserID:      userID,
			Field:       domain.FieldStars,
			Delta:       amount.Neg(),
			Type:        domain.TxStarsConversion,
			Description: description,
		})
		if err != nil {
			return err
		}
		credit, err := b.Stage(wallet.Posting{
			UserID:      userID,
			Field:       domain.FieldCoins,
			Delta:       received,
			Type:        domain.TxStarsConversion,
			ReferenceID: debit.TransactionID,
			Description: description,
		})
		if err != nil {
			return err
		}

		result.TransactionID = credit.TransactionID
		result.Wallet = b.Wallet(userID).Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
