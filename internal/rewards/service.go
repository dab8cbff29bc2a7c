package rewards

import (
	"context"
	"errors"
	"fmt"
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

// Service pays activity, messaging and host-session rewards.
type Service struct {
	engine    *wallet.Engine
	log       *slog.Logger
	activity  ActivityConfig
	messaging MessagingConfig
	hosting   HostRates
}

// NewService constructs a reward service on top of the wallet engine.
func NewService(engine *wallet.Engine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		engine:    engine,
		log:       log.With("component", "rewards"),
		activity:  Activity(),
		messaging: Messaging(),
		hosting:   Hosting(),
	}
}

// ActivityProgress describes today's presence session.
type ActivityProgress struct {
	Today               string          `json:"today"`
	TotalActiveMinutes  int             `json:"total_active_minutes"`
	MinutesTowardsNext  int             `json:"minutes_towards_next"`
	MinutesRequired     int             `json:"minutes_required"`
	ProgressPercent     float64         `json:"progress_percent"`
	RewardsClaimedToday int             `json:"rewards_claimed_today"`
	RewardsAvailable    int             `json:"rewards_available"`
	MaxDailyRewards     int             `json:"max_daily_rewards"`
	CoinsPerReward      decimal.Decimal `json:"coins_per_reward"`
}

// TrackResult is returned on every presence ping.
type TrackResult struct {
	TotalActiveMinutes int  `json:"total_active_minutes"`
	RewardsAvailable   int  `json:"rewards_available"`
	CanClaim           bool `json:"can_claim"`
}

// ActivityClaim is the outcome of a paid activity reward.
type ActivityClaim struct {
	RewardAmount        decimal.Decimal `json:"reward_amount"`
	IsFirstReward       bool            `json:"is_first_reward"`
	DailyBonusIncluded  bool            `json:"daily_bonus_included"`
	RewardsClaimedToday int             `json:"rewards_claimed_today"`
	WalletBalance       decimal.Decimal `json:"wallet_balance"`
	TransactionID       string          `json:"transaction_id"`
}

// DailySummary aggregates activity rewards for today and the past week.
type DailySummary struct {
	Today            string                   `json:"today"`
	TotalEarnedToday decimal.Decimal          `json:"total_earned_today"`
	RewardsToday     int                      `json:"rewards_today"`
	ActivityStreak   int                      `json:"activity_streak"`
	WeeklyActivities []domain.ActivitySession `json:"weekly_activities"`
	Config           ActivityConfig           `json:"config"`
}

func newActivitySession(userID, date string, now time.Time) *domain.ActivitySession {
	return &domain.ActivitySession{
		SessionID:    domain.NewID("activity"),
		UserID:       userID,
		Date:         date,
		StartedAt:    now,
		LastActiveAt: now,
	}
}

// todaySession returns today's session locked for update, inserting an empty one
// first when none exists yet.
func todaySession(ctx context.Context, tx ledger.Tx, userID string, now time.Time) (*domain.ActivitySession, error) {
	date := domain.DayKey(now)
	session, err := tx.GetActivitySession(ctx, userID, date, true)
	if !errors.Is(err, ledger.ErrNotFound) {
		return session, err
	}

	if _, err := tx.CreateActivitySession(ctx, newActivitySession(userID, date, now)); err != nil {
		return nil, err
	}
	return tx.GetActivitySession(ctx, userID, date, true)
}

// TrackActivity records one minute of presence for today.
func (s *Service) TrackActivity(ctx context.Context, userID string) (*TrackResult, error) {
	var session *domain.ActivitySession
	err := s.engine.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		now := s.engine.Now()

		var err error
		session, err = todaySession(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		session.TotalActiveMinutes++
		session.LastActiveAt = now
		if err := tx.SaveActivitySession(ctx, session); err != nil {
			return err
		}
		return tx.TouchAgency(ctx, userID, now)
	})
	if err != nil {
		return nil, err
	}

	available := s.activity.Available(session.TotalActiveMinutes, session.RewardsClaimed)
	return &TrackResult{
		TotalActiveMinutes: session.TotalActiveMinutes,
		RewardsAvailable:   available,
		CanClaim:           available > 0,
	}, nil
}

// ActivityStatus reports progress towards the next reward, starting today's session if needed.
func (s *Service) ActivityStatus(ctx context.Context, userID string) (*ActivityProgress, error) {
	var session *domain.ActivitySession
	err := s.engine.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		session, err = todaySession(ctx, tx, userID, s.engine.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	towards, percent := s.activity.Progress(session.TotalActiveMinutes)
	return &ActivityProgress{
		Today:               session.Date,
		TotalActiveMinutes:  session.TotalActiveMinutes,
		MinutesTowardsNext:  towards,
		MinutesRequired:     s.activity.MinutesRequired,
		ProgressPercent:     percent,
		RewardsClaimedToday: session.RewardsClaimed,
		RewardsAvailable:    s.activity.Available(session.TotalActiveMinutes, session.RewardsClaimed),
		MaxDailyRewards:     s.activity.MaxDailyRewards,
		CoinsPerReward:      s.activity.CoinsReward,
	}, nil
}

// ClaimActivityReward pays the next available activity reward.
func (s *Service) ClaimActivityReward(ctx context.Context, userID string) (*ActivityClaim, error) {
	var claim ActivityClaim
	err := s.engine.Execute(ctx, "activity_reward", []string{userID}, func(ctx context.Context, b *wallet.Batch) error {
		session, err := b.Tx().GetActivitySession(ctx, userID, domain.DayKey(b.Now()), true)
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.ErrNoActivityToday
		}
		if err != nil {
			return err
		}

		if s.activity.Available(session.TotalActiveMinutes, session.RewardsClaimed) <= 0 {
			if session.RewardsClaimed >= s.activity.MaxDailyRewards {
				return apperrors.Wrap(apperrors.ErrNoRewardsAvailable, "daily limit of %d rewards reached", s.activity.MaxDailyRewards)
			}
			return apperrors.ErrNoRewardsAvailable
		}

		amount, first := s.activity.Payout(session.RewardsClaimed)
		session.RewardsClaimed++

		description := fmt.Sprintf("Activity reward (%d/%d)", session.RewardsClaimed, s.activity.MaxDailyRewards)
		if first {
			description += " + Daily bonus"
		}

		txn, err := b.Stage(wallet.Posting{
			UserID:      userID,
			Field:       domain.FieldCoins,
			Delta:       amount,
			Type:        domain.TxActivityReward,
			ReferenceID: session.SessionID,
			Description: description,
		})
		if err != nil {
			return err
		}
		if err := b.Tx().SaveActivitySession(ctx, session); err != nil {
			return err
		}

		claim = ActivityClaim{
			RewardAmount:        amount,
			IsFirstReward:       first,
			DailyBonusIncluded:  first,
			RewardsClaimedToday: session.RewardsClaimed,
			WalletBalance:       b.Wallet(userID).Coins,
			TransactionID:       txn.TransactionID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.engine.Notify(ctx, notify.Event{
		UserID:    userID,
		Key:       "activity_reward",
		Category:  notify.CategoryReward,
		Params:    map[string]string{"amount": claim.RewardAmount.String()},
		ActionURL: "/rewards",
	})

	return &claim, nil
}

// DailySummary reports today's activity earnings and the weekly streak.
func (s *Service) DailySummary(ctx context.Context, userID string) (*DailySummary, error) {
	now := s.engine.Now()
	summary := &DailySummary{
		Today:  domain.DayKey(now),
		Config: s.activity,
	}

	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		total, count, err := tx.SumTransactions(ctx, ledger.SumFilter{
			UserIDs:  []string{userID},
			Types:    []domain.TransactionType{domain.TxActivityReward},
			Currency: domain.FieldCoins,
			Since:    dayStart,
		})
		if err != nil {
			return err
		}
		summary.TotalEarnedToday = total
		summary.RewardsToday = count

		sessions, err := tx.ListActivitySessions(ctx, userID, 7)
		if err != nil {
			return err
		}
		weekAgo := domain.DayKey(now.AddDate(0, 0, -7))
		summary.WeeklyActivities = make([]domain.ActivitySession, 0, len(sessions))
		for _, session := range sessions {
			if session.Date >= weekAgo {
				summary.WeeklyActivities = append(summary.WeeklyActivities, session)
			}
		}
		summary.ActivityStreak = Streak(summary.WeeklyActivities)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// MessagingClaim is the outcome of a chat reward.
type MessagingClaim struct {
	RewardAmount        decimal.Decimal `json:"reward_amount"`
	RewardsClaimedToday int             `json:"rewards_claimed_today"`
	MaxDailyRewards     int             `json:"max_daily_rewards"`
	WalletBalance       decimal.Decimal `json:"wallet_balance"`
	TransactionID       string          `json:"transaction_id"`
}

// MessagingStatus reports today's chat reward usage.
type MessagingStatus struct {
	RewardsClaimedToday int             `json:"rewards_claimed_today"`
	MaxDailyRewards     int             `json:"max_daily_rewards"`
	RewardPerChat       decimal.Decimal `json:"reward_per_chat"`
	TotalEarnedToday    decimal.Decimal `json:"total_earned_today"`
	CanClaimMore        bool            `json:"can_claim_more"`
}

// ClaimMessagingReward pays one chat reward unless today's cap is reached.
func (s *Service) ClaimMessagingReward(ctx context.Context, userID string) (*MessagingClaim, error) {
	var claim MessagingClaim
	err := s.engine.Execute(ctx, "messaging_reward", []string{userID}, func(ctx context.Context, b *wallet.Batch) error {
		date := domain.DayKey(b.Now())
		count, _, err := b.Tx().CountMessagingRewards(ctx, userID, date)
		if err != nil {
			return err
		}
		if count >= s.messaging.MaxDailyRewards {
			return apperrors.Wrap(apperrors.ErrDailyLimitReached, "Daily limit of %d chat rewards reached", s.messaging.MaxDailyRewards)
		}

		reward := &domain.MessagingReward{
			RewardID:  domain.NewID("msg"),
			UserID:    userID,
			Date:      date,
			Amount:    s.messaging.RewardPerChat,
			CreatedAt: b.Now(),
		}
		txn, err := b.Stage(wallet.Posting{
			UserID:      userID,
			Field:       domain.FieldCoins,
			Delta:       reward.Amount,
			Type:        domain.TxMessagingReward,
			ReferenceID: reward.RewardID,
			Description: fmt.Sprintf("Chat reward (%d/%d)", count+1, s.messaging.MaxDailyRewards),
		})
		if err != nil {
			return err
		}
		if err := b.Tx().InsertMessagingReward(ctx, reward); err != nil {
			return err
		}

		claim = MessagingClaim{
			RewardAmount:        reward.Amount,
			RewardsClaimedToday: count + 1,
			MaxDailyRewards:     s.messaging.MaxDailyRewards,
			WalletBalance:       b.Wallet(userID).Coins,
			TransactionID:       txn.TransactionID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (s *Service) MessagingStatus(ctx context.Context, userID string) (*MessagingStatus, error) {
	var (
		count int
		total decimal.Decimal
	)
	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		count, total, err = tx.CountMessagingRewards(ctx, userID, domain.DayKey(s.engine.Now()))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &MessagingStatus{
		RewardsClaimedToday: count,
		MaxDailyRewards:     s.messaging.MaxDailyRewards,
		RewardPerChat:       s.messaging.RewardPerChat,
		TotalEarnedToday:    total,
		CanClaimMore:        count < s.messaging.MaxDailyRewards,
	}, nil
}

// StartHostSession opens a live session. A user may host one session at a time.
func (s *Service) StartHostSession(ctx context.Context, userID string, hostType domain.HostType) (*domain.HostSession, error) {
	if hostType != domain.HostVideo && hostType != domain.HostAudio {
		return nil, apperrors.ErrInvalidHostType
	}

	var session *domain.HostSession
	err := s.engine.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		now := s.engine.Now()

		_, err := tx.GetActiveHostSession(ctx, userID, true)
		if err == nil {
			return apperrors.ErrSessionAlreadyActive
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		profile, err := hostProfile(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		session = &domain.HostSession{
			SessionID:   domain.NewID("host"),
			UserID:      userID,
			HostType:    hostType,
			Status:      domain.HostSessionActive,
			StartedAt:   now,
			StarsEarned: decimal.Zero,
			IsWelcome:   s.hosting.InWelcomePeriod(profile.RegisteredAt, now),
		}
		err = tx.SaveHostSession(ctx, session)
		if errors.Is(err, ledger.ErrConflict) {
			return apperrors.ErrSessionAlreadyActive
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

func hostProfile(ctx context.Context, tx ledger.Tx, userID string, now time.Time) (*domain.HostProfile, error) {
	profile, err := tx.GetHostProfile(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	profile = &domain.HostProfile{UserID: userID, RegisteredAt: now}
	if err := tx.CreateHostProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// HostSessionResult is returned when a session ends.
type HostSessionResult struct {
	Session       *domain.HostSession `json:"session"`
	StarsEarned   decimal.Decimal     `json:"stars_earned"`
	TransactionID string              `json:"transaction_id,omitempty"`
}

// EndHostSession closes the active session and credits any stars it earned.
func (s *Service) EndHostSession(ctx context.Context, userID string) (*HostSessionResult, error) {
	var result HostSessionResult
	err := s.engine.Execute(ctx, "host_reward", []string{userID}, func(ctx context.Context, b *wallet.Batch) error {
		session, err := b.Tx().GetActiveHostSession(ctx, userID, true)
		if errors.Is(err, ledger.ErrNotFound) {
			return apperrors.ErrNoActiveSession
		}
		if err != nil {
			return err
		}

		profile, err := hostProfile(ctx, b.Tx(), userID, session.StartedAt)
		if err != nil {
			return err
		}

		now := b.Now()
		minutes := int(now.Sub(session.StartedAt) / time.Minute)
		welcome := s.hosting.InWelcomePeriod(profile.RegisteredAt, now)
		stars := s.hosting.Reward(session.HostType, welcome, minutes)

		if stars.IsPositive() {
			txn, err := b.Stage(wallet.Posting{
				UserID:      userID,
				Field:       domain.FieldStars,
				Delta:       stars,
				Type:        domain.TxHostReward,
				ReferenceID: session.SessionID,
				Description: fmt.Sprintf("%s host session (%d min)", session.HostType, minutes),
			})
			if err != nil {
				return err
			}
			result.TransactionID = txn.TransactionID
		}

		ended := now
		session.Status = domain.HostSessionEnded
		session.EndedAt = &ended
		session.DurationMinutes = max(minutes, 0)
		session.StarsEarned = stars
		session.IsWelcome = welcome
		if err := b.Tx().SaveHostSession(ctx, session); err != nil {
			return err
		}

		result.Session = session
		result.StarsEarned = stars
		return b.Tx().TouchAgency(ctx, userID, now)
	})
	if err != nil {
		return nil, err
	}

	if result.StarsEarned.IsPositive() {
		s.engine.Notify(ctx, notify.Event{
			UserID:   userID,
			Key:      "host_reward",
			Category: notify.CategoryReward,
			Params: map[string]string{
				"stars":   result.StarsEarned.String(),
				"minutes": strconv.Itoa(result.Session.DurationMinutes),
			},
			ActionURL: "/wallet",
		})
	}

	return &result, nil
}

// ActiveHostSession returns the running session or nil.
func (s *Service) ActiveHostSession(ctx context.Context, userID string) (*domain.HostSession, error) {
	var session *domain.HostSession
	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		session, err = tx.GetActiveHostSession(ctx, userID, false)
		if errors.Is(err, ledger.ErrNotFound) {
			session = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
