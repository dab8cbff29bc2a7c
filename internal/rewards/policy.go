// Package rewards pays the three daily-capped reward streams: activity, messaging and hosting.
package rewards

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

// ActivityConfig controls presence rewards.
type ActivityConfig struct {
	MinutesRequired int             `json:"minutes_required"`
	CoinsReward     decimal.Decimal `json:"coins_reward"`
	MaxDailyRewards int             `json:"max_daily_rewards"`
	DailyBonusCoins decimal.Decimal `json:"daily_bonus_coins"`
}

// MessagingConfig controls chat rewards.
type MessagingConfig struct {
	RewardPerChat   decimal.Decimal `json:"reward_per_chat"`
	MaxDailyRewards int             `json:"max_daily_rewards"`
}

// HostRate pays Stars for every full Block of minutes once Minimum is reached.
type HostRate struct {
	Block   int
	Stars   decimal.Decimal
	Minimum int
}

// HostRates holds the four host payout rules.
type HostRates struct {
	VideoWelcome  HostRate
	VideoNormal   HostRate
	AudioWelcome  HostRate
	AudioNormal   HostRate
	WelcomePeriod time.Duration
}

var (
	defaultActivity = ActivityConfig{
		MinutesRequired: 15,
		CoinsReward:     decimal.NewFromInt(200),
		MaxDailyRewards: 6,
		DailyBonusCoins: decimal.NewFromInt(50),
	}

	defaultMessaging = MessagingConfig{
		RewardPerChat:   decimal.NewFromInt(20),
		MaxDailyRewards: 50,
	}

	defaultHostRates = HostRates{
		VideoWelcome:  HostRate{Block: 60, Stars: decimal.NewFromInt(2000), Minimum: 60},
		VideoNormal:   HostRate{Block: 60, Stars: decimal.NewFromInt(1000), Minimum: 60},
		AudioWelcome:  HostRate{Block: 120, Stars: decimal.NewFromInt(3000), Minimum: 120},
		AudioNormal:   HostRate{Block: 60, Stars: decimal.NewFromInt(500)},
		WelcomePeriod: 7 * 24 * time.Hour,
	}
)

// Activity returns the activity reward table.
func Activity() ActivityConfig { return defaultActivity }

// Messaging returns the messaging reward table.
func Messaging() MessagingConfig { return defaultMessaging }

// Hosting returns the host payout table.
func Hosting() HostRates { return defaultHostRates }

// Available is the number of activity rewards claimable right now. It is never negative.
func (c ActivityConfig) Available(minutes, claimed int) int {
	earned := minutes/c.MinutesRequired - claimed
	remaining := c.MaxDailyRewards - claimed
	return max(0, min(earned, remaining))
}

// Payout is the coin amount of the next claim. The first claim of the day carries the bonus.
func (c ActivityConfig) Payout(claimed int) (amount decimal.Decimal, firstOfDay bool) {
	if claimed == 0 {
		return c.CoinsReward.Add(c.DailyBonusCoins), true
	}
	return c.CoinsReward, false
}

// Progress reports minutes accrued towards the next reward and that share in percent.
func (c ActivityConfig) Progress(minutes int) (towardsNext int, percent float64) {
	towardsNext = minutes % c.MinutesRequired
	return towardsNext, float64(towardsNext) / float64(c.MinutesRequired) * 100
}

// Rate picks the payout rule for a session.
func (r HostRates) Rate(hostType domain.HostType, welcome bool) HostRate {
	switch {
	case hostType == domain.HostVideo && welcome:
		return r.VideoWelcome
	case hostType == domain.HostVideo:
		return r.VideoNormal
	case welcome:
		return r.AudioWelcome
	default:
		return r.AudioNormal
	}
}

// InWelcomePeriod reports whether a host registered at registeredAt still earns welcome rates at now.
func (r HostRates) InWelcomePeriod(registeredAt, now time.Time) bool {
	return now.Sub(registeredAt) < r.WelcomePeriod
}

// Reward computes the stars earned for a session of the given length.
func (r HostRates) Reward(hostType domain.HostType, welcome bool, minutes int) decimal.Decimal {
	rate := r.Rate(hostType, welcome)
	if minutes < rate.Minimum || minutes < 0 {
		return decimal.Zero
	}
	return rate.Stars.Mul(decimal.NewFromInt(int64(minutes / rate.Block)))
}

// Streak counts consecutive days with at least one claimed reward, newest first.
// sessions must be sorted by date descending.
func Streak(sessions []domain.ActivitySession) int {
	streak := 0
	for _, s := range sessions {
		if s.RewardsClaimed <= 0 {
			break
		}
		streak++
	}
	return streak
}
