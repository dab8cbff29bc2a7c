// Package vip manages paid subscription levels unlocked by cumulative recharge.
package vip

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionPeriod is the length of one paid window.
const SubscriptionPeriod = 30 * 24 * time.Hour

// Level describes one VIP tier and its benefits.
type Level struct {
	Level               int             `json:"level"`
	Name                string          `json:"name"`
	RechargeRequirement decimal.Decimal `json:"recharge_requirement"`
	MonthlyFee          decimal.Decimal `json:"monthly_fee"`
	CharityBonus        int             `json:"charity_bonus,omitempty"`
	GamingBonus         int             `json:"gaming_bonus,omitempty"`
	FreeSpinsDaily      int             `json:"free_spins_daily"`
	EducationDiscount   int             `json:"education_discount"`
	PrioritySupport     bool            `json:"priority_support"`
	WithdrawalPriority  bool            `json:"withdrawal_priority"`
	ExclusiveGames      bool            `json:"exclusive_games"`
	BadgeColor          string          `json:"badge_color"`
	Icon                string          `json:"icon"`
}

var levels = []Level{
	{
		Level:               0,
		Name:                "Basic",
		RechargeRequirement: decimal.Zero,
		MonthlyFee:          decimal.Zero,
		BadgeColor:          "#808080",
		Icon:                "user",
	},
	{
		Level:               1,
		Name:                "Bronze",
		RechargeRequirement: decimal.NewFromInt(500),
		MonthlyFee:          decimal.NewFromInt(99),
		CharityBonus:        5,
		FreeSpinsDaily:      2,
		EducationDiscount:   5,
		BadgeColor:          "#CD7F32",
		Icon:                "star",
	},
	{
		Level:               2,
		Name:                "Silver",
		RechargeRequirement: decimal.NewFromInt(2000),
		MonthlyFee:          decimal.NewFromInt(299),
		CharityBonus:        10,
		FreeSpinsDaily:      5,
		EducationDiscount:   10,
		PrioritySupport:     true,
		BadgeColor:          "#C0C0C0",
		Icon:                "star",
	},
	{
		Level:               3,
		Name:                "Gold",
		RechargeRequirement: decimal.NewFromInt(5000),
		MonthlyFee:          decimal.NewFromInt(599),
		CharityBonus:        15,
		FreeSpinsDaily:      10,
		EducationDiscount:   15,
		PrioritySupport:     true,
		WithdrawalPriority:  true,
		ExclusiveGames:      true,
		BadgeColor:          "#FFD700",
		Icon:                "crown",
	},
	{
		Level:               4,
		Name:                "Platinum",
		RechargeRequirement: decimal.NewFromInt(15000),
		MonthlyFee:          decimal.NewFromInt(999),
		GamingBonus:         20,
		FreeSpinsDaily:      20,
		EducationDiscount:   20,
		PrioritySupport:     true,
		WithdrawalPriority:  true,
		ExclusiveGames:      true,
		BadgeColor:          "#E5E4E2",
		Icon:                "crown",
	},
	{
		Level:               5,
		Name:                "Diamond",
		RechargeRequirement: decimal.NewFromInt(50000),
		MonthlyFee:          decimal.NewFromInt(1999),
		GamingBonus:         30,
		FreeSpinsDaily:      50,
		EducationDiscount:   30,
		PrioritySupport:     true,
		WithdrawalPriority:  true,
		ExclusiveGames:      true,
		BadgeColor:          "#B9F2FF",
		Icon:                "diamond",
	},
}

// Levels returns the level table ordered by level.
func Levels() []Level {
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// LevelByNumber looks up a level.
func LevelByNumber(n int) (Level, bool) {
	if n < 0 || n >= len(levels) {
		return Level{}, false
	}
	return levels[n], true
}

// EligibleLevel is the highest level whose recharge requirement total covers.
func EligibleLevel(total decimal.Decimal) int {
	eligible := 0
	for _, l := range levels {
		if total.GreaterThanOrEqual(l.RechargeRequirement) {
			eligible = l.Level
		}
	}
	return eligible
}

// DaysRemaining returns whole days left in the window, never negative. Nil when there is no window.
func DaysRemaining(end *time.Time, now time.Time) *int {
	if end == nil {
		return nil
	}
	days := int(end.Sub(now) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return &days
}
