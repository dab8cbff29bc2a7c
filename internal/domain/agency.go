package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgencyStatus is the agent profile attached to a referral code.
type AgencyStatus struct {
	UserID                string          `json:"user_id"`
	ReferralCode          string          `json:"referral_code"`
	TotalReferrals        int             `json:"total_referrals"`
	TotalCommissionEarned decimal.Decimal `json:"total_commission_earned"`
	CommissionTier        int             `json:"commission_tier"`
	IsActive              bool            `json:"is_active"`
	LastActiveDate        time.Time       `json:"last_active_date"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// Referral links a referrer to the user who applied their code. It is created once.
type Referral struct {
	ReferralID string    `json:"referral_id"`
	ReferrerID string    `json:"referrer_id"`
	ReferredID string    `json:"referred_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReferralActive is the status every referral is created with.
const ReferralActive = "active"
