package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VIPStatus is the per-user subscription state.
type VIPStatus struct {
	UserID            string          `json:"user_id"`
	Level             int             `json:"vip_level"`
	SubscriptionStart *time.Time      `json:"subscription_start"`
	SubscriptionEnd   *time.Time      `json:"subscription_end"`
	TotalRecharged    decimal.Decimal `json:"total_recharged"`
	IsActive          bool            `json:"is_active"`
	AutoRenew         bool            `json:"auto_renew"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewVIPStatus returns the level-0 status created alongside a wallet.
func NewVIPStatus(userID string, now time.Time) *VIPStatus {
	return &VIPStatus{
		UserID:         userID,
		TotalRecharged: decimal.Zero,
		AutoRenew:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
