package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GiftRecord captures one gift send, including how the value was split.
type GiftRecord struct {
	GiftRecordID   string          `json:"gift_record_id"`
	SenderID       string          `json:"sender_id"`
	ReceiverID     string          `json:"receiver_id"`
	GiftID         string          `json:"gift_id"`
	GiftName       string          `json:"gift_name"`
	GiftPrice      decimal.Decimal `json:"gift_price"`
	Quantity       int             `json:"quantity"`
	TotalValue     decimal.Decimal `json:"total_value"`
	CharityAmount  decimal.Decimal `json:"charity_amount"`
	ReceiverAmount decimal.Decimal `json:"receiver_amount"`
	Message        string          `json:"message,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CharityWallet is the global charity aggregate.
type CharityWallet struct {
	TotalBalance     decimal.Decimal `json:"total_balance"`
	TotalReceived    decimal.Decimal `json:"total_received"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Charity contribution sources.
const (
	CharitySourceGift        = "gift"
	CharitySourceLuckyWallet = "lucky_wallet"
)

// CharityContribution attributes a charity inflow to a user.
type CharityContribution struct {
	ContributionID string          `json:"contribution_id"`
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Source         string          `json:"source"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LeaderboardEntry is an aggregated total per user.
type LeaderboardEntry struct {
	Rank   int             `json:"rank"`
	UserID string          `json:"user_id"`
	Name   string          `json:"name"`
	Total  decimal.Decimal `json:"total"`
	Count  int             `json:"count"`
}
