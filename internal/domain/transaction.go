package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates every kind of balance change.
type TransactionType string

const (
	TxDeposit             TransactionType = "deposit"
	TxWithdrawal          TransactionType = "withdrawal"
	TxVIPSubscription     TransactionType = "vip_subscription"
	TxVIPRenewal          TransactionType = "vip_renewal"
	TxBonus               TransactionType = "bonus"
	TxGameBet             TransactionType = "game_bet"
	TxGameWin             TransactionType = "game_win"
	TxTransfer            TransactionType = "transfer"
	TxActivityReward      TransactionType = "activity_reward"
	TxDailyReward         TransactionType = "daily_reward"
	TxReferralCommission  TransactionType = "referral_commission"
	TxCharityContribution TransactionType = "charity_contribution"
	TxGiftSent            TransactionType = "gift_sent"
	TxGiftReceived        TransactionType = "gift_received"
	TxMessagingReward     TransactionType = "messaging_reward"
	TxHostReward          TransactionType = "host_reward"
	TxStarsConversion     TransactionType = "stars_conversion"
)

// TransactionStatus tracks settlement of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Transaction is an immutable ledger entry. Amount is signed: negative is a debit.
type Transaction struct {
	TransactionID string            `json:"transaction_id"`
	UserID        string            `json:"user_id"`
	Type          TransactionType   `json:"transaction_type"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      BalanceField      `json:"currency_type"`
	Status        TransactionStatus `json:"status"`
	ReferenceID   string            `json:"reference_id,omitempty"`
	Description   string            `json:"description,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
