// Package ledger persists wallets, their transactions and every record tied to a balance change.
//
// All mutations run inside Store.Atomic: the callback either commits as a whole or leaves
// no trace. Reads that must see a consistent snapshot use Store.View.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrConflict is returned when an insert collides with a unique key.
	ErrConflict = errors.New("ledger: conflict")
	// ErrReadOnly is returned when a write is attempted inside View.
	ErrReadOnly = errors.New("ledger: read-only transaction")
)

// Store runs units of work against the ledger.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	HealthCheck(ctx context.Context) error
}

// Tx is the set of primitives available inside a unit of work.
type Tx interface {
	UserTx
	WalletTx
	VIPTx
	RewardTx
	AgencyTx
	GiftTx
	CharityTx
	GameTx
	PayoutTx
	NotificationTx
}

type UserTx interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
}

// TransactionFilter selects a page of a user's transactions, newest first.
type TransactionFilter struct {
	UserID string
	Type   domain.TransactionType
	Limit  int
	Offset int
}

// SumFilter aggregates signed transaction amounts.
type SumFilter struct {
	UserIDs  []string
	Types    []domain.TransactionType
	Currency domain.BalanceField
	Since    time.Time
}

type WalletTx interface {
	GetWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	// LockWallets reads the wallets for update, locking rows in ascending user id order.
	LockWallets(ctx context.Context, userIDs ...string) (map[string]*domain.Wallet, error)
	CreateWallet(ctx context.Context, wallet *domain.Wallet) error
	UpdateWallet(ctx context.Context, wallet *domain.Wallet) error
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error
	// UpdateTransactionStatus moves the user's entries linked to referenceID from one
	// status to another and returns how many changed. Amounts never change.
	UpdateTransactionStatus(ctx context.Context, userID, referenceID string, from, to domain.TransactionStatus) (int, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, int, error)
	SumTransactions(ctx context.Context, filter SumFilter) (decimal.Decimal, int, error)
}

type VIPTx interface {
	GetVIPStatus(ctx context.Context, userID string, forUpdate bool) (*domain.VIPStatus, error)
	SaveVIPStatus(ctx context.Context, status *domain.VIPStatus) error
	// ListDueVIP returns active subscriptions whose window ended at or before now.
	ListDueVIP(ctx context.Context, now time.Time, limit int) ([]domain.VIPStatus, error)
}

type RewardTx interface {
	GetActivitySession(ctx context.Context, userID, date string, forUpdate bool) (*domain.ActivitySession, error)
	// CreateActivitySession inserts the session unless the (user, date) row exists and
	// reports whether it did. Concurrent callers block until the winner commits.
	CreateActivitySession(ctx context.Context, session *domain.ActivitySession) (bool, error)
	SaveActivitySession(ctx context.Context, session *domain.ActivitySession) error
	ListActivitySessions(ctx context.Context, userID string, limit int) ([]domain.ActivitySession, error)
	CountMessagingRewards(ctx context.Context, userID, date string) (int, decimal.Decimal, error)
	InsertMessagingReward(ctx context.Context, reward *domain.MessagingReward) error
	GetHostProfile(ctx context.Context, userID string) (*domain.HostProfile, error)
	CreateHostProfile(ctx context.Context, profile *domain.HostProfile) error
	GetActiveHostSession(ctx context.Context, userID string, forUpdate bool) (*domain.HostSession, error)
	SaveHostSession(ctx context.Context, session *domain.HostSession) error
}

type AgencyTx interface {
	GetAgency(ctx context.Context, userID string, forUpdate bool) (*domain.AgencyStatus, error)
	GetAgencyByCode(ctx context.Context, code string) (*domain.AgencyStatus, error)
	SaveAgency(ctx context.Context, agency *domain.AgencyStatus) error
	// TouchAgency marks an existing agent active at at. Missing agents are ignored.
	TouchAgency(ctx context.Context, userID string, at time.Time) error
	// ListStaleAgents returns active agents last seen before the cutoff.
	ListStaleAgents(ctx context.Context, before time.Time) ([]domain.AgencyStatus, error)
	GetReferralByReferred(ctx context.Context, referredID string) (*domain.Referral, error)
	InsertReferral(ctx context.Context, referral *domain.Referral) error
	ListReferrals(ctx context.Context, referrerID string) ([]domain.Referral, error)
}

// GiftRole picks which side of a gift a query aggregates on.
type GiftRole string

const (
	GiftSender   GiftRole = "sender"
	GiftReceiver GiftRole = "receiver"
)

// GiftFilter selects gift records newest first. Exactly one of the ids is expected.
type GiftFilter struct {
	SenderID   string
	ReceiverID string
	Limit      int
}

type GiftTx interface {
	InsertGiftRecord(ctx context.Context, record *domain.GiftRecord) error
	ListGiftRecords(ctx context.Context, filter GiftFilter) ([]domain.GiftRecord, error)
	GiftLeaderboard(ctx context.Context, role GiftRole, limit int) ([]domain.LeaderboardEntry, error)
}

type CharityTx interface {
	// AddCharity increments the singleton charity wallet, creating it on first use.
	AddCharity(ctx context.Context, amount decimal.Decimal, at time.Time) error
	GetCharityWallet(ctx context.Context) (*domain.CharityWallet, error)
	InsertCharityContribution(ctx context.Context, contribution *domain.CharityContribution) error
	ListCharityContributions(ctx context.Context, userID string, limit int) ([]domain.CharityContribution, error)
	UserCharityTotal(ctx context.Context, userID string) (decimal.Decimal, int, error)
	CharityLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

type GameTx interface {
	InsertGame(ctx context.Context, game *domain.LuckyWalletGame) error
	// ListGames returns a user's rounds newest first; an empty date means all days.
	ListGames(ctx context.Context, userID, date string, limit int) ([]domain.LuckyWalletGame, error)
}

type PayoutTx interface {
	InsertPaymentMethod(ctx context.Context, method *domain.PaymentMethod) error
	GetPaymentMethod(ctx context.Context, userID, methodID string) (*domain.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error)
	ClearDefaultPaymentMethods(ctx context.Context, userID string) error
	InsertWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error
	GetWithdrawal(ctx context.Context, userID, withdrawalID string, forUpdate bool) (*domain.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error
	ListWithdrawals(ctx context.Context, userID string, limit int) ([]domain.Withdrawal, error)
}

type NotificationTx interface {
	InsertNotification(ctx context.Context, n *domain.Notification) error
	// ListNotifications returns the newest notifications and the total unread count.
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, int, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

func normalizeLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
