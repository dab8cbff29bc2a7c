package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceField names one of the four spendable balances of a wallet.
type BalanceField string

const (
	FieldCoins        BalanceField = "coins"
	FieldStars        BalanceField = "stars"
	FieldBonus        BalanceField = "bonus"
	FieldWithdrawable BalanceField = "withdrawable"
)

// ErrNegativeBalance is returned when a delta would drive a balance below zero.
var ErrNegativeBalance = errors.New("balance would become negative")

// ErrUnknownField is returned for a balance name outside the enumerated set.
var ErrUnknownField = errors.New("unknown balance field")

// ParseBalanceField accepts both the short ("coins") and column ("coins_balance") spelling.
func ParseBalanceField(name string) (BalanceField, bool) {
	switch name {
	case "coins", "coins_balance":
		return FieldCoins, true
	case "stars", "stars_balance":
		return FieldStars, true
	case "bonus", "bonus_balance":
		return FieldBonus, true
	case "withdrawable", "withdrawable_balance":
		return FieldWithdrawable, true
	default:
		return "", false
	}
}

// Wallet holds every balance a user owns. Balances are never negative.
type Wallet struct {
	UserID         string          `json:"user_id"`
	Coins          decimal.Decimal `json:"coins_balance"`
	Stars          decimal.Decimal `json:"stars_balance"`
	Bonus          decimal.Decimal `json:"bonus_balance"`
	Withdrawable   decimal.Decimal `json:"withdrawable_balance"`
	TotalDeposited decimal.Decimal `json:"total_deposited"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Seed wallet values granted on the first session.
var (
	SeedCoins = decimal.NewFromInt(1000)
	SeedBonus = decimal.NewFromInt(100)
)

// NewWallet builds the seeded wallet for a new user.
func NewWallet(userID string, now time.Time) *Wallet {
	return &Wallet{
		UserID:         userID,
		Coins:          SeedCoins,
		Stars:          decimal.Zero,
		Bonus:          SeedBonus,
		Withdrawable:   decimal.Zero,
		TotalDeposited: decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Balance returns the current value of field.
func (w *Wallet) Balance(field BalanceField) (decimal.Decimal, error) {
	switch field {
	case FieldCoins:
		return w.Coins, nil
	case FieldStars:
		return w.Stars, nil
	case FieldBonus:
		return w.Bonus, nil
	case FieldWithdrawable:
		return w.Withdrawable, nil
	default:
		return decimal.Zero, ErrUnknownField
	}
}

// Apply adds delta to field, refusing to go below zero.
func (w *Wallet) Apply(field BalanceField, delta decimal.Decimal, now time.Time) error {
	current, err := w.Balance(field)
	if err != nil {
		return err
	}

	next := current.Add(delta)
	if next.IsNegative() {
		return ErrNegativeBalance
	}

	switch field {
	case FieldCoins:
		w.Coins = next
	case FieldStars:
		w.Stars = next
	case FieldBonus:
		w.Bonus = next
	case FieldWithdrawable:
		w.Withdrawable = next
	}
	w.UpdatedAt = now

	return nil
}

// Clone returns an independent copy.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	cp := *w
	return &cp
}
