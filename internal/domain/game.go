package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameResult is the outcome of a Lucky Wallet round.
type GameResult string

const (
	GameWin  GameResult = "win"
	GameLose GameResult = "lose"
)

// LuckyWalletGame records a single round for audit and leaderboards.
type LuckyWalletGame struct {
	GameID         string          `json:"game_id"`
	UserID         string          `json:"user_id"`
	BetAmount      decimal.Decimal `json:"bet_amount"`
	Draw           int             `json:"random_number"`
	Threshold      int             `json:"win_threshold"`
	Result         GameResult      `json:"result"`
	WonAmount      decimal.Decimal `json:"won_amount"`
	BalanceChange  decimal.Decimal `json:"balance_change"`
	CharityAmount  decimal.Decimal `json:"charity_amount"`
	PlatformAmount decimal.Decimal `json:"platform_amount"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	Date           string          `json:"date"`
	CreatedAt      time.Time       `json:"created_at"`
}
