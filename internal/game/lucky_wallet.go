// Package game runs the Lucky Wallet fixed-odds round.
package game

import (
	"crypto/rand"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
)

// Config is the immutable odds and split table.
type Config struct {
	WinThreshold        int             `json:"win_threshold"`
	DrawSpace           int             `json:"draw_space"`
	WinPayoutPercent    int64           `json:"win_payout_percent"`
	WinCharityPercent   int64           `json:"win_charity_percent"`
	LoseCharityPercent  int64           `json:"lose_charity_percent"`
	LosePlatformPercent int64           `json:"lose_platform_percent"`
	MinBet              decimal.Decimal `json:"min_bet"`
	MaxBet              decimal.Decimal `json:"max_bet"`
}

var defaultConfig = Config{
	WinThreshold:        45,
	DrawSpace:           100,
	WinPayoutPercent:    70,
	WinCharityPercent:   30,
	LoseCharityPercent:  45,
	LosePlatformPercent: 55,
	MinBet:              decimal.NewFromInt(10),
	MaxBet:              decimal.NewFromInt(100000),
}

// DefaultConfig returns the production table.
func DefaultConfig() Config { return defaultConfig }

// ValidateBet checks the inclusive bet bounds.
func (c Config) ValidateBet(bet decimal.Decimal) error {
	switch {
	case bet.LessThan(c.MinBet):
		return apperrors.Wrap(apperrors.ErrBetTooSmall, "Minimum bet is %s", c.MinBet)
	case bet.GreaterThan(c.MaxBet):
		return apperrors.Wrap(apperrors.ErrBetTooLarge, "Maximum bet is %s", c.MaxBet)
	}
	return nil
}

// Outcome is the settled economics of one round.
type Outcome struct {
	Result         domain.GameResult
	WonAmount      decimal.Decimal
	BalanceChange  decimal.Decimal
	CharityAmount  decimal.Decimal
	PlatformAmount decimal.Decimal
}

// Settle computes the round for a draw in [1, DrawSpace]. A win returns only part of the bet,
// so the balance change is negative on both branches.
func (c Config) Settle(bet decimal.Decimal, draw int) Outcome {
	if draw <= c.WinThreshold {
		won := domain.Percent(bet, c.WinPayoutPercent)
		return Outcome{
			Result:         domain.GameWin,
			WonAmount:      won,
			BalanceChange:  domain.Cents(won.Sub(bet)),
			CharityAmount:  domain.Percent(bet, c.WinCharityPercent),
			PlatformAmount: decimal.Zero,
		}
	}

	return Outcome{
		Result:         domain.GameLose,
		WonAmount:      decimal.Zero,
		BalanceChange:  bet.Neg(),
		CharityAmount:  domain.Percent(bet, c.LoseCharityPercent),
		PlatformAmount: domain.Percent(bet, c.LosePlatformPercent),
	}
}

// RandomSource draws a uniform integer in [1, n].
type RandomSource interface {
	Draw(n int) (int, error)
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

func (CryptoSource) Draw(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()) + 1, nil
}

// SequenceSource replays fixed draws in order and then repeats the last one.
type SequenceSource struct {
	draws []int
	next  int
}

func NewSequenceSource(draws ...int) *SequenceSource {
	return &SequenceSource{draws: draws}
}

func (s *SequenceSource) Draw(int) (int, error) {
	if len(s.draws) == 0 {
		return 1, nil
	}
	i := min(s.next, len(s.draws)-1)
	s.next++
	return s.draws[i], nil
}
