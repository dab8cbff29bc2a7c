package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/notify"
	"github.com/Proton-105/himera-wallet/internal/wallet"
	"github.com/Proton-105/himera-wallet/pkg/metrics"
)

// Service plays Lucky Wallet rounds against the caller's coins.
type Service struct {
	engine *wallet.Engine
	random RandomSource
	cfg    Config
	log    *slog.Logger
}

// NewService builds the game service. A nil source falls back to crypto/rand.
func NewService(engine *wallet.Engine, random RandomSource, log *slog.Logger) *Service {
	if random == nil {
		random = CryptoSource{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{engine: engine, random: random, cfg: DefaultConfig(), log: log.With("component", "lucky_wallet")}
}

// Config returns the odds table in use.
func (s *Service) Config() Config { return s.cfg }

// PlayResult is the settled round together with the updated wallet.
type PlayResult struct {
	Game          *domain.LuckyWalletGame `json:"game"`
	TransactionID string                  `json:"transaction_id"`
	Wallet        *domain.Wallet          `json:"wallet"`
}

// Play settles one round against the caller's coins.
func (s *Service) Play(ctx context.Context, userID string, bet decimal.Decimal) (*PlayResult, error) {
	bet = domain.Cents(bet)
	if err := s.cfg.ValidateBet(bet); err != nil {
		return nil, err
	}

	draw, err := s.random.Draw(s.cfg.DrawSpace)
	if err != nil {
		return nil, fmt.Errorf("draw: %w", err)
	}
	outcome := s.cfg.Settle(bet, draw)

	result := &PlayResult{}
	err = s.engine.Execute(ctx, "lucky_wallet", []string{userID}, func(ctx context.Context, b *wallet.Batch) error {
		tx := b.Tx()
		if b.Wallet(userID).Coins.LessThan(bet) {
			return apperrors.ErrInsufficientBalance
		}

		game := &domain.LuckyWalletGame{
			GameID:         domain.NewID("game"),
			UserID:         userID,
			BetAmount:      bet,
			Draw:           draw,
			Threshold:      s.cfg.WinThreshold,
			Result:         outcome.Result,
			WonAmount:      outcome.WonAmount,
			BalanceChange:  outcome.BalanceChange,
			CharityAmount:  outcome.CharityAmount,
			PlatformAmount: outcome.PlatformAmount,
			Date:           domain.DayKey(b.Now()),
			CreatedAt:      b.Now(),
		}

		txn, err := b.Stage(wallet.Posting{
			UserID:      userID,
			Field:       domain.FieldCoins,
			Delta:       outcome.BalanceChange,
			Type:        domain.TxGameBet,
			ReferenceID: game.GameID,
			Description: fmt.Sprintf("Lucky Wallet %s (bet %s, draw %d)", outcome.Result, bet, draw),
		})
		if err != nil {
			return err
		}
		game.BalanceAfter = domain.Cents(b.Wallet(userID).Coins)

		if err := tx.AddCharity(ctx, outcome.CharityAmount, b.Now()); err != nil {
			return err
		}
		if err := tx.InsertCharityContribution(ctx, &domain.CharityContribution{
			ContributionID: domain.NewID("char"),
			UserID:         userID,
			Amount:         outcome.CharityAmount,
			Source:         domain.CharitySourceLuckyWallet,
			ReferenceID:    game.GameID,
			CreatedAt:      b.Now(),
		}); err != nil {
			return err
		}
		if err := tx.InsertGame(ctx, game); err != nil {
			return err
		}

		result.Game = game
		result.TransactionID = txn.TransactionID
		result.Wallet = b.Wallet(userID).Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLuckyWalletRound(string(outcome.Result))
	metrics.RecordCharityInflow(domain.CharitySourceLuckyWallet, outcome.CharityAmount.InexactFloat64())

	if outcome.Result == domain.GameWin {
		s.engine.Notify(ctx, notify.Event{
			UserID:    userID,
			Key:       "lucky_wallet_win",
			Category:  notify.CategoryGame,
			Params:    map[string]string{"won": outcome.WonAmount.String(), "charity": outcome.CharityAmount.String()},
			ActionURL: "/lucky-wallet",
		})
	}

	return result, nil
}

// History returns the newest rounds across all days.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.LuckyWalletGame, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.games(ctx, userID, "", limit)
}

func (s *Service) games(ctx context.Context, userID, date string, limit int) ([]domain.LuckyWalletGame, error) {
	var games []domain.LuckyWalletGame
	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		games, err = tx.ListGames(ctx, userID, date, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return games, nil
}

// DayStats aggregates one UTC day of rounds.
type DayStats struct {
	Date         string          `json:"date"`
	GamesPlayed  int             `json:"games_played"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	TotalBet     decimal.Decimal `json:"total_bet"`
	NetChange    decimal.Decimal `json:"net_change"`
	TotalCharity decimal.Decimal `json:"total_charity"`
	WinRate      float64         `json:"win_rate"`
}

// maxDailyRounds bounds how many rounds TodayStats reads.
const maxDailyRounds = 10000

func (s *Service) TodayStats(ctx context.Context, userID string) (*DayStats, error) {
	date := domain.DayKey(s.engine.Now())
	games, err := s.games(ctx, userID, date, maxDailyRounds)
	if err != nil {
		return nil, err
	}

	stats := &DayStats{
		Date:         date,
		TotalBet:     decimal.Zero,
		NetChange:    decimal.Zero,
		TotalCharity: decimal.Zero,
	}
	for _, g := range games {
		stats.GamesPlayed++
		if g.Result == domain.GameWin {
			stats.Wins++
		} else {
			stats.Losses++
		}
		stats.TotalBet = stats.TotalBet.Add(g.BetAmount)
		stats.NetChange = stats.NetChange.Add(g.BalanceChange)
		stats.TotalCharity = stats.TotalCharity.Add(g.CharityAmount)
	}
	if stats.GamesPlayed > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.GamesPlayed) * 100
	}

	return stats, nil
}
