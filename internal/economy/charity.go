package economy

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	"github.com/Proton-105/himera-wallet/internal/game"
	"github.com/Proton-105/himera-wallet/internal/ledger"
)

// CharityConfig lists the percentages routed to charity.
type CharityConfig struct {
	GiftCharityPercent int64 `json:"gift_charity_percent"`
	GameWinPercent     int64 `json:"lucky_wallet_win_percent"`
	GameLosePercent    int64 `json:"lucky_wallet_lose_percent"`
}

// CharityStats is the global charity state plus the caller's own giving.
type CharityStats struct {
	GlobalStats           domain.CharityWallet         `json:"global_stats"`
	UserContributions     []domain.CharityContribution `json:"user_contributions"`
	TotalUserContribution decimal.Decimal              `json:"total_user_contribution"`
	ContributionCount     int                          `json:"contribution_count"`
	Config                CharityConfig                `json:"config"`
}

func (s *Service) CharityStats(ctx context.Context, userID string) (*CharityStats, error) {
	odds := game.DefaultConfig()
	stats := &CharityStats{
		GlobalStats: domain.CharityWallet{
			TotalBalance:     decimal.Zero,
			TotalReceived:    decimal.Zero,
			TotalDistributed: decimal.Zero,
		},
		Config: CharityConfig{
			GiftCharityPercent: GiftCharityPercent,
			GameWinPercent:     odds.WinCharityPercent,
			GameLosePercent:    odds.LoseCharityPercent,
		},
	}

	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		global, err := tx.GetCharityWallet(ctx)
		switch {
		case err == nil:
			stats.GlobalStats = *global
		case !errors.Is(err, ledger.ErrNotFound):
			return err
		}

		if stats.UserContributions, err = tx.ListCharityContributions(ctx, userID, 10); err != nil {
			return err
		}
		stats.TotalUserContribution, stats.ContributionCount, err = tx.UserCharityTotal(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CharityLeaderboard ranks the top 20 contributors.
func (s *Service) CharityLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	var board []domain.LeaderboardEntry
	err := s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		board, err = tx.CharityLeaderboard(ctx, 20)
		return err
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}
