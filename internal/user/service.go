// Package user mirrors identities handed over by the upstream session provider.
package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/usercache"
	"github.com/Proton-105/himera-wallet/internal/wallet"
)

const profileTTL = 15 * time.Minute

type Service struct {
	engine *wallet.Engine
	cache  *usercache.Cache
	log    *slog.Logger
}

func NewService(engine *wallet.Engine, cache *usercache.Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{engine: engine, cache: cache, log: log}
}

// Bootstrapped is the result of first contact with a user.
type Bootstrapped struct {
	User    *domain.User   `json:"user"`
	Wallet  *domain.Wallet `json:"wallet"`
	Created bool           `json:"created"`
}

// GetOrCreate mirrors the user and seeds their wallet on first sight.
// Repeated calls are harmless and return the existing wallet.
func (s *Service) GetOrCreate(ctx context.Context, u domain.User) (*Bootstrapped, error) {
	if u.UserID == "" {
		return nil, apperrors.ErrUnauthenticated
	}

	w, created, err := s.engine.Bootstrap(ctx, u)
	if err != nil {
		s.logError(ctx, "get_or_create", u.UserID, err)
		return nil, err
	}

	profile, err := s.Profile(ctx, u.UserID)
	if err != nil {
		return nil, err
	}

	return &Bootstrapped{User: profile, Wallet: w, Created: created}, nil
}

// Profile returns the mirrored user, reading through the cache.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.User, error) {
	cached, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logError(ctx, "profile.cache_get", userID, err)
	}
	if cached != nil {
		return cached, nil
	}

	var profile *domain.User
	err = s.engine.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		profile, err = tx.GetUser(ctx, userID)
		return err
	})
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, profile, profileTTL); err != nil {
		s.logError(ctx, "profile.cache_set", userID, err)
	}
	return profile, nil
}

func (s *Service) logError(ctx context.Context, operation, userID string, err error) {
	s.log.ErrorContext(ctx, "user service operation failed",
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.Any("error", err),
	)
}
