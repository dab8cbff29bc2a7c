package economy

import (
	"log/slog"

	"github.com/Proton-105/himera-wallet/internal/wallet"
)

// Service runs gifting, agency, referral and charity flows.
type Service struct {
	engine  *wallet.Engine
	catalog *Catalog
	log     *slog.Logger
}

// NewService constructs an economy service with the built-in gift catalog.
func NewService(engine *wallet.Engine, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		engine:  engine,
		catalog: DefaultCatalog(),
		log:     log.With("component", "economy"),
	}
}

// Catalog exposes the gift table.
func (s *Service) Catalog() *Catalog { return s.catalog }
