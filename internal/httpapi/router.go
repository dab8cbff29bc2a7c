// Package httpapi exposes the wallet services over a chi router under /api.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/himera-wallet/internal/economy"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/game"
	"github.com/Proton-105/himera-wallet/internal/idempotency"
	"github.com/Proton-105/himera-wallet/internal/lifecycle"
	"github.com/Proton-105/himera-wallet/internal/middleware"
	"github.com/Proton-105/himera-wallet/internal/notify"
	"github.com/Proton-105/himera-wallet/internal/payout"
	"github.com/Proton-105/himera-wallet/internal/rewards"
	"github.com/Proton-105/himera-wallet/internal/user"
	"github.com/Proton-105/himera-wallet/internal/vip"
	"github.com/Proton-105/himera-wallet/internal/wallet"
	"github.com/Proton-105/himera-wallet/pkg/logger"
)

// Route names used for per-route rate-limit rules.
const (
	RouteLuckyWalletPlay = "lucky_wallet_play"
	RouteGiftsSend       = "gifts_send"
	RouteTrackActivity   = "track_activity"
	RouteMutation        = "mutation"
)

// Services are the domain services served by the API.
type Services struct {
	Users         *user.Service
	Wallet        *wallet.Engine
	VIP           *vip.Service
	Rewards       *rewards.Service
	Economy       *economy.Service
	Game          *game.Service
	Payout        *payout.Service
	Notifications *notify.Service
}

// Options carries the cross-cutting collaborators. Nil Idempotency or
// RateLimiter disables the matching middleware.
type Options struct {
	Errors      *apperrors.Handler
	Idempotency idempotency.Manager
	RateLimiter *middleware.RateLimiter
	Probes      *lifecycle.Probes
	Log         *slog.Logger
}

type api struct {
	svc      Services
	errs     *apperrors.Handler
	validate *validator.Validate
	probes   *lifecycle.Probes
	log      *slog.Logger
}

// NewRouter builds the HTTP handler of the wallet service.
func NewRouter(svc Services, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Errors == nil {
		opts.Errors = apperrors.NewHandler(opts.Log, false)
	}

	a := &api{
		svc:      svc,
		errs:     opts.Errors,
		validate: newValidator(),
		probes:   opts.Probes,
		log:      opts.Log,
	}

	limit := func(route string) func(http.Handler) http.Handler {
		if opts.RateLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return opts.RateLimiter.Limit(route)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware)
	r.Use(middleware.Logging(opts.Log))
	r.Use(middleware.Metrics)

	r.Get("/livez", a.livez)
	r.Get("/readyz", a.readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Global)
		}

		r.Get("/health", a.health)
		r.Get("/livez", a.livez)
		r.Get("/readyz", a.readyz)
		r.Get("/vip/levels", a.vipLevels)
		r.Get("/gifts/catalog", a.giftCatalog)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(a.errs))
			r.Use(middleware.Idempotency(opts.Idempotency, a.errs, opts.Log))

			mutate := limit(RouteMutation)

			r.With(mutate).Post("/users/bootstrap", a.bootstrap)

			r.Get("/wallet", a.getWallet)
			r.Get("/wallet/transactions", a.transactions)
			r.With(mutate).Post("/wallet/deposit", a.deposit)
			r.With(mutate).Post("/wallet/withdraw", a.withdraw)
			r.With(mutate).Post("/wallet/transfer", a.transfer)

			r.Get("/vip/status", a.vipStatus)
			r.With(mutate).Post("/vip/subscribe", a.vipSubscribe)
			r.With(mutate).Post("/vip/toggle-auto-renew", a.vipToggleAutoRenew)
			r.With(mutate).Post("/vip/cancel", a.vipCancel)

			r.Get("/rewards/activity-status", a.activityStatus)
			r.With(limit(RouteTrackActivity)).Post("/rewards/track-activity", a.trackActivity)
			r.With(mutate).Post("/rewards/claim-activity-reward", a.claimActivityReward)
			r.Get("/rewards/daily-summary", a.dailySummary)

			r.With(mutate).Post("/messages/reward", a.messagingReward)
			r.Get("/messages/reward-status", a.messagingStatus)

			r.With(mutate).Post("/host/sessions/start", a.startHostSession)
			r.With(mutate).Post("/host/sessions/end", a.endHostSession)
			r.Get("/host/sessions/active", a.activeHostSession)

			r.With(limit(RouteGiftsSend)).Post("/gifts/send", a.sendGift)
			r.Get("/gifts/sent", a.giftsSent)
			r.Get("/gifts/received", a.giftsReceived)
			r.Get("/gifts/leaderboard", a.giftLeaderboard)

			r.Get("/agency/status", a.agencyStatus)
			r.Get("/agency/commissions", a.agencyCommissions)
			r.With(mutate).Post("/agency/apply-referral", a.applyReferral)
			r.With(mutate).Post("/agency/convert-stars", a.convertStars)

			r.With(limit(RouteLuckyWalletPlay)).Post("/lucky-wallet/play", a.playLuckyWallet)
			r.Get("/lucky-wallet/history", a.luckyWalletHistory)
			r.Get("/lucky-wallet/stats", a.luckyWalletStats)

			r.Get("/withdrawal/config", a.withdrawalConfig)
			r.With(mutate).Post("/withdrawal/save-payment-method", a.savePaymentMethod)
			r.With(mutate).Post("/withdrawal/request", a.requestWithdrawal)
			r.Get("/withdrawal/history", a.withdrawalHistory)
			r.With(mutate).Post("/withdrawal/{id}/verify-face", a.verifyFace)
			r.With(mutate).Post("/withdrawal/{id}/cancel", a.cancelWithdrawal)

			r.Get("/charity/stats", a.charityStats)
			r.Get("/charity/leaderboard", a.charityLeaderboard)

			r.Get("/notifications", a.notifications)
			r.With(mutate).Post("/notifications/{id}/read", a.markNotificationRead)
			r.With(mutate).Post("/notifications/read-all", a.markAllNotificationsRead)
		})
	})

	return r
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, a.errs, err)
}

func (a *api) ok(w http.ResponseWriter, v any) {
	middleware.WriteJSON(w, http.StatusOK, v)
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	middleware.WriteJSON(w, status, v)
}
