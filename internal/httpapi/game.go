package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

type playRequest struct {
	BetAmount decimal.Decimal `json:"bet_amount"`
}

func (a *api) playLuckyWallet(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.Game.Play(r.Context(), userID(r), req.BetAmount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

type gamesResponse struct {
	Games []domain.LuckyWalletGame `json:"games"`
}

func (a *api) luckyWalletHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	games, err := a.svc.Game.History(r.Context(), userID(r), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, gamesResponse{Games: nonNil(games)})
}

func (a *api) luckyWalletStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Game.TodayStats(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, stats)
}
