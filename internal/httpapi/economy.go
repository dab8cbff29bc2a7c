package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/himera-wallet/internal/domain"
	"github.com/Proton-105/himera-wallet/internal/economy"
)

type catalogResponse struct {
	Gifts      map[string][]economy.Gift `json:"gifts"`
	Categories []string                  `json:"categories"`
}

func (a *api) giftCatalog(w http.ResponseWriter, _ *http.Request) {
	catalog := a.svc.Economy.Catalog()
	a.ok(w, catalogResponse{Gifts: catalog.ByCategory(), Categories: catalog.Categories()})
}

type sendGiftRequest struct {
	GiftID     string `json:"gift_id" validate:"required,max=64"`
	ReceiverID string `json:"receiver_id" validate:"required,max=128"`
	Quantity   int    `json:"quantity"`
	Message    string `json:"message" validate:"max=500"`
}

func (a *api) sendGift(w http.ResponseWriter, r *http.Request) {
	var req sendGiftRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	out, err := a.svc.Economy.SendGift(r.Context(), userID(r), economy.SendGiftInput{
		ReceiverID: req.ReceiverID,
		GiftID:     req.GiftID,
		Quantity:   req.Quantity,
		Message:    req.Message,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

type giftsResponse struct {
	Gifts []domain.GiftRecord `json:"gifts"`
}

func (a *api) giftsSent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	gifts, err := a.svc.Economy.GiftsSent(r.Context(), userID(r), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, giftsResponse{Gifts: nonNil(gifts)})
}

func (a *api) giftsReceived(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	gifts, err := a.svc.Economy.GiftsReceived(r.Context(), userID(r), limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, giftsResponse{Gifts: nonNil(gifts)})
}

func (a *api) giftLeaderboard(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Economy.GiftLeaderboard(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) agencyStatus(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Economy.AgencyStatus(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) agencyCommissions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	page, err := a.svc.Economy.Commissions(r.Context(), userID(r), limit, offset)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, page)
}

type applyReferralRequest struct {
	ReferralCode string `json:"referral_code" validate:"required,max=32"`
}

func (a *api) applyReferral(w http.ResponseWriter, r *http.Request) {
	var req applyReferralRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.Economy.ApplyReferral(r.Context(), userID(r), req.ReferralCode)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

type convertStarsRequest struct {
	StarsAmount decimal.Decimal `json:"stars_amount"`
}

func (a *api) convertStars(w http.ResponseWriter, r *http.Request) {
	var req convertStarsRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.Economy.ConvertStars(r.Context(), userID(r), req.StarsAmount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) charityStats(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Economy.CharityStats(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

type charityLeaderboardResponse struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

func (a *api) charityLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := a.svc.Economy.CharityLeaderboard(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, charityLeaderboardResponse{Leaderboard: nonNil(entries)})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
