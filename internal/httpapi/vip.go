package httpapi

import (
	"net/http"

	"github.com/Proton-105/himera-wallet/internal/vip"
)

type levelsResponse struct {
	Levels []vip.Level `json:"levels"`
}

func (a *api) vipLevels(w http.ResponseWriter, _ *http.Request) {
	a.ok(w, levelsResponse{Levels: vip.Levels()})
}

func (a *api) vipStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.svc.VIP.Status(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, status)
}

type subscribeRequest struct {
	Level *int `json:"level" validate:"required"`
}

func (a *api) vipSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	out, err := a.svc.VIP.Subscribe(r.Context(), userID(r), *req.Level)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

type autoRenewResponse struct {
	AutoRenew bool `json:"auto_renew"`
}

func (a *api) vipToggleAutoRenew(w http.ResponseWriter, r *http.Request) {
	enabled, err := a.svc.VIP.ToggleAutoRenew(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, autoRenewResponse{AutoRenew: enabled})
}

func (a *api) vipCancel(w http.ResponseWriter, r *http.Request) {
	status, err := a.svc.VIP.Cancel(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, status)
}
