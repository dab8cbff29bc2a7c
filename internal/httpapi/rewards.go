package httpapi

import (
	"net/http"

	"github.com/Proton-105/himera-wallet/internal/domain"
)

func (a *api) activityStatus(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Rewards.ActivityStatus(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) trackActivity(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Rewards.TrackActivity(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) claimActivityReward(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Rewards.ClaimActivityReward(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) dailySummary(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Rewards.DailySummary(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) messagingReward(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Rewards.ClaimMessagingReward(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

func (a *api) messagingStatus(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Rewards.MessagingStatus(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

type hostSessionRequest struct {
	HostType string `json:"host_type" validate:"required"`
}

func (a *api) startHostSession(w http.ResponseWriter, r *http.Request) {
	var req hostSessionRequest
	if err := a.decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	session, err := a.svc.Rewards.StartHostSession(r.Context(), userID(r), domain.HostType(req.HostType))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, session)
}

func (a *api) endHostSession(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.Rewards.EndHostSession(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, out)
}

type activeSessionResponse struct {
	Active  bool                `json:"active"`
	Session *domain.HostSession `json:"session"`
}

func (a *api) activeHostSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.svc.Rewards.ActiveHostSession(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, activeSessionResponse{Active: session != nil, Session: session})
}
