package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *api) notifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	unreadOnly, err := queryBool(r, "unread_only")
	if err != nil {
		a.fail(w, r, err)
		return
	}

	inbox, err := a.svc.Notifications.List(r.Context(), userID(r), unreadOnly, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, inbox)
}

type successResponse struct {
	Success bool `json:"success"`
}

func (a *api) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Notifications.MarkRead(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, successResponse{Success: true})
}

type markAllResponse struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

func (a *api) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.Notifications.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, markAllResponse{Success: true, Updated: n})
}
