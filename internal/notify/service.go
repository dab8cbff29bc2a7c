package notify

import (
	"context"
	"errors"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/ledger"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

// Inbox is one page of a user's notifications.
type Inbox struct {
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// Service reads and acknowledges stored notifications.
type Service struct {
	store ledger.Store
}

func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) (*Inbox, error) {
	switch {
	case limit <= 0:
		limit = defaultInboxLimit
	case limit > maxInboxLimit:
		limit = maxInboxLimit
	}

	inbox := &Inbox{}
	err := s.store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		inbox.Notifications, inbox.UnreadCount, err = tx.ListNotifications(ctx, userID, unreadOnly, limit)
		return err
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	if inbox.Notifications == nil {
		inbox.Notifications = []domain.Notification{}
	}
	return inbox, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	err := s.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.MarkNotificationRead(ctx, userID, notificationID)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrNotFound):
		return apperrors.ErrNotificationNotFound
	default:
		return apperrors.NewDatabaseError(err)
	}
}

// MarkAllRead returns how many notifications changed state.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	var marked int
	err := s.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		marked, err = tx.MarkAllNotificationsRead(ctx, userID)
		return err
	})
	if err != nil {
		return 0, apperrors.NewDatabaseError(err)
	}
	return marked, nil
}
