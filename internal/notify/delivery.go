package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/i18n"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/pkg/logger"
	"github.com/Proton-105/himera-wallet/pkg/metrics"
)

// Deliverer is the asynq handler behind TaskTypeDeliver. It renders the
// event, stores it as an in-app notification and optionally pushes it to Telegram.
type Deliverer struct {
	store     ledger.Store
	templates *i18n.Manager
	lang      string
	sender    Sender
	breaker   *apperrors.CircuitBreaker
	retry     apperrors.RetryPolicy
	log       *slog.Logger
	now       func() time.Time
}

type DeliveryOption func(*Deliverer)

// WithSender enables out-of-app delivery through s.
func WithSender(s Sender) DeliveryOption {
	return func(d *Deliverer) { d.sender = s }
}

func WithRetryPolicy(p apperrors.RetryPolicy) DeliveryOption {
	return func(d *Deliverer) { d.retry = p }
}

func WithDeliveryClock(now func() time.Time) DeliveryOption {
	return func(d *Deliverer) { d.now = now }
}

func NewDeliverer(store ledger.Store, templates *i18n.Manager, lang string, log *slog.Logger, opts ...DeliveryOption) *Deliverer {
	if log == nil {
		log = slog.Default()
	}

	d := &Deliverer{
		store:     store,
		templates: templates,
		lang:      lang,
		breaker:   apperrors.NewCircuitBreaker(apperrors.BreakerSettings{MinRequests: 5}),
		retry:     apperrors.DefaultRetryPolicy,
		log:       log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Deliverer) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		d.log.ErrorContext(ctx, "notify: failed to decode payload", slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	if event.CorrelationID != "" {
		ctx = logger.WithCorrelationID(ctx, event.CorrelationID)
	}

	_, err := d.Deliver(ctx, event)
	return err
}

// Deliver persists event and, when a sender is configured and the user has
// a chat, pushes it out. Only persistence failures are returned.
func (d *Deliverer) Deliver(ctx context.Context, event Event) (*domain.Notification, error) {
	start := d.now()
	if event.UserID == "" || event.Key == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidRequest, "notification needs user and key")
	}

	tr := d.templates.Translator(d.lang)
	n := &domain.Notification{
		NotificationID: domain.NewID("ntf"),
		UserID:         event.UserID,
		Title:          tr.Render("notifications."+event.Key+".title", event.Params),
		Message:        tr.Render("notifications."+event.Key+".body", event.Params),
		Category:       event.Category,
		ActionURL:      event.ActionURL,
		CreatedAt:      d.now().UTC(),
	}

	var chatID int64
	err := d.store.Atomic(ctx, func(ctx context.Context, tx ledger.Tx) error {
		user, err := tx.GetUser(ctx, event.UserID)
		switch {
		case err == nil:
			chatID = user.ChatID
		case !errors.Is(err, ledger.ErrNotFound):
			return err
		}
		return tx.InsertNotification(ctx, n)
	})
	if err != nil {
		metrics.RecordOperation("notification_deliver", "error", d.now().Sub(start))
		return nil, apperrors.NewDatabaseError(err)
	}

	if d.sender != nil && chatID != 0 {
		d.push(ctx, chatID, n)
	}

	metrics.RecordOperation("notification_deliver", "success", d.now().Sub(start))
	return n, nil
}

func (d *Deliverer) push(ctx context.Context, chatID int64, n *domain.Notification) {
	text := n.Title + "\n\n" + n.Message
	err := d.breaker.Call(func() error {
		return apperrors.WithRetry(ctx, d.retry, func() error {
			return d.sender.Send(ctx, chatID, text)
		})
	})

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrCircuitOpen):
		d.log.DebugContext(ctx, "notify: telegram circuit open, skipping push", "notification_id", n.NotificationID)
	default:
		d.log.WarnContext(ctx, "notify: telegram push failed", "notification_id", n.NotificationID, "user_id", n.UserID, "error", err)
	}
}
