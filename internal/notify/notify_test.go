package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/himera-wallet/internal/domain"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/i18n"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/pkg/logger"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: QueueName}, nil
}

type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     map[int64][]string
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return apperrors.NewExternalAPIError("telegram", errors.New("502 bad gateway"))
	}
	if f.sent == nil {
		f.sent = make(map[int64][]string)
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func newStore(t *testing.T, users ...domain.User) *ledger.MemoryStore {
	t.Helper()
	store := ledger.NewMemoryStore()
	require.NoError(t, store.Atomic(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		for i := range users {
			if err := tx.CreateUser(ctx, &users[i]); err != nil {
				return err
			}
		}
		return nil
	}))
	return store
}

func newDeliverer(t *testing.T, store ledger.Store, opts ...DeliveryOption) *Deliverer {
	t.Helper()
	templates, err := i18n.Load("en")
	require.NoError(t, err)
	opts = append([]DeliveryOption{WithRetryPolicy(apperrors.RetryPolicy{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})}, opts...)
	return NewDeliverer(store, templates, "en", nil, opts...)
}

func TestQueueEnqueuesDeliverTask(t *testing.T) {
	client := &fakeEnqueuer{}
	q := NewQueue(client, nil)

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	q.Notify(ctx, Event{UserID: "u1", Key: "deposit_completed", Params: map[string]string{"amount": "50"}, Category: CategoryWallet})

	require.Len(t, client.tasks, 1)
	assert.Equal(t, TaskTypeDeliver, client.tasks[0].Type())
	assert.JSONEq(t,
		`{"user_id":"u1","key":"deposit_completed","params":{"amount":"50"},"category":"wallet","correlation_id":"corr-1"}`,
		string(client.tasks[0].Payload()))
}

func TestQueueSwallowsEnqueueErrors(t *testing.T) {
	q := NewQueue(&fakeEnqueuer{err: errors.New("redis down")}, nil)
	assert.NotPanics(t, func() {
		q.Notify(context.Background(), Event{UserID: "u1", Key: "welcome"})
	})
}

func TestDeliverPersistsAndPushes(t *testing.T) {
	store := newStore(t, domain.User{UserID: "u1", Name: "Asha", ChatID: 4242}, domain.User{UserID: "u2"})
	sender := &fakeSender{failures: 1}
	d := newDeliverer(t, store, WithSender(sender))
	ctx := context.Background()

	n, err := d.Deliver(ctx, Event{
		UserID:    "u1",
		Key:       "vip_activated",
		Params:    map[string]string{"level": "Gold"},
		Category:  CategoryVIP,
		ActionURL: "/vip",
	})
	require.NoError(t, err)
	assert.Equal(t, "VIP Gold Activated! 👑", n.Title)
	assert.Equal(t, "Enjoy your exclusive benefits for the next 30 days!", n.Message)

	assert.Equal(t, 2, sender.calls)
	assert.Equal(t, []string{"VIP Gold Activated! 👑\n\nEnjoy your exclusive benefits for the next 30 days!"}, sender.sent[4242])

	_, err = d.Deliver(ctx, Event{UserID: "u2", Key: "new_referral", Category: CategoryAgency})
	require.NoError(t, err)
	assert.Equal(t, 2, sender.calls, "users without a chat are not pushed")

	inbox, err := NewService(store).List(ctx, "u1", false, 0)
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, CategoryVIP, inbox.Notifications[0].Category)
	assert.Equal(t, "/vip", inbox.Notifications[0].ActionURL)
}

func TestDeliverIgnoresPushFailure(t *testing.T) {
	store := newStore(t, domain.User{UserID: "u1", ChatID: 7})
	sender := &fakeSender{failures: 100}
	d := newDeliverer(t, store, WithSender(sender))

	_, err := d.Deliver(context.Background(), Event{UserID: "u1", Key: "welcome", Params: map[string]string{"coins": "1000", "bonus": "100"}})
	require.NoError(t, err)
	assert.Equal(t, 3, sender.calls)

	inbox, err := NewService(store).List(context.Background(), "u1", true, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, inbox.UnreadCount)
	assert.Equal(t, "You've received 1000 coins and 100 bonus as a welcome gift!", inbox.Notifications[0].Message)
}

func TestProcessTask(t *testing.T) {
	store := newStore(t, domain.User{UserID: "u1"})
	d := newDeliverer(t, store)

	task, err := NewDeliverTask(Event{UserID: "u1", Key: "payout_verified", Category: CategoryPayout})
	require.NoError(t, err)
	require.NoError(t, d.ProcessTask(context.Background(), task))

	err = d.ProcessTask(context.Background(), asynq.NewTask(TaskTypeDeliver, []byte("{broken")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	_, err = d.Deliver(context.Background(), Event{UserID: "u1"})
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestInboxReadState(t *testing.T) {
	store := newStore(t, domain.User{UserID: "u1"}, domain.User{UserID: "u2"})
	d := newDeliverer(t, store)
	svc := NewService(store)
	ctx := context.Background()

	var first *domain.Notification
	for i, key := range []string{"welcome", "deposit_completed", "activity_reward"} {
		n, err := d.Deliver(ctx, Event{UserID: "u1", Key: key})
		require.NoError(t, err)
		if i == 0 {
			first = n
		}
	}

	require.NoError(t, svc.MarkRead(ctx, "u1", first.NotificationID))
	require.ErrorIs(t, svc.MarkRead(ctx, "u2", first.NotificationID), apperrors.ErrNotificationNotFound)

	inbox, err := svc.List(ctx, "u1", true, 0)
	require.NoError(t, err)
	assert.Len(t, inbox.Notifications, 2)
	assert.Equal(t, 2, inbox.UnreadCount)

	marked, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, marked)

	inbox, err = svc.List(ctx, "u1", true, 0)
	require.NoError(t, err)
	assert.Empty(t, inbox.Notifications)
	assert.Equal(t, 0, inbox.UnreadCount)

	inbox, err = svc.List(ctx, "u1", false, 0)
	require.NoError(t, err)
	assert.Len(t, inbox.Notifications, 3)
}

func TestInlineDeliversInBackground(t *testing.T) {
	store := newStore(t, domain.User{UserID: "u1"})
	n := NewInline(newDeliverer(t, store), nil)
	ctx := logger.WithCorrelationID(context.Background(), "req-7")

	n.Notify(ctx, Event{UserID: "u1", Key: "welcome", Category: CategoryWelcome})
	n.Notify(ctx, Event{UserID: "u1", Key: ""})

	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, n.Close(closeCtx))

	inbox, err := NewService(store).List(context.Background(), "u1", false, 0)
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, CategoryWelcome, inbox.Notifications[0].Category)
}
