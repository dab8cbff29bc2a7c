package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/himera-wallet/pkg/logger"
)

// TaskTypeDeliver is the asynq task that carries one Event.
const TaskTypeDeliver = "notification:deliver"

// QueueName is the asynq queue notifications are enqueued on.
const QueueName = "default"

// TaskEnqueuer is the subset of an asynq client the queue needs.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue is the production Notifier: it turns events into asynq tasks.
type Queue struct {
	client TaskEnqueuer
	log    *slog.Logger
}

var _ Notifier = (*Queue)(nil)

func NewQueue(client TaskEnqueuer, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{client: client, log: log}
}

// NewDeliverTask encodes event as a notification:deliver task.
func NewDeliverTask(event Event) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDeliver, payload,
		asynq.Queue(QueueName),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// Notify enqueues event. Failures are logged and dropped.
func (q *Queue) Notify(ctx context.Context, event Event) {
	if event.CorrelationID == "" {
		event.CorrelationID = logger.CorrelationIDFromContext(ctx)
	}

	task, err := NewDeliverTask(event)
	if err != nil {
		q.log.ErrorContext(ctx, "notify: encode event", "key", event.Key, "user_id", event.UserID, "error", err)
		return
	}

	if _, err := q.client.Enqueue(ctx, task); err != nil {
		q.log.WarnContext(ctx, "notify: enqueue failed", "key", event.Key, "user_id", event.UserID, "error", err)
	}
}
