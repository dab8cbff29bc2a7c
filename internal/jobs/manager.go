package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil && m.log != nil {
		m.log.DebugContext(ctx, "jobs: enqueue failed", "task_type", task.Type(), "error", err)
	}
	return info, err
}

func (m *manager) Close() error {
	return m.client.Close()
}

// Inspector reports queue depth for the metrics collector.
type Inspector struct {
	inspector *asynq.Inspector
	queues    []string
}

func NewInspector(redisOpt asynq.RedisConnOpt, queues map[string]int) *Inspector {
	if len(queues) == 0 {
		queues = DefaultQueues
	}
	names := make([]string, 0, len(queues))
	for name := range queues {
		names = append(names, name)
	}
	return &Inspector{inspector: asynq.NewInspector(redisOpt), queues: names}
}

// QueueSizes returns the number of tasks in each configured queue.
// Queues that do not exist yet report zero.
func (i *Inspector) QueueSizes(ctx context.Context) (map[string]int, error) {
	sizes := make(map[string]int, len(i.queues))
	for _, name := range i.queues {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := i.inspector.GetQueueInfo(name)
		if err != nil {
			sizes[name] = 0
			continue
		}
		sizes[name] = info.Size
	}
	return sizes, nil
}

func (i *Inspector) Close() error {
	return i.inspector.Close()
}
