package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeVIPExpiry        = "vip:expire"
	TaskTypeAgencyInactivity = "agency:inactivity"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// DefaultQueues weights the queues when the config does not.
var DefaultQueues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

type VIPExpiryPayload struct {
	BatchSize int `json:"batch_size"`
}

func NewVIPExpiryTask(batchSize int) (*asynq.Task, error) {
	payload, err := json.Marshal(VIPExpiryPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeVIPExpiry, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(3)), nil
}

func NewAgencyInactivityTask() *asynq.Task {
	return asynq.NewTask(TaskTypeAgencyInactivity, nil, asynq.Queue(QueueLow), asynq.MaxRetry(3))
}
