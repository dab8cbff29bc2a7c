package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	walletOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_operations_total",
			Help: "Total number of wallet operations labeled by operation and status",
		},
		[]string{"operation", "status"},
	)
	operationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_operation_duration_seconds",
			Help:    "Duration of wallet operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	ledgerAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_amount_total",
			Help: "Absolute amount moved through the ledger by currency and direction",
		},
		[]string{"currency", "direction"},
	)
	luckyWalletRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lucky_wallet_rounds_total",
			Help: "Lucky Wallet rounds by outcome",
		},
		[]string{"outcome"},
	)
	charityInflowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charity_inflow_total",
			Help: "Amount credited to the charity wallet by source",
		},
		[]string{"source"},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	lockContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "user_lock_contention_total",
			Help: "Mutations rejected because the user wallet lock was held",
		},
	)
	queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "job_queue_size",
			Help: "Pending tasks per job queue",
		},
		[]string{"queue"},
	)
)

// RecordOperation increments operation counters and records duration.
func RecordOperation(operation, status string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	walletOperationsTotal.WithLabelValues(operation, status).Inc()
	operationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLedgerAmount adds the absolute value of a signed posting.
func RecordLedgerAmount(currency string, signed float64) {
	direction := "credit"
	if signed < 0 {
		direction = "debit"
		signed = -signed
	}

	ledgerAmountTotal.WithLabelValues(currency, direction).Add(signed)
}

// RecordLuckyWalletRound counts a finished game round.
func RecordLuckyWalletRound(outcome string) {
	luckyWalletRoundsTotal.WithLabelValues(outcome).Inc()
}

// RecordCharityInflow adds amount to the charity inflow for source.
func RecordCharityInflow(source string, amount float64) {
	if amount <= 0 {
		return
	}
	charityInflowTotal.WithLabelValues(source).Add(amount)
}

// RecordHTTPRequest counts a served request.
func RecordHTTPRequest(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, method, statusClass(status)).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordLockContention counts a rejected lock acquisition.
func RecordLockContention() {
	lockContentionTotal.Inc()
}

// SetQueueSize updates the pending gauge for queue.
func SetQueueSize(queue string, size int) {
	if queue == "" {
		queue = "unknown"
	}

	queueSize.WithLabelValues(queue).Set(float64(size))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// QueueSource reports pending task counts per queue.
type QueueSource interface {
	QueueSizes(ctx context.Context) (map[string]int, error)
}

// QueueCollector periodically gathers job queue sizes and emits gauge metrics.
type QueueCollector struct {
	source   QueueSource
	interval time.Duration
}

// NewQueueCollector builds a metrics collector bound to the provided queue source.
func NewQueueCollector(source QueueSource, interval time.Duration) *QueueCollector {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &QueueCollector{source: source, interval: interval}
}

// Run polls the source every interval, updating gauges until ctx is cancelled.
func (c *QueueCollector) Run(ctx context.Context) {
	if c == nil || c.source == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *QueueCollector) collect(ctx context.Context) error {
	sizes, err := c.source.QueueSizes(ctx)
	if err != nil {
		return err
	}

	for queue, size := range sizes {
		SetQueueSize(queue, size)
	}

	return nil
}
