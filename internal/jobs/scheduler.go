package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

const (
	DefaultVIPExpirySpec        = "*/10 * * * *"
	DefaultAgencyInactivitySpec = "15 0 * * *"
	DefaultVIPExpiryBatch       = 500
)

// Schedule holds the cron specs for the periodic sweeps.
type Schedule struct {
	VIPExpirySpec        string
	AgencyInactivitySpec string
}

func (s Schedule) withDefaults() Schedule {
	if s.VIPExpirySpec == "" {
		s.VIPExpirySpec = DefaultVIPExpirySpec
	}
	if s.AgencyInactivitySpec == "" {
		s.AgencyInactivitySpec = DefaultAgencyInactivitySpec
	}
	return s
}

// Validate parses every spec as a standard five-field cron expression.
func (s Schedule) Validate() error {
	s = s.withDefaults()
	for name, spec := range map[string]string{
		TaskTypeVIPExpiry:        s.VIPExpirySpec,
		TaskTypeAgencyInactivity: s.AgencyInactivitySpec,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("jobs: invalid cron spec %q for %s: %w", spec, name, err)
		}
	}
	return nil
}

type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	schedule       Schedule
	log            *slog.Logger
}

// NewScheduler enqueues the periodic sweeps through asynq so that only one
// replica fires each tick.
func NewScheduler(redisOpt asynq.RedisConnOpt, schedule Schedule, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		schedule:       schedule.withDefaults(),
		log:            log,
	}
}

func (s *scheduler) RegisterTasks() error {
	if err := s.schedule.Validate(); err != nil {
		return err
	}

	expiry, err := NewVIPExpiryTask(DefaultVIPExpiryBatch)
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.schedule.VIPExpirySpec, expiry); err != nil {
		return err
	}
	if _, err := s.asynqScheduler.Register(s.schedule.AgencyInactivitySpec, NewAgencyInactivityTask()); err != nil {
		return err
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered periodic tasks",
			"vip_expiry", s.schedule.VIPExpirySpec,
			"agency_inactivity", s.schedule.AgencyInactivitySpec)
	}

	return nil
}

func (s *scheduler) Run() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	go func() {
		if err := s.asynqScheduler.Run(); err != nil && s.log != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}

// LocalScheduler runs the sweeps in-process with robfig/cron. It serves the
// memory driver, where no Redis is available for asynq.
type LocalScheduler struct {
	cron     *cron.Cron
	schedule Schedule
	handlers map[string]asynq.Handler
	log      *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

var _ Scheduler = (*LocalScheduler)(nil)

// NewLocalScheduler invokes handlers keyed by task type on the schedule.
func NewLocalScheduler(schedule Schedule, handlers map[string]asynq.Handler, log *slog.Logger) *LocalScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalScheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule: schedule.withDefaults(),
		handlers: handlers,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (l *LocalScheduler) RegisterTasks() error {
	if err := l.schedule.Validate(); err != nil {
		return err
	}

	expiry, err := NewVIPExpiryTask(DefaultVIPExpiryBatch)
	if err != nil {
		return err
	}

	if _, err := l.cron.AddFunc(l.schedule.VIPExpirySpec, func() { l.Fire(expiry) }); err != nil {
		return err
	}
	inactivity := NewAgencyInactivityTask()
	if _, err := l.cron.AddFunc(l.schedule.AgencyInactivitySpec, func() { l.Fire(inactivity) }); err != nil {
		return err
	}
	return nil
}

// Fire runs the handler for task synchronously. Missing handlers are ignored.
func (l *LocalScheduler) Fire(task *asynq.Task) {
	h, ok := l.handlers[task.Type()]
	if !ok {
		return
	}

	if err := h.ProcessTask(l.ctx, task); err != nil && l.log != nil {
		l.log.ErrorContext(l.ctx, "local scheduler: task failed", "task_type", task.Type(), "error", err)
	}
}

func (l *LocalScheduler) Run() {
	if l.log != nil {
		l.log.InfoContext(l.ctx, "local scheduler: starting")
	}
	l.cron.Start()
}

func (l *LocalScheduler) Shutdown() {
	l.cancel()
	<-l.cron.Stop().Done()
}
