package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Proton-105/himera-wallet/internal/database"
	"github.com/Proton-105/himera-wallet/internal/economy"
	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
	"github.com/Proton-105/himera-wallet/internal/game"
	"github.com/Proton-105/himera-wallet/internal/health"
	"github.com/Proton-105/himera-wallet/internal/httpapi"
	"github.com/Proton-105/himera-wallet/internal/i18n"
	"github.com/Proton-105/himera-wallet/internal/idempotency"
	"github.com/Proton-105/himera-wallet/internal/jobs"
	"github.com/Proton-105/himera-wallet/internal/jobs/handlers"
	"github.com/Proton-105/himera-wallet/internal/ledger"
	"github.com/Proton-105/himera-wallet/internal/lifecycle"
	"github.com/Proton-105/himera-wallet/internal/lock"
	"github.com/Proton-105/himera-wallet/internal/middleware"
	"github.com/Proton-105/himera-wallet/internal/notify"
	"github.com/Proton-105/himera-wallet/internal/payout"
	"github.com/Proton-105/himera-wallet/internal/ratelimit"
	"github.com/Proton-105/himera-wallet/internal/rewards"
	"github.com/Proton-105/himera-wallet/internal/user"
	"github.com/Proton-105/himera-wallet/internal/usercache"
	"github.com/Proton-105/himera-wallet/internal/vip"
	"github.com/Proton-105/himera-wallet/internal/wallet"
	"github.com/Proton-105/himera-wallet/migrations"
	"github.com/Proton-105/himera-wallet/pkg/config"
	"github.com/Proton-105/himera-wallet/pkg/graceful"
	"github.com/Proton-105/himera-wallet/pkg/logger"
	"github.com/Proton-105/himera-wallet/pkg/metrics"
	redisclient "github.com/Proton-105/himera-wallet/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	decimal.MarshalJSONWithoutQuotes = true

	cfg, v, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	if err := run(ctx, cfg, v, log); err != nil {
		log.Error("walletd stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, v *viper.Viper, log *slog.Logger) error {
	log.Info("starting himera wallet",
		slog.String("port", cfg.Server.Port),
		slog.String("storage", cfg.Storage.Driver),
		slog.Bool("redis", cfg.Redis.Addr != ""),
	)

	shutdown := lifecycle.NewShutdown(log)

	flushSentry, err := logger.InitSentry(*cfg)
	if err != nil {
		return err
	}
	shutdown.Register("sentry", func(context.Context) error {
		flushSentry()
		return nil
	})

	checker := health.NewChecker(log)

	store, err := openStore(ctx, cfg, log, shutdown)
	if err != nil {
		return err
	}
	checker.AddCheck("ledger", store)

	templates, err := i18n.Load(cfg.Notifications.DefaultLanguage)
	if err != nil {
		return err
	}

	var deliveryOpts []notify.DeliveryOption
	if cfg.Notifications.Telegram.Enabled {
		sender, err := notify.NewTelegramSender(cfg.Notifications.Telegram.Token, cfg.Notifications.Telegram.Timeout)
		if err != nil {
			return err
		}
		deliveryOpts = append(deliveryOpts, notify.WithSender(sender))
	}
	deliverer := notify.NewDeliverer(store, templates, cfg.Notifications.DefaultLanguage, log, deliveryOpts...)

	deps, err := connectInfra(ctx, cfg, log, shutdown, deliverer)
	if err != nil {
		return err
	}
	if deps.redis != nil {
		checker.AddCheck("redis", deps.redis)
	}

	engine := wallet.NewEngine(store, deps.locker, deps.notifier, log, wallet.WithRechargeRecorder(vip.Recorder{}))
	vipSvc := vip.NewService(engine, log)
	economySvc := economy.NewService(engine, log)

	services := httpapi.Services{
		Users:         user.NewService(engine, deps.users, log),
		Wallet:        engine,
		VIP:           vipSvc,
		Rewards:       rewards.NewService(engine, log),
		Economy:       economySvc,
		Game:          game.NewService(engine, game.CryptoSource{}, log),
		Payout:        payout.NewService(engine, log),
		Notifications: notify.NewService(store),
	}

	if err := startJobs(ctx, cfg, log, shutdown, deps, deliverer, vipSvc, economySvc); err != nil {
		return err
	}

	errs := apperrors.NewHandler(log, cfg.Sentry.Enabled)
	limiter := middleware.NewRateLimiter(deps.limiter, ratelimit.NewRules(cfg.RateLimit), errs, log)
	config.Watch(v, func(next *config.Config) {
		limiter.SetRules(ratelimit.NewRules(next.RateLimit))
		log.Info("rate limit rules reloaded")
	}, func(err error) {
		log.Error("config reload failed", slog.Any("error", err))
	})

	probes := lifecycle.NewProbes(checker)
	router := httpapi.NewRouter(services, httpapi.Options{
		Errors:      errs,
		Idempotency: deps.idempotency,
		RateLimiter: limiter,
		Probes:      probes,
		Log:         log,
	})

	srv := graceful.NewServer(log, &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, cfg.Server.ShutdownTimeout)
	srv.BeforeShutdown(probes.Drain)

	serveErr := srv.ListenAndServe(ctx)

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}
	log.Info("himera wallet stopped")

	return serveErr
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger, shutdown *lifecycle.Shutdown) (ledger.Store, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("using in-memory ledger, balances are lost on restart")
		return ledger.NewMemoryStore(), nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	migrator := database.NewMigrator(db, log)
	if dir := cfg.Database.MigrationsDir; dir != "" {
		err = migrator.ApplyDir(ctx, dir)
	} else {
		err = migrator.Apply(ctx, migrations.FS, ".")
	}
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return ledger.NewPostgresStore(db, log), nil
}

// infra holds the components whose implementation depends on Redis being configured.
type infra struct {
	redis       *redisclient.Client
	asynqOpt    asynq.RedisClientOpt
	locker      lock.Locker
	users       *usercache.Cache
	idempotency idempotency.Manager
	limiter     ratelimit.Limiter
	notifier    notify.Notifier
	jobs        jobs.Manager
}

func connectInfra(ctx context.Context, cfg *config.Config, log *slog.Logger, shutdown *lifecycle.Shutdown, deliverer *notify.Deliverer) (*infra, error) {
	memLimiter := ratelimit.NewMemoryLimiter()
	go ratelimit.NewJanitor(memLimiter, log, time.Minute, 10*time.Minute).Run(ctx)

	if cfg.Redis.Addr == "" {
		log.Warn("redis is not configured, using in-process locks, limits and notifications")

		idemStore := idempotency.NewMemoryStore()
		go idempotency.NewCleaner(idemStore, log, time.Minute).Run(ctx)

		inline := notify.NewInline(deliverer, log)
		shutdown.Register("notifications", inline.Close)

		return &infra{
			locker:      lock.NopLocker{},
			idempotency: idempotency.NewManager(idemStore, log),
			limiter:     memLimiter,
			notifier:    inline,
		}, nil
	}

	client, err := redisclient.New(ctx, redisclient.FromConfig(cfg.Redis))
	if err != nil {
		return nil, err
	}
	shutdown.Register("redis", func(context.Context) error { return client.Close() })

	idemStore := idempotency.NewRedisStore(client.Client, log)
	go idempotency.NewCleaner(idemStore, log, 10*time.Minute).Run(ctx)

	in := &infra{
		redis:       client,
		locker:      lock.NewRedisLocker(client.Client, cfg.Redis.LockTTL, cfg.Redis.LockWait, log),
		users:       usercache.NewCache(client.Client),
		idempotency: idempotency.NewManager(idemStore, log),
		limiter:     ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(client.Client, log), memLimiter, log),
		asynqOpt: asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		},
	}

	if !cfg.Jobs.Enabled {
		inline := notify.NewInline(deliverer, log)
		shutdown.Register("notifications", inline.Close)
		in.notifier = inline
		return in, nil
	}

	in.jobs = jobs.NewManager(in.asynqOpt, log)
	shutdown.Register("jobs client", func(context.Context) error { return in.jobs.Close() })
	in.notifier = notify.NewQueue(in.jobs, log)

	return in, nil
}

func startJobs(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	shutdown *lifecycle.Shutdown,
	in *infra,
	deliverer *notify.Deliverer,
	vipSvc *vip.Service,
	economySvc *economy.Service,
) error {
	schedule := jobs.Schedule{
		VIPExpirySpec:        cfg.Jobs.VIPExpirySpec,
		AgencyInactivitySpec: cfg.Jobs.AgencyActivitySpec,
	}
	expiry := handlers.NewVIPExpiryHandler(vipSvc, log)
	inactivity := handlers.NewAgencyInactivityHandler(economySvc, log)

	if in.jobs == nil {
		local := jobs.NewLocalScheduler(schedule, map[string]asynq.Handler{
			jobs.TaskTypeVIPExpiry:        expiry,
			jobs.TaskTypeAgencyInactivity: inactivity,
		}, log)
		if err := local.RegisterTasks(); err != nil {
			return fmt.Errorf("register local tasks: %w", err)
		}
		local.Run()
		shutdown.Register("local scheduler", func(context.Context) error {
			local.Shutdown()
			return nil
		})
		return nil
	}

	worker := jobs.NewWorker(in.asynqOpt, cfg.Jobs.Queues, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(notify.TaskTypeDeliver, deliverer)
	worker.RegisterHandler(jobs.TaskTypeVIPExpiry, expiry)
	worker.RegisterHandler(jobs.TaskTypeAgencyInactivity, inactivity)
	if err := worker.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	shutdown.Register("worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})

	scheduler := jobs.NewScheduler(in.asynqOpt, schedule, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return fmt.Errorf("register scheduled tasks: %w", err)
	}
	scheduler.Run()
	shutdown.Register("scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})

	inspector := jobs.NewInspector(in.asynqOpt, cfg.Jobs.Queues)
	shutdown.Register("inspector", func(context.Context) error { return inspector.Close() })
	go metrics.NewQueueCollector(inspector, 15*time.Second).Run(ctx)

	return nil
}
