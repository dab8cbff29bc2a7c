package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/himera-wallet/pkg/config"
)

// InitSentry initializes the global Sentry client. The returned flush func
// is a no-op when Sentry is disabled.
func InitSentry(cfg config.Config) (func(), error) {
	if !cfg.Sentry.Enabled {
		return func() {}, nil
	}

	env := cfg.Sentry.Environment
	if env == "" {
		env = cfg.AppEnv
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: env,
		SampleRate:  cfg.Sentry.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("init sentry: %w", err)
	}

	return func() { sentry.Flush(2 * time.Second) }, nil
}
