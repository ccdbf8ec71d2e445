// Package cmdutil contains the setup shared by all commands
package cmdutil

import (
	"context"
	"os"
	"time"

	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/config"
	"github.com/mpapenbr/racereplay/pkg/replaycache"
	"github.com/mpapenbr/racereplay/pkg/replaycache/factory"
	"github.com/mpapenbr/racereplay/pkg/utils"
)

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the application and sql logger from the config values
// and installs the application logger as default.
func SetupLogger() (logger, sqlLogger *log.Logger, err error) {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.WithFilter(config.LogFilter)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, filter)
	}
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel), opts...)
		sqlLogger = log.New(os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel), opts...)
	default:
		logger = log.DevLogger(os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel), opts...)
		sqlLogger = log.DevLogger(os.Stderr,
			parseLogLevel(config.SQLLogLevel, log.InfoLevel), opts...)
	}
	log.ResetDefault(logger)
	return logger, sqlLogger.Named("sql"), nil
}

// StartTelemetry enables otel providers and runtime metrics if configured.
// The returned shutdown func is never nil.
func StartTelemetry(ctx context.Context, logger *log.Logger) func() {
	if !config.EnableTelemetry {
		return func() {}
	}
	logger.Info("Enabling telemetry")
	telemetry, err := config.SetupTelemetry(ctx)
	if err != nil {
		logger.Warn("Could not setup telemetry", log.ErrorField(err))
		return func() {}
	}
	err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
	if err != nil {
		logger.Warn("Could not start runtime metrics", log.ErrorField(err))
	}
	return func() {
		if err := telemetry.Shutdown(); err != nil {
			logger.Warn("telemetry shutdown", log.ErrorField(err))
		}
	}
}

func waitTimeout() time.Duration {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	return timeout
}

// WaitForCache waits for a postgres cache database. sqlite needs no wait.
func WaitForCache(ctx context.Context) error {
	addr := utils.ExtractFromDBURL(config.CacheURL)
	if addr == "" {
		return nil
	}
	return utils.WaitForTCP(ctx, addr, waitTimeout())
}

// WaitForNats waits until the NATS server accepts connections
func WaitForNats(ctx context.Context) error {
	addr := utils.ExtractFromNatsURL(config.NatsURL)
	if addr == "" {
		return nil
	}
	return utils.WaitForTCP(ctx, addr, waitTimeout())
}

// OpenCache opens the configured replay cache, nil if no cache is configured
//
//nolint:whitespace // can't make both editor and linter happy
func OpenCache(
	ctx context.Context,
	logger, sqlLogger *log.Logger,
) (replaycache.Store, error) {
	if config.CacheURL == "" {
		return nil, nil
	}
	if err := WaitForCache(ctx); err != nil {
		return nil, err
	}
	return factory.Open(ctx, config.CacheURL,
		factory.WithLogger(logger.Named("cache")),
		factory.WithSQLLogger(sqlLogger),
		factory.WithTelemetry(config.EnableTelemetry))
}
