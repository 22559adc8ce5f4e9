package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/gmvmax/execd/config"
	"github.com/gmvmax/execd/internal/actions"
	"github.com/gmvmax/execd/internal/adapters/dispatcher"
	"github.com/gmvmax/execd/internal/adapters/reaper"
	redisadapter "github.com/gmvmax/execd/internal/adapters/redis"
	"github.com/gmvmax/execd/internal/data"
	"github.com/gmvmax/execd/internal/evidence"
	"github.com/gmvmax/execd/internal/locator"
	"github.com/gmvmax/execd/internal/observability/statsd"
	"github.com/gmvmax/execd/internal/provision"
	"github.com/gmvmax/execd/internal/service/failurenotifier"
	"github.com/gmvmax/execd/internal/session"
)

// DispatcherRuntimeConfig contains configuration for the dispatcher worker.
type DispatcherRuntimeConfig struct {
	DB              *sql.DB
	RedisClient     redis.UniversalClient
	Logger          *slog.Logger
	Dispatcher      config.DispatcherConfig
	Provisioner     config.ProvisionerConfig
	Session         config.SessionConfig
	Locator         config.LocatorConfig
	Evidence        config.EvidenceConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunDispatcher wires the execution machinery and starts the dispatcher loop.
func RunDispatcher(ctx context.Context, cfg DispatcherRuntimeConfig) error {
	provisioner, err := provision.NewClient(provision.ClientOptions{
		BaseURL:  cfg.Provisioner.BaseURL,
		Company:  cfg.Provisioner.Company,
		Username: cfg.Provisioner.Username,
		Password: cfg.Provisioner.Password,
		Timeout:  cfg.Provisioner.Timeout,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create provisioning client: %w", err)
	}

	catalog, err := locator.Load(cfg.Locator.Path)
	if err != nil {
		return fmt.Errorf("load locator catalog: %w", err)
	}

	recorder, err := evidence.NewRecorder(evidence.RecorderOptions{
		Dir:    cfg.Evidence.Dir,
		Logger: cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create evidence recorder: %w", err)
	}

	pool, err := session.NewPool(session.PoolOptions{
		Provisioner: provisioner,
		Shops:       data.NewShopRepo(cfg.DB, data.RepoConfig{Logger: cfg.Logger}),
		Logger:      cfg.Logger,
		Timeouts: session.Timeouts{
			Navigate: cfg.Session.NavigateTimeout,
			Element:  cfg.Session.ElementTimeout,
			Settle:   cfg.Session.SettleTimeout,
		},
	})
	if err != nil {
		return fmt.Errorf("create session pool: %w", err)
	}

	var registry *redisadapter.WorkerRegistry
	if cfg.RedisClient != nil {
		registry = redisadapter.NewWorkerRegistry(cfg.RedisClient, cfg.Dispatcher.HeartbeatTTL)
	}

	runner, err := dispatcher.NewRunner(dispatcher.RunnerOptions{
		DB:              cfg.DB,
		Logger:          cfg.Logger,
		Config:          cfg.Dispatcher,
		Registry:        actions.NewRegistry(),
		Catalog:         catalog,
		Pool:            pool,
		Evidence:        recorder,
		Status:          registry,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
	if err != nil {
		return fmt.Errorf("create dispatcher runner: %w", err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run dispatcher: %w", runErr)
	}
	return nil
}

// ReaperRuntimeConfig contains configuration for the reaper.
type ReaperRuntimeConfig struct {
	DB     *sql.DB
	Logger *slog.Logger
	Config config.ReaperConfig
}

// RunReaper starts the task hygiene loop.
func RunReaper(ctx context.Context, cfg ReaperRuntimeConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:     cfg.DB,
		Config: cfg.Config,
		Logger: cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
