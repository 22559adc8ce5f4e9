package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gmvmax/execd/internal/actions"
	redisadapter "github.com/gmvmax/execd/internal/adapters/redis"
	"github.com/gmvmax/execd/internal/bootstrap"
	"github.com/gmvmax/execd/internal/data"
	"github.com/gmvmax/execd/internal/provision"
	"github.com/gmvmax/execd/internal/service"
)

var (
	errRedisNotConfigured = errors.New("redis is not configured")
	errRedisNotWanted     = errors.New("redis connection not requested")
)

// infra bundles the connections and services an admin command needs. Commands
// request Redis explicitly; most of them only touch Postgres.
type infra struct {
	DB      *sql.DB
	Redis   redis.UniversalClient
	Tasks   *service.TaskService
	Shops   *service.ShopService
	Workers *redisadapter.WorkerRegistry
}

type infraOptions struct {
	WithRedis bool
}

func connectInfra(cmdCtx *commandContext) (*infra, error) {
	return connectInfraWithOptions(cmdCtx, infraOptions{})
}

func connectInfraWithOptions(cmdCtx *commandContext, opts infraOptions) (*infra, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	inf := &infra{DB: db}
	if err := attachRedisClient(cmdCtx, inf, opts); err != nil {
		closeInfra(cmdCtx, inf)
		return nil, err
	}

	repoCfg := data.RepoConfig{Logger: cmdCtx.Logger}
	taskRepo := data.NewTaskRepo(db, repoCfg)
	logRepo := data.NewLogRepo(db, repoCfg)
	shopRepo := data.NewShopRepo(db, repoCfg)

	inf.Tasks = service.MustNewTaskService(service.TaskServiceOptions{
		Repo:    taskRepo,
		Logs:    logRepo,
		Shops:   shopRepo,
		Actions: actions.NewRegistry(),
		Logger:  cmdCtx.Logger,
	})
	inf.Shops = service.MustNewShopService(service.ShopServiceOptions{
		Repo:        shopRepo,
		Provisioner: maybeProvisionClient(cmdCtx),
		Logger:      cmdCtx.Logger,
	})
	return inf, nil
}

func attachRedisClient(cmdCtx *commandContext, inf *infra, opts infraOptions) error {
	client, err := maybeConnectRedis(cmdCtx, opts)
	switch {
	case errors.Is(err, errRedisNotWanted):
		return nil
	case errors.Is(err, errRedisNotConfigured):
		return err
	case err != nil:
		return fmt.Errorf("connect redis: %w", err)
	}
	inf.Redis = client
	inf.Workers = redisadapter.NewWorkerRegistry(client, cmdCtx.Config.Dispatcher.HeartbeatTTL)
	return nil
}

func maybeConnectRedis(cmdCtx *commandContext, opts infraOptions) (redis.UniversalClient, error) {
	if !opts.WithRedis {
		return nil, errRedisNotWanted
	}
	if !hasRedisConfig(cmdCtx) {
		return nil, errRedisNotConfigured
	}
	return bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
}

func hasRedisConfig(cmdCtx *commandContext) bool {
	rc := cmdCtx.Config.Redis
	return rc.URI != "" || rc.UseSentinel || rc.UseCluster
}

// maybeProvisionClient builds the vendor API client if configured. Commands
// that need it (sync-shops, test-shop) fail with a clear service error when
// it is absent; everything else works without the browser farm.
func maybeProvisionClient(cmdCtx *commandContext) service.BrowserLister {
	client, err := provision.NewClient(provision.ClientOptions{
		BaseURL:  cmdCtx.Config.Provisioner.BaseURL,
		Company:  cmdCtx.Config.Provisioner.Company,
		Username: cmdCtx.Config.Provisioner.Username,
		Password: cmdCtx.Config.Provisioner.Password,
		Timeout:  cmdCtx.Config.Provisioner.Timeout,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		cmdCtx.Logger.Warn("provisioning client unavailable", "error", err)
		return nil
	}
	return client
}

func closeInfra(cmdCtx *commandContext, inf *infra) {
	if inf == nil {
		return
	}
	if inf.Redis != nil {
		if err := inf.Redis.Close(); err != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", err)
		}
	}
	if inf.DB != nil {
		if err := inf.DB.Close(); err != nil {
			cmdCtx.Logger.Warn("db close failed", "error", err)
		}
	}
}
