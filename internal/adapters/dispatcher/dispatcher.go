// Package dispatcher provides the single-consumer worker that claims queued
// tasks and executes them against live storefront sessions.
package dispatcher

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gmvmax/execd/config"
	"github.com/gmvmax/execd/internal/actions"
	redisadapter "github.com/gmvmax/execd/internal/adapters/redis"
	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/data"
	"github.com/gmvmax/execd/internal/domain/model"
	"github.com/gmvmax/execd/internal/evidence"
	"github.com/gmvmax/execd/internal/locator"
	"github.com/gmvmax/execd/internal/observability/statsd"
	"github.com/gmvmax/execd/internal/service/failurenotifier"
	"github.com/gmvmax/execd/internal/session"
)

// RunnerOptions configures the dispatcher adapter.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	Config config.DispatcherConfig

	// Execution machinery
	Registry *actions.Registry
	Catalog  *locator.Catalog
	Pool     *session.Pool
	Evidence *evidence.Recorder

	// Optional dependency injections (useful for tests/decoupling)
	Tasks           core.TaskRepository
	Logs            core.LogRepository
	Shops           core.ShopRepository
	Status          *redisadapter.WorkerRegistry
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner claims tasks one at a time and drives them through their action
// handler. Tasks touch real merchant consoles, so there is deliberately no
// concurrency knob: one claim, one browser, one task.
type Runner struct {
	tasks    core.TaskRepository
	logs     core.LogRepository
	shops    core.ShopRepository
	registry *actions.Registry
	catalog  *locator.Catalog
	pool     *session.Pool
	evidence *evidence.Recorder
	status   *redisadapter.WorkerRegistry
	metrics  statsd.Sink
	notifier *failurenotifier.Service
	logger   *slog.Logger
	cfg      config.DispatcherConfig
	workerID string

	mu      sync.Mutex
	current *model.Task // task being executed, nil when idle
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func resolveWorkerID(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "dispatcher"
	}
	return host
}

// NewRunner wires repositories and constructs the dispatcher worker.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && (opts.Tasks == nil || opts.Logs == nil || opts.Shops == nil) {
		return nil, errors.New("either DB or all repositories must be provided")
	}
	if opts.Registry == nil {
		return nil, errors.New("action registry is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("locator catalog is required")
	}
	if opts.Pool == nil {
		return nil, errors.New("session pool is required")
	}
	if opts.Evidence == nil {
		return nil, errors.New("evidence recorder is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	logger := resolveLogger(opts.Logger).With("component", "dispatcher")

	tasks := opts.Tasks
	if tasks == nil {
		tasks = data.NewTaskRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}
	logs := opts.Logs
	if logs == nil {
		logs = data.NewLogRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}
	shops := opts.Shops
	if shops == nil {
		shops = data.NewShopRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	return &Runner{
		tasks:    tasks,
		logs:     logs,
		shops:    shops,
		registry: opts.Registry,
		catalog:  opts.Catalog,
		pool:     opts.Pool,
		evidence: opts.Evidence,
		status:   opts.Status,
		metrics:  opts.Metrics,
		notifier: opts.FailureNotifier,
		logger:   logger,
		cfg:      cfg,
		workerID: resolveWorkerID(cfg.WorkerID),
	}, nil
}

// WorkerID reports the identity this runner registers under.
func (r *Runner) WorkerID() string {
	return r.workerID
}

// Run claims and executes tasks until the context is cancelled. The claim
// loop and the heartbeat publisher run concurrently; the loop itself is
// strictly sequential.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting dispatcher",
		"worker_id", r.workerID,
		"poll_interval", r.cfg.PollInterval,
		"task_pause", r.cfg.TaskPause)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.heartbeatLoop(ctx)
	}()

	err := r.claimLoop(ctx)

	cancel()
	wg.Wait()
	r.pool.CloseAll(context.Background())
	r.deregister()
	return err
}

func (r *Runner) claimLoop(ctx context.Context) error {
	for ctx.Err() == nil {
		task, err := r.tasks.ClaimNext(ctx)
		switch {
		case err == nil:
			r.setCurrent(task)
			r.executeTask(ctx, task)
			r.setCurrent(nil)
			if !sleepCtx(ctx, r.cfg.TaskPause) {
				return ctx.Err()
			}
		case errors.Is(err, model.ErrNoTasksAvailable):
			if !r.waitForWork(ctx) {
				return ctx.Err()
			}
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.ErrorContext(ctx, "claim next task", "error", err)
			if !sleepCtx(ctx, r.cfg.ErrorBackoff) {
				return ctx.Err()
			}
		}
	}
	return ctx.Err()
}

// waitForWork blocks on the enqueue notification channel, with the poll
// interval as an upper bound in case a NOTIFY is missed. Returns false when
// the parent context is done.
func (r *Runner) waitForWork(ctx context.Context) bool {
	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.PollInterval)
	defer cancel()

	err := r.tasks.WaitForNotification(waitCtx)
	if ctx.Err() != nil {
		return false
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		r.logger.WarnContext(ctx, "wait for task notification", "error", err)
		return sleepCtx(ctx, r.cfg.ErrorBackoff)
	}
	return true
}

func (r *Runner) setCurrent(task *model.Task) {
	r.mu.Lock()
	r.current = task
	r.mu.Unlock()
	r.publishStatus(context.Background())
}

func (r *Runner) snapshotStatus() redisadapter.WorkerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := redisadapter.WorkerStatus{
		WorkerID: r.workerID,
		State:    redisadapter.WorkerStateIdle,
	}
	if r.current != nil {
		status.State = redisadapter.WorkerStateRunning
		status.CurrentTaskNo = r.current.TaskNo
		status.CurrentShopID = r.current.ShopID
	}
	return status
}

// heartbeatLoop republishes worker presence so operators can see live
// dispatchers. Registry entries expire on their own TTL, so a crashed worker
// simply ages out.
func (r *Runner) heartbeatLoop(ctx context.Context) {
	if r.status == nil {
		return
	}

	r.publishStatus(ctx)

	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.publishStatus(ctx)
		}
	}
}

func (r *Runner) publishStatus(ctx context.Context) {
	if r.status == nil {
		return
	}
	if err := r.status.Publish(ctx, r.snapshotStatus()); err != nil && ctx.Err() == nil {
		r.logger.WarnContext(ctx, "publish worker status", "worker_id", r.workerID, "error", err)
	}
}

func (r *Runner) deregister() {
	if r.status == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.status.Remove(ctx, r.workerID); err != nil {
		r.logger.Warn("deregister worker", "worker_id", r.workerID, "error", err)
	}
}

// sleepCtx sleeps for d unless ctx is done first; reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
