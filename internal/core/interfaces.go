package core

import (
	"context"
	"time"

	"github.com/gmvmax/execd/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// TaskRepository defines the interface for task queue and lifecycle operations.
type TaskRepository interface {
	Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error)
	GetByID(ctx context.Context, id string) (*model.Task, error)
	GetByTaskNo(ctx context.Context, taskNo string) (*model.Task, error)
	List(ctx context.Context, opts *model.TaskListOptions) ([]*model.Task, error)

	// ClaimNext atomically claims the highest-priority, oldest queued task and
	// moves it to running. Returns model.ErrNoTasksAvailable when the queue is
	// empty. Under concurrent callers at most one claimant wins each task.
	ClaimNext(ctx context.Context) (*model.Task, error)

	// WaitForNotification blocks until a new task is enqueued or ctx is done.
	WaitForNotification(ctx context.Context) error

	Complete(ctx context.Context, params CompleteTaskParams) (bool, error)
	Fail(ctx context.Context, params FailTaskParams) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	SetEvidenceBefore(ctx context.Context, id, ref string) error
	Stats(ctx context.Context) (*model.TaskStats, error)

	// FailStaleRunning fails running tasks whose started_at is older than maxAge.
	// Crash hardening for the single-consumer loop; returns rows affected.
	FailStaleRunning(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// CompleteTaskParams groups parameters for TaskRepository.Complete.
type CompleteTaskParams struct {
	ID            string
	Result        []byte
	EvidenceAfter *string
	Duration      time.Duration
}

// FailTaskParams groups parameters for TaskRepository.Fail.
type FailTaskParams struct {
	ID            string
	ErrorMessage  string
	EvidenceError *string
	Duration      time.Duration
}

// LogRepository defines the interface for a task's append-only audit trail.
type LogRepository interface {
	// Append stores a new entry, assigning the next step number for the task.
	Append(ctx context.Context, taskID string, req *model.AppendLogRequest) (*model.LogEntry, error)
	ListByTask(ctx context.Context, taskID string) ([]*model.LogEntry, error)
}

// ShopRepository defines the interface for shop (tenant) directory operations.
type ShopRepository interface {
	Create(ctx context.Context, req *model.CreateShopRequest) (*model.Shop, error)
	GetByID(ctx context.Context, id string) (*model.Shop, error)
	List(ctx context.Context, limit, offset int) ([]*model.Shop, error)
	Update(ctx context.Context, id string, req *model.UpdateShopRequest) (*model.Shop, error)
	Delete(ctx context.Context, id string) (bool, error)

	// SetConnectionStatus records the outcome of a connection attempt. When
	// connectedAt is non-nil, last_connected_at is stamped as well.
	SetConnectionStatus(ctx context.Context, params SetConnectionStatusParams) error

	// UpsertByExternalBrowserID inserts or refreshes a shop from the
	// provisioner's browser listing during a bulk sync.
	UpsertByExternalBrowserID(ctx context.Context, req *model.CreateShopRequest) (*model.Shop, error)
}

// SetConnectionStatusParams groups parameters for ShopRepository.SetConnectionStatus.
type SetConnectionStatusParams struct {
	ShopID      string
	Status      model.ConnectionStatus
	ConnectedAt *time.Time
}

// ReaperRepository defines the subset of task operations the reaper needs.
type ReaperRepository interface {
	FailStaleRunning(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
	DeleteOldTasks(ctx context.Context, params DeleteOldTasksParams) (int64, error)
}

// DeleteOldTasksParams groups parameters for ReaperRepository.DeleteOldTasks.
type DeleteOldTasksParams struct {
	Status    model.TaskStatus
	MaxAge    time.Duration
	BatchSize int
}
