package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/domain/model"
	apperrors "github.com/gmvmax/execd/internal/errors"
)

// requireUUID rejects malformed ids before they reach the database. Operator
// tooling passes ids through verbatim, so a typo should read as a validation
// error rather than a not-found.
func requireUUID(field, id string) error {
	if err := uuid.Validate(id); err != nil {
		return apperrors.ValidationField(field, fmt.Sprintf("%q is not a valid UUID", id))
	}
	return nil
}

// ActionValidator checks a payload against the handler that would execute it.
// The sealed action registry satisfies this.
type ActionValidator interface {
	ValidatePayload(kind model.ActionKind, raw []byte) error
}

// TaskServiceOptions groups dependencies for TaskService.
type TaskServiceOptions struct {
	Repo    core.TaskRepository // Required: task repository
	Logs    core.LogRepository  // Required: execution log repository
	Shops   core.ShopRepository // Required: shop directory
	Actions ActionValidator     // Required: payload validation against the registry
	Logger  *slog.Logger        // Optional: structured logger
}

// TaskService provides business logic for the task queue's outer surface.
//
// This service manages:
// - Enqueueing tasks, the only legitimate create path
// - The operator state machine (cancel while queued, retry after failure)
// - Read access to tasks, their log trails and queue statistics.
type TaskService struct {
	repo    core.TaskRepository
	logs    core.LogRepository
	shops   core.ShopRepository
	actions ActionValidator
	logger  *slog.Logger
}

// NewTaskService constructs a new TaskService.
func NewTaskService(opts TaskServiceOptions) (*TaskService, error) {
	if opts.Repo == nil {
		return nil, errors.New("TaskRepository is required")
	}
	if opts.Logs == nil {
		return nil, errors.New("LogRepository is required")
	}
	if opts.Shops == nil {
		return nil, errors.New("ShopRepository is required")
	}
	if opts.Actions == nil {
		return nil, errors.New("ActionValidator is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "task_service")
	}

	return &TaskService{
		repo:    opts.Repo,
		logs:    opts.Logs,
		shops:   opts.Shops,
		actions: opts.Actions,
		logger:  logger,
	}, nil
}

// MustNewTaskService constructs a new TaskService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewTaskService(opts TaskServiceOptions) *TaskService {
	svc, err := NewTaskService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create TaskService: %v", err))
	}
	return svc
}

// Enqueue validates and persists a new task. The action must be registered
// and the payload must satisfy that handler's shape before any row exists.
func (s *TaskService) Enqueue(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := requireUUID("shop_id", req.ShopID); err != nil {
		return nil, err
	}
	if err := s.actions.ValidatePayload(req.Action, req.Payload); err != nil {
		return nil, apperrors.ValidationField("payload", err.Error())
	}

	// The shop must exist; its connection status is checked at execution
	// time, not here, so operators can queue work for a tenant that is
	// temporarily offline.
	if _, err := s.shops.GetByID(ctx, req.ShopID); err != nil {
		return nil, fmt.Errorf("resolve shop %s: %w", req.ShopID, err)
	}

	task, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "task enqueued",
			"id", task.ID,
			"task_no", task.TaskNo,
			"shop_id", task.ShopID,
			"action", task.Action,
			"priority", task.Priority,
		)
	}

	return task, nil
}

// Get retrieves a task by id.
func (s *TaskService) Get(ctx context.Context, id string) (*model.Task, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// GetByTaskNo retrieves a task by its correlation number.
func (s *TaskService) GetByTaskNo(ctx context.Context, taskNo string) (*model.Task, error) {
	task, err := s.repo.GetByTaskNo(ctx, taskNo)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskNo, err)
	}
	return task, nil
}

// List returns tasks matching the filter, newest first.
func (s *TaskService) List(ctx context.Context, opts *model.TaskListOptions) ([]*model.Task, error) {
	tasks, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Logs returns a task's log trail ordered by step.
func (s *TaskService) Logs(ctx context.Context, taskID string) ([]*model.LogEntry, error) {
	if err := requireUUID("task_id", taskID); err != nil {
		return nil, err
	}
	entries, err := s.logs.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list logs for task %s: %w", taskID, err)
	}
	return entries, nil
}

// Stats returns queue counts per status.
func (s *TaskService) Stats(ctx context.Context) (*model.TaskStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

// Cancel moves a queued task to cancelled. Running and terminal tasks are
// rejected; execution cannot be preempted once claimed.
func (s *TaskService) Cancel(ctx context.Context, id string) (*model.Task, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if task.Status != model.TaskStatusQueued {
		return nil, apperrors.Conflict(
			fmt.Sprintf("task %s cannot be cancelled in status %q", task.TaskNo, task.Status))
	}

	// The status guard runs again inside the UPDATE; a dispatcher claiming
	// the row between the read above and here loses us the race cleanly.
	cancelled, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel task %s: %w", id, err)
	}
	if !cancelled {
		return nil, apperrors.Conflict(
			fmt.Sprintf("task %s was claimed before it could be cancelled", task.TaskNo))
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "task cancelled", "id", id, "task_no", task.TaskNo)
	}

	return s.repo.GetByID(ctx, id)
}

// Retry creates a fresh queued task from a failed one. The original row is
// left untouched; source_ref ties the copy back to it.
func (s *TaskService) Retry(ctx context.Context, id string) (*model.Task, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	original, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if original.Status != model.TaskStatusFailed {
		return nil, apperrors.Conflict(
			fmt.Sprintf("task %s cannot be retried in status %q", original.TaskNo, original.Status))
	}

	sourceRef := original.TaskNo
	retry, err := s.repo.Create(ctx, &model.CreateTaskRequest{
		ShopID:    original.ShopID,
		Action:    original.Action,
		Payload:   original.Payload,
		Priority:  original.Priority,
		Source:    model.TaskSourceRetry,
		SourceRef: &sourceRef,
		CreatedBy: original.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("retry task %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "task retried",
			"original_task_no", original.TaskNo,
			"retry_task_no", retry.TaskNo,
		)
	}

	return retry, nil
}

// WaitForNotification blocks until a new task is enqueued or ctx is done.
func (s *TaskService) WaitForNotification(ctx context.Context) error {
	return s.repo.WaitForNotification(ctx)
}
