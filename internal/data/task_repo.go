package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gmvmax/execd/internal/data/pgxutil"
	"github.com/gmvmax/execd/internal/domain/model"
)

var (
	// ErrTaskNotFound is returned when a task is not found.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskNotCancellable is returned when cancelling a task that is not queued.
	ErrTaskNotCancellable = errors.New("task cannot be cancelled (must be in queued status)")
	// ErrTaskNotRetryable is returned when retrying a task that is not failed.
	ErrTaskNotRetryable = errors.New("task cannot be retried (must be in failed status)")
)

// taskNotifyChannel is the pg_notify channel signalled on enqueue.
const taskNotifyChannel = "task_added"

// RepoConfig holds configuration options for the data-layer repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// TaskRepo provides database operations for the task queue and lifecycle.
type TaskRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewTaskRepo creates a new TaskRepo instance with the given database connection and configuration.
func NewTaskRepo(db *sql.DB, cfg RepoConfig) *TaskRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &TaskRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const taskColumns = `
  id,
  task_no,
  shop_id,
  action,
  action_label,
  payload,
  priority,
  source,
  source_ref,
  status,
  result,
  error_message,
  evidence_before,
  evidence_after,
  evidence_error,
  created_at,
  started_at,
  completed_at,
  duration_ms,
  created_by
`

// Create enqueues a new task and notifies listeners in the same transaction.
func (r *TaskRepo) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	if req == nil {
		return nil, errors.New("create task request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	params := r.prepareInsert(req)

	var task *model.Task
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			task, insertErr = r.insertTaskInTx(ctx, tx, params)
			return insertErr
		},
	}); txErr != nil {
		return nil, txErr
	}

	return task, nil
}

type insertTaskParams struct {
	Req    *model.CreateTaskRequest
	TaskNo string
	Source model.TaskSource
}

func (r *TaskRepo) prepareInsert(req *model.CreateTaskRequest) *insertTaskParams {
	source := req.Source
	if source == "" {
		source = model.TaskSourceManual
	}
	return &insertTaskParams{
		Req:    req,
		TaskNo: model.NewTaskNo(r.timeProvider.Now()),
		Source: source,
	}
}

func (r *TaskRepo) insertTaskInTx(ctx context.Context, tx pgx.Tx, p *insertTaskParams) (*model.Task, error) {
	if p == nil || p.Req == nil {
		return nil, errors.New("insert task params are required")
	}

	priority := p.Req.Priority
	if priority == 0 {
		priority = 5
	}

	rows, err := tx.Query(ctx, `
      INSERT INTO execution_tasks(task_no, shop_id, action, action_label, payload, priority, source, source_ref, status, created_by)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'queued',$9)
      RETURNING `+taskColumns,
		p.TaskNo,
		p.Req.ShopID,
		p.Req.Action,
		p.Req.Action.Label(),
		[]byte(p.Req.Payload),
		priority,
		p.Source,
		p.Req.SourceRef,
		p.Req.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	task, collectErr := collectTaskFromRows(rows)
	rows.Close()
	if collectErr != nil {
		return nil, fmt.Errorf("collect task: %w", collectErr)
	}

	if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, taskNotifyChannel, task.ID); execErr != nil {
		return nil, fmt.Errorf("send task notification: %w", execErr)
	}

	return task, nil
}

// collectTaskFromRows collects a single task from pgx rows.
func collectTaskFromRows(rows pgx.Rows) (*model.Task, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	task, err := scanTaskFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return task, nil
}

type taskRowScanner interface {
	Scan(dest ...any) error
}

type taskRowData struct {
	payload, result                              []byte
	sourceRef, errorMessage, createdBy           sql.NullString
	evidenceBefore, evidenceAfter, evidenceError sql.NullString
	startedAt, completedAt                       sql.NullTime
	durationMS                                   sql.NullInt64
}

func (d *taskRowData) scanInto(scanner taskRowScanner, task *model.Task) error {
	return scanner.Scan(
		&task.ID,
		&task.TaskNo,
		&task.ShopID,
		&task.Action,
		&task.ActionLabel,
		&d.payload,
		&task.Priority,
		&task.Source,
		&d.sourceRef,
		&task.Status,
		&d.result,
		&d.errorMessage,
		&d.evidenceBefore,
		&d.evidenceAfter,
		&d.evidenceError,
		&task.CreatedAt,
		&d.startedAt,
		&d.completedAt,
		&d.durationMS,
		&d.createdBy,
	)
}

func (d *taskRowData) apply(task *model.Task) {
	task.Payload = cloneJSON(d.payload)
	task.Result = cloneRawJSON(d.result)
	task.SourceRef = cloneNullableString(d.sourceRef)
	task.ErrorMessage = cloneNullableString(d.errorMessage)
	task.EvidenceBefore = cloneNullableString(d.evidenceBefore)
	task.EvidenceAfter = cloneNullableString(d.evidenceAfter)
	task.EvidenceError = cloneNullableString(d.evidenceError)
	task.StartedAt = cloneNullableTime(d.startedAt)
	task.CompletedAt = cloneNullableTime(d.completedAt)
	task.DurationMS = cloneNullableInt64(d.durationMS)
	task.CreatedBy = cloneNullableString(d.createdBy)
}

func scanTaskFromRow(scanner taskRowScanner) (*model.Task, error) {
	task := &model.Task{}
	var data taskRowData
	if err := data.scanInto(scanner, task); err != nil {
		return nil, err
	}

	data.apply(task)
	return task, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

// cloneRawJSON preserves NULL as nil, unlike cloneJSON which defaults to {}.
func cloneRawJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func cloneNullableInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}
