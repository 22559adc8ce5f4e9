package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/data/pgxutil"
	"github.com/gmvmax/execd/internal/domain/model"
)

// SQL used by ClaimNext to atomically claim the next queued task.
// The CTE row-locks the winner so concurrent claimants skip it instead
// of blocking; exactly one caller moves any given task to running.
const claimNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM execution_tasks
    WHERE status = 'queued'
    ORDER BY priority DESC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE execution_tasks t
  SET
    status = 'running',
    started_at = $1
  FROM cte
  WHERE t.id = cte.id
  RETURNING ` + taskColumnsQualified

const taskColumnsQualified = `
  t.id, t.task_no, t.shop_id, t.action, t.action_label, t.payload, t.priority,
  t.source, t.source_ref, t.status, t.result, t.error_message,
  t.evidence_before, t.evidence_after, t.evidence_error,
  t.created_at, t.started_at, t.completed_at, t.duration_ms, t.created_by`

// ClaimNext atomically claims the next eligible task, moving it to running.
// Returns model.ErrNoTasksAvailable when no queued task exists.
func (r *TaskRepo) ClaimNext(ctx context.Context) (*model.Task, error) {
	now := r.timeProvider.Now().UTC()

	var task *model.Task
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, claimNextUpdateSQL, now)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		var collectErr error
		task, collectErr = collectTaskFromRows(rows)
		return collectErr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNoTasksAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim next task: %w", err)
	}
	return task, nil
}

// Complete marks a running task as success, recording the structured result,
// after-evidence reference, and elapsed duration.
func (r *TaskRepo) Complete(ctx context.Context, params core.CompleteTaskParams) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE execution_tasks
		SET status = 'success',
		    result = $2,
		    evidence_after = COALESCE($3, evidence_after),
		    completed_at = $4,
		    duration_ms = $5
		WHERE id = $1 AND status = 'running'
	`, params.ID, params.Result, params.EvidenceAfter, now, params.Duration.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete task rows affected: %w", err)
	}
	return affected == 1, nil
}

// Fail marks a running task as failed with its error message, error-evidence
// reference, and elapsed duration.
func (r *TaskRepo) Fail(ctx context.Context, params core.FailTaskParams) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE execution_tasks
		SET status = 'failed',
		    error_message = $2,
		    evidence_error = COALESCE($3, evidence_error),
		    completed_at = $4,
		    duration_ms = $5
		WHERE id = $1 AND status = 'running'
	`, params.ID, params.ErrorMessage, params.EvidenceError, now, params.Duration.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("fail task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail task rows affected: %w", err)
	}
	return affected == 1, nil
}

// Cancel moves a queued task to cancelled. The status guard lives in SQL so a
// concurrent claim and a cancel cannot both win.
func (r *TaskRepo) Cancel(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE execution_tasks
		SET status = 'cancelled',
		    completed_at = $2
		WHERE id = $1 AND status = 'queued'
	`, id, now)
	if err != nil {
		return false, fmt.Errorf("cancel task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel task rows affected: %w", err)
	}
	return affected == 1, nil
}

// SetEvidenceBefore stores the before-execution screenshot reference.
func (r *TaskRepo) SetEvidenceBefore(ctx context.Context, id, ref string) error {
	if _, err := r.DB.ExecContext(ctx, `
		UPDATE execution_tasks SET evidence_before = $2 WHERE id = $1
	`, id, ref); err != nil {
		return fmt.Errorf("set evidence before: %w", err)
	}
	return nil
}

// Stats returns counts of tasks in each status.
func (r *TaskRepo) Stats(ctx context.Context) (*model.TaskStats, error) {
	var s model.TaskStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'queued')    AS queued,
    count(*) FILTER (WHERE status = 'running')   AS running,
    count(*) FILTER (WHERE status = 'success')   AS success,
    count(*) FILTER (WHERE status = 'failed')    AS failed,
    count(*) FILTER (WHERE status = 'cancelled') AS cancelled
  FROM execution_tasks
  `).Scan(
		&s.Queued,
		&s.Running,
		&s.Success,
		&s.Failed,
		&s.Cancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get task stats: %w", err)
	}
	return &s, nil
}

// FailStaleRunning fails running tasks whose started_at is older than maxAge.
// The single consumer only leaves tasks in running if it crashed mid-task.
func (r *TaskRepo) FailStaleRunning(
	ctx context.Context,
	maxAge time.Duration,
	batchSize int,
) (int64, error) {
	now := r.timeProvider.Now().UTC()
	cutoff := now.Add(-maxAge)

	res, err := r.DB.ExecContext(ctx, `
		UPDATE execution_tasks
		SET status = 'failed',
		    error_message = 'abandoned: executor did not finish within '||$3||' of starting',
		    completed_at = $2
		WHERE id IN (
			SELECT id FROM execution_tasks
			WHERE status = 'running' AND started_at < $1
			ORDER BY started_at ASC
			LIMIT $4
		)
	`, cutoff, now, maxAge.String(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("fail stale running tasks: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stale running rows affected: %w", err)
	}
	return affected, nil
}

// DeleteOldTasks deletes terminal tasks older than the configured max age.
// Log entries cascade with the task rows.
func (r *TaskRepo) DeleteOldTasks(ctx context.Context, params core.DeleteOldTasksParams) (int64, error) {
	if !params.Status.Terminal() {
		return 0, fmt.Errorf("refusing to delete non-terminal status %q", params.Status)
	}
	cutoff := r.timeProvider.Now().UTC().Add(-params.MaxAge)

	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM execution_tasks
		WHERE id IN (
			SELECT id FROM execution_tasks
			WHERE status = $1 AND completed_at < $2
			ORDER BY completed_at ASC
			LIMIT $3
		)
	`, string(params.Status), cutoff, params.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("delete old %s tasks: %w", params.Status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old tasks rows affected: %w", err)
	}
	return affected, nil
}

// WaitForNotification waits for a PostgreSQL notification indicating a new task was enqueued.
func (r *TaskRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	quoted := pgx.Identifier{taskNotifyChannel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", taskNotifyChannel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// GetByID retrieves a task by its ID.
func (r *TaskRepo) GetByID(ctx context.Context, id string) (*model.Task, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

// GetByTaskNo retrieves a task by its correlation number.
func (r *TaskRepo) GetByTaskNo(ctx context.Context, taskNo string) (*model.Task, error) {
	return r.getOne(ctx, `WHERE task_no = $1`, taskNo)
}

func (r *TaskRepo) getOne(ctx context.Context, where string, arg any) (*model.Task, error) {
	var task *model.Task
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			SELECT `+taskColumns+`
			FROM execution_tasks
			`+where, arg)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		var collectErr error
		task, collectErr = collectTaskFromRows(rows)
		return collectErr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns tasks matching the given filters, newest first.
func (r *TaskRepo) List(ctx context.Context, opts *model.TaskListOptions) ([]*model.Task, error) {
	if opts == nil {
		opts = &model.TaskListOptions{}
	}
	opts.Normalize()

	where, args := buildTaskListFilter(opts)
	args = append(args, opts.Limit, opts.Offset)
	limitPos := len(args) - 1
	query := `
		SELECT ` + taskColumns + `
		FROM execution_tasks
		` + where + `
		ORDER BY created_at DESC
		LIMIT $` + strconv.Itoa(limitPos) + ` OFFSET $` + strconv.Itoa(limitPos+1)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	var tasks []*model.Task
	for rows.Next() {
		task, scanErr := scanTaskFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan task: %w", scanErr)
		}
		tasks = append(tasks, task)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate tasks: %w", rowsErr)
	}
	return tasks, nil
}

func buildTaskListFilter(opts *model.TaskListOptions) (string, []any) {
	var clauses []string
	var args []any

	addClause := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if opts.Status != nil {
		addClause("status", *opts.Status)
	}
	if opts.ShopID != nil {
		addClause("shop_id", *opts.ShopID)
	}
	if opts.Action != nil {
		addClause("action", *opts.Action)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
