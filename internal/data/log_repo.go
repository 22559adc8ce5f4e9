package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gmvmax/execd/internal/domain/model"
)

// LogRepo provides database operations for the per-task audit trail.
// Entries are append-only; step numbers are assigned inside the insert so the
// ordering invariant holds without a separate counter.
type LogRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewLogRepo creates a new LogRepo instance.
func NewLogRepo(db *sql.DB, cfg RepoConfig) *LogRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &LogRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

// Append stores a new log entry, assigning the next step number for the task.
func (r *LogRepo) Append(
	ctx context.Context,
	taskID string,
	req *model.AppendLogRequest,
) (*model.LogEntry, error) {
	if req == nil {
		return nil, errors.New("append log request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	entry := &model.LogEntry{}
	var screenshotRef sql.NullString

	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO execution_logs (task_id, step, stage_label, level, message, screenshot_ref, created_at)
		SELECT $1, COALESCE(MAX(step), 0) + 1, $2, $3, $4, $5, $6
		FROM execution_logs
		WHERE task_id = $1
		RETURNING id, task_id, step, stage_label, level, message, screenshot_ref, created_at
	`,
		taskID,
		req.StageLabel,
		req.Level,
		req.Message,
		req.ScreenshotRef,
		r.timeProvider.Now().UTC(),
	).Scan(
		&entry.ID,
		&entry.TaskID,
		&entry.Step,
		&entry.StageLabel,
		&entry.Level,
		&entry.Message,
		&screenshotRef,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("append log entry: %w", err)
	}
	entry.ScreenshotRef = cloneNullableString(screenshotRef)

	return entry, nil
}

// ListByTask returns all log entries for a task ordered by step.
func (r *LogRepo) ListByTask(ctx context.Context, taskID string) ([]*model.LogEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, task_id, step, stage_label, level, message, screenshot_ref, created_at
		FROM execution_logs
		WHERE task_id = $1
		ORDER BY step ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			_ = cerr
		}
	}()

	var entries []*model.LogEntry
	for rows.Next() {
		entry := &model.LogEntry{}
		var screenshotRef sql.NullString
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.Step,
			&entry.StageLabel,
			&entry.Level,
			&entry.Message,
			&screenshotRef,
			&entry.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("scan log entry: %w", scanErr)
		}
		entry.ScreenshotRef = cloneNullableString(screenshotRef)
		entries = append(entries, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate log entries: %w", rowsErr)
	}
	return entries, nil
}
