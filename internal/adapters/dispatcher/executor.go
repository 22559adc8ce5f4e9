package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gmvmax/execd/internal/actions"
	"github.com/gmvmax/execd/internal/core"
	"github.com/gmvmax/execd/internal/domain/model"
	apperrors "github.com/gmvmax/execd/internal/errors"
	"github.com/gmvmax/execd/internal/evidence"
	obserrors "github.com/gmvmax/execd/internal/observability/errors"
	"github.com/gmvmax/execd/internal/observability/metrics"
	"github.com/gmvmax/execd/internal/observability/notify"
	"github.com/gmvmax/execd/internal/session"
)

// execState accumulates per-task resources so the failure path can capture
// evidence and classify connection faults no matter where execution stopped.
type execState struct {
	shop *model.Shop
	sess *session.Session
}

// executeTask drives one claimed task to a terminal status. It never returns
// an error: every outcome, including a handler panic, ends in Complete or
// Fail on the task row.
func (r *Runner) executeTask(ctx context.Context, task *model.Task) {
	start := time.Now()
	logger := r.logger.With("task_id", task.ID, "task_no", task.TaskNo, "action", task.Action)
	logger.InfoContext(ctx, "task claimed", "shop_id", task.ShopID, "priority", task.Priority)

	st := &execState{}
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "action handler panicked", "panic", rec)
			err := apperrors.AutomationStep(fmt.Sprintf("action handler panicked: %v", rec), nil)
			r.failTask(ctx, task, st, err, time.Since(start), logger)
		}
	}()

	data, err := r.run(ctx, task, st, logger)
	if err != nil {
		r.failTask(ctx, task, st, err, time.Since(start), logger)
		return
	}
	r.completeTask(ctx, task, st, data, time.Since(start), logger)
}

// run walks the task through its stages and returns the handler's result
// data. Errors come back taxonomy-classified so the caller can store and
// report the failure kind.
func (r *Runner) run(
	ctx context.Context,
	task *model.Task,
	st *execState,
	logger *slog.Logger,
) (map[string]any, error) {
	shop, err := r.shops.GetByID(ctx, task.ShopID)
	if err != nil {
		return nil, apperrors.Infrastructure("load shop", err)
	}
	st.shop = shop

	// Only active shops execute. Inactive means operator-disabled; error
	// means the last connection attempt failed and an operator needs to
	// re-test before tasks touch the browser farm again.
	if shop.ConnectionStatus != model.ConnectionStatusActive {
		return nil, apperrors.Infrastructure(
			fmt.Sprintf("shop %s is %s", shop.DisplayName, shop.ConnectionStatus), nil)
	}

	handler, err := r.registry.Lookup(task.Action)
	if err != nil {
		return nil, apperrors.AutomationStep("resolve action handler", err)
	}
	bundle, err := r.catalog.Bundle(shop.Site, task.Action)
	if err != nil {
		return nil, apperrors.AutomationStep("resolve locator bundle", err)
	}

	sess, err := r.pool.Acquire(ctx, shop)
	if err != nil {
		return nil, asInfrastructure("acquire browser session", err)
	}
	st.sess = sess

	beforeRef := r.captureEvidence(ctx, task, st, evidence.StageBefore, logger)
	if beforeRef != nil {
		if err := r.tasks.SetEvidenceBefore(ctx, task.ID, *beforeRef); err != nil {
			logger.WarnContext(ctx, "record before evidence", "error", err)
		}
	}
	r.appendLog(ctx, task, "start", model.LogLevelInfo,
		fmt.Sprintf("executing %s against %s", task.Action, shop.DisplayName), beforeRef, logger)

	data, err := handler.Execute(ctx, &actions.Context{
		TaskNo:   task.TaskNo,
		Site:     shop.Site,
		Payload:  task.Payload,
		Locators: bundle,
		Driver:   session.NewDriver(sess),
		Log: func(ctx context.Context, level model.LogLevel, stage, message string) {
			r.appendLog(ctx, task, stage, level, message, nil, logger)
		},
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Runner) completeTask(
	ctx context.Context,
	task *model.Task,
	st *execState,
	data map[string]any,
	dur time.Duration,
	logger *slog.Logger,
) {
	afterRef := r.captureEvidence(ctx, task, st, evidence.StageAfter, logger)
	r.appendLog(ctx, task, "done", model.LogLevelSuccess, "action completed", afterRef, logger)

	completed, err := r.tasks.Complete(ctx, core.CompleteTaskParams{
		ID:            task.ID,
		Result:        model.Success(data).MarshalResult(),
		EvidenceAfter: afterRef,
		Duration:      dur,
	})
	if err != nil {
		logger.ErrorContext(ctx, "complete task", "error", err)
		r.emit(task, "completed", metrics.ResultError, "", dur, err)
		return
	}

	result := metrics.ResultNoop
	if completed {
		result = metrics.ResultSuccess
		logger.InfoContext(ctx, "task completed", "duration_ms", dur.Milliseconds())
	} else {
		// The row left running while we worked, which means an operator
		// cancelled it. The browser effects stand; the record says cancelled.
		logger.WarnContext(ctx, "task no longer running at completion", "duration_ms", dur.Milliseconds())
	}
	r.emit(task, "completed", result, "", dur, nil)
}

func (r *Runner) failTask(
	ctx context.Context,
	task *model.Task,
	st *execState,
	err error,
	dur time.Duration,
	logger *slog.Logger,
) {
	kind := apperrors.KindOf(err)

	errorRef := r.captureEvidence(ctx, task, st, evidence.StageError, logger)
	r.appendLog(ctx, task, "failure", model.LogLevelError, err.Error(), errorRef, logger)

	// A session that produced an infrastructure fault is not worth reusing.
	if kind == apperrors.FailureInfrastructure && st.shop != nil {
		r.pool.Invalidate(st.shop.ID)
		if serr := r.shops.SetConnectionStatus(ctx, core.SetConnectionStatusParams{
			ShopID: st.shop.ID,
			Status: model.ConnectionStatusError,
		}); serr != nil {
			logger.WarnContext(ctx, "mark shop connection error", "error", serr)
		}
	}

	message := fmt.Sprintf("%s: %s", kind, err.Error())
	failed, ferr := r.tasks.Fail(ctx, core.FailTaskParams{
		ID:            task.ID,
		ErrorMessage:  message,
		EvidenceError: errorRef,
		Duration:      dur,
	})
	if ferr != nil {
		logger.ErrorContext(ctx, "fail task", "error", ferr, "original_error", err)
	} else if !failed {
		logger.WarnContext(ctx, "task no longer running at failure", "original_error", err)
	}

	logger.ErrorContext(ctx, "task failed",
		"failure_kind", kind, "duration_ms", dur.Milliseconds(), "error", err)
	r.emit(task, "failed", metrics.ResultError, string(kind), dur, err)
	r.notifyFailure(ctx, task, st, err, kind)
}

// captureEvidence screenshots the live session for a stage. Returns nil when
// there is no session or the capture failed; evidence is best-effort.
func (r *Runner) captureEvidence(
	ctx context.Context,
	task *model.Task,
	st *execState,
	stage evidence.Stage,
	logger *slog.Logger,
) *string {
	if st.sess == nil || !st.sess.Alive() {
		return nil
	}
	ref := r.evidence.Capture(ctx, st.sess, task.TaskNo, stage)
	if ref == "" {
		logger.WarnContext(ctx, "evidence capture failed", "stage", stage)
		return nil
	}
	return &ref
}

// appendLog adds a step entry to the task's audit trail. Trail problems are
// logged and swallowed; they never fail the task.
func (r *Runner) appendLog(
	ctx context.Context,
	task *model.Task,
	stage string,
	level model.LogLevel,
	message string,
	screenshotRef *string,
	logger *slog.Logger,
) {
	_, err := r.logs.Append(ctx, task.ID, &model.AppendLogRequest{
		StageLabel:    stage,
		Level:         level,
		Message:       message,
		ScreenshotRef: screenshotRef,
	})
	if err != nil {
		logger.WarnContext(ctx, "append task log", "stage", stage, "error", err)
	}
}

func (r *Runner) emit(
	task *model.Task,
	transition, result, failureKind string,
	dur time.Duration,
	err error,
) {
	metrics.EmitTaskLifecycle(r.metrics, metrics.TaskMetric{
		Action:      string(task.Action),
		Transition:  transition,
		Result:      result,
		FailureKind: failureKind,
		Duration:    dur,
		Err:         err,
	})
}

func (r *Runner) notifyFailure(
	ctx context.Context,
	task *model.Task,
	st *execState,
	err error,
	kind apperrors.FailureKind,
) {
	if r.notifier == nil || !r.notifier.Enabled() {
		return
	}
	payload := notify.TaskFailurePayload{
		TaskID:      task.ID,
		TaskNo:      task.TaskNo,
		Action:      string(task.Action),
		ShopID:      task.ShopID,
		Error:       err.Error(),
		FailureKind: string(kind),
		ErrorClass:  obserrors.Classify(err),
		OccurredAt:  time.Now().UTC(),
		Metadata: map[string]string{
			"worker_id": r.workerID,
		},
	}
	if st.shop != nil {
		payload.ShopName = st.shop.DisplayName
		payload.Site = st.shop.Site
	}
	r.notifier.NotifyTaskFailure(ctx, payload)
}

// asInfrastructure wraps err as an infrastructure fault unless it already
// carries a taxonomy classification.
func asInfrastructure(message string, err error) error {
	var execErr *apperrors.ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	return apperrors.Infrastructure(message, err)
}
