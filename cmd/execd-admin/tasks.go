package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gmvmax/execd/internal/domain/model"
)

const defaultCommandTimeout = 30 * time.Second

func runQueueStats(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("queue-stats", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	inf, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	stats, err := inf.Tasks.Stats(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	fmt.Fprintf(w, "queued\t%d\n", stats.Queued)
	fmt.Fprintf(w, "running\t%d\n", stats.Running)
	fmt.Fprintf(w, "success\t%d\n", stats.Success)
	fmt.Fprintf(w, "failed\t%d\n", stats.Failed)
	fmt.Fprintf(w, "cancelled\t%d\n", stats.Cancelled)
	return w.Flush()
}

type listTasksOptions struct {
	Status string
	ShopID string
	Action string
	Limit  int
	Offset int
}

func parseListTasksFlags(args []string) (listTasksOptions, error) {
	fs := flag.NewFlagSet("list-tasks", flag.ContinueOnError)
	opts := listTasksOptions{}
	fs.StringVar(&opts.Status, "status", "", "filter by status (queued|running|success|failed|cancelled)")
	fs.StringVar(&opts.ShopID, "shop", "", "filter by shop ID")
	fs.StringVar(&opts.Action, "action", "", "filter by action kind")
	fs.IntVar(&opts.Limit, "limit", 50, "maximum rows to return")
	fs.IntVar(&opts.Offset, "offset", 0, "rows to skip")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

func (o listTasksOptions) toListOptions() (*model.TaskListOptions, error) {
	listOpts := &model.TaskListOptions{Limit: o.Limit, Offset: o.Offset}
	if o.Status != "" {
		status := model.TaskStatus(o.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("invalid status %q", o.Status)
		}
		listOpts.Status = &status
	}
	if o.ShopID != "" {
		shopID := o.ShopID
		listOpts.ShopID = &shopID
	}
	if o.Action != "" {
		action := model.ActionKind(o.Action)
		if !action.Valid() {
			return nil, fmt.Errorf("invalid action %q", o.Action)
		}
		listOpts.Action = &action
	}
	return listOpts, nil
}

func runListTasks(cmdCtx *commandContext, args []string) error {
	opts, err := parseListTasksFlags(args)
	if err != nil {
		return err
	}
	listOpts, err := opts.toListOptions()
	if err != nil {
		return err
	}

	inf, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	tasks, err := inf.Tasks.List(ctx, listOpts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK NO\tSHOP\tACTION\tPRIORITY\tSTATUS\tCREATED")
	for _, task := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			task.TaskNo, task.ShopID, task.Action, task.Priority,
			task.Status, task.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runShowTask(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("show-task", flag.ContinueOnError)
	id := fs.String("id", "", "task ID")
	taskNo := fs.String("task-no", "", "task correlation number (alternative to -id)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" && *taskNo == "" {
		return fmt.Errorf("one of -id or -task-no is required")
	}

	inf, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	var task *model.Task
	if *id != "" {
		task, err = inf.Tasks.Get(ctx, *id)
	} else {
		task, err = inf.Tasks.GetByTaskNo(ctx, *taskNo)
	}
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := writef(os.Stdout, "%s\n", encoded); err != nil {
		return err
	}

	entries, err := inf.Tasks.Logs(ctx, task.ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	if err := writef(os.Stdout, "\nExecution trail:\n"); err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTAGE\tLEVEL\tMESSAGE\tSCREENSHOT")
	for _, entry := range entries {
		ref := ""
		if entry.ScreenshotRef != nil {
			ref = *entry.ScreenshotRef
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			entry.Step, entry.StageLabel, entry.Level, entry.Message, ref)
	}
	return w.Flush()
}

type enqueueTaskOptions struct {
	ShopID   string
	Action   string
	Payload  string
	Priority int
}

func parseEnqueueTaskFlags(args []string) (enqueueTaskOptions, error) {
	fs := flag.NewFlagSet("enqueue-task", flag.ContinueOnError)
	opts := enqueueTaskOptions{}
	fs.StringVar(&opts.ShopID, "shop", "", "shop ID to run the action against (required)")
	fs.StringVar(&opts.Action, "action", "", "action kind (required)")
	fs.StringVar(&opts.Payload, "payload", "", "JSON payload for the action (required)")
	fs.IntVar(&opts.Priority, "priority", 0, "queue priority, higher first")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.ShopID == "" || opts.Action == "" || opts.Payload == "" {
		return opts, fmt.Errorf("-shop, -action, and -payload are required")
	}
	return opts, nil
}

func runEnqueueTask(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueTaskFlags(args)
	if err != nil {
		return err
	}

	inf, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	createdBy := "execd-admin"
	task, err := inf.Tasks.Enqueue(ctx, &model.CreateTaskRequest{
		ShopID:    opts.ShopID,
		Action:    model.ActionKind(opts.Action),
		Payload:   json.RawMessage(opts.Payload),
		Priority:  opts.Priority,
		Source:    model.TaskSourceManual,
		CreatedBy: &createdBy,
	})
	if err != nil {
		return err
	}

	return writef(os.Stdout, "enqueued %s (%s)\n", task.TaskNo, task.ID)
}

func runCancelTask(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("cancel-task", flag.ContinueOnError)
	id := fs.String("id", "", "task ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	inf, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	task, err := inf.Tasks.Cancel(ctx, *id)
	if err != nil {
		return err
	}
	return writef(os.Stdout, "cancelled %s\n", task.TaskNo)
}

func runRetryTask(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("retry-task", flag.ContinueOnError)
	id := fs.String("id", "", "failed task ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	inf, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	task, err := inf.Tasks.Retry(ctx, *id)
	if err != nil {
		return err
	}
	return writef(os.Stdout, "retry enqueued as %s (%s)\n", task.TaskNo, task.ID)
}
