// Package evidence persists screenshots captured around task execution.
// Capture never fails the caller: evidence is supporting material, and a
// missing screenshot must not change a task's outcome.
package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gmvmax/execd/internal/data"
)

// Stage identifies when in a task's life a screenshot was taken.
type Stage string

const (
	StageBefore Stage = "before"
	StageAfter  Stage = "after"
	StageError  Stage = "error"
)

// Screenshotter is the slice of a browser session the recorder needs.
type Screenshotter interface {
	Screenshot() ([]byte, error)
}

// RecorderOptions groups dependencies for the evidence recorder.
type RecorderOptions struct {
	Dir          string             // Required: directory screenshots are written to
	Logger       *slog.Logger       // Optional: structured logger
	TimeProvider data.TimeProvider  // Optional: clock for filename timestamps
}

// Recorder writes screenshots to a flat directory with self-describing names.
type Recorder struct {
	dir          string
	logger       *slog.Logger
	timeProvider data.TimeProvider
}

// NewRecorder creates the directory if needed and returns a Recorder.
func NewRecorder(opts RecorderOptions) (*Recorder, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("evidence directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeProvider := opts.TimeProvider
	if timeProvider == nil {
		timeProvider = &data.RealTimeProvider{}
	}

	return &Recorder{
		dir:          opts.Dir,
		logger:       logger.With("component", "evidence"),
		timeProvider: timeProvider,
	}, nil
}

// Capture takes a full-page screenshot and writes it to disk. It returns the
// stored filename, or "" when anything goes wrong. Failures are logged at
// warning level and otherwise swallowed.
func (r *Recorder) Capture(ctx context.Context, src Screenshotter, taskNo string, stage Stage) string {
	if src == nil {
		return ""
	}

	png, err := src.Screenshot()
	if err != nil {
		r.logger.WarnContext(ctx, "screenshot capture failed",
			"task_no", taskNo, "stage", string(stage), "error", err)
		return ""
	}

	name := fmt.Sprintf("%s_%s_%d.png", taskNo, stage, r.timeProvider.Now().UnixMilli())
	if err := os.WriteFile(filepath.Join(r.dir, name), png, 0o644); err != nil {
		r.logger.WarnContext(ctx, "screenshot write failed",
			"task_no", taskNo, "stage", string(stage), "error", err)
		return ""
	}

	return name
}

// Path resolves a stored filename back to its absolute location.
func (r *Recorder) Path(name string) string {
	return filepath.Join(r.dir, name)
}
