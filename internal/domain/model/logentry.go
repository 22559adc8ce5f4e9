package model

import (
	"errors"
	"strings"
	"time"
)

// LogLevel classifies an execution log entry.
type LogLevel string

const (
	// LogLevelInfo marks routine progress entries.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarning marks recoverable anomalies (e.g. sole-candidate fallback).
	LogLevelWarning LogLevel = "warning"
	// LogLevelError marks step failures.
	LogLevelError LogLevel = "error"
	// LogLevelSuccess marks a completed step or task.
	LogLevelSuccess LogLevel = "success"
)

// Valid returns true if the LogLevel is valid.
func (l LogLevel) Valid() bool {
	return l == LogLevelInfo || l == LogLevelWarning || l == LogLevelError || l == LogLevelSuccess
}

// LogEntry is one step of a task's append-only audit trail.
// Entries are strictly ordered by Step within their task.
type LogEntry struct {
	ID            int64     `json:"id"                       db:"id"`
	TaskID        string    `json:"task_id"                  db:"task_id"`
	Step          int       `json:"step"                     db:"step"`
	StageLabel    string    `json:"stage_label"              db:"stage_label"`
	Level         LogLevel  `json:"level"                    db:"level"`
	Message       string    `json:"message"                  db:"message"`
	ScreenshotRef *string   `json:"screenshot_ref,omitempty" db:"screenshot_ref"`
	CreatedAt     time.Time `json:"created_at"               db:"created_at"`
}

// AppendLogRequest carries the caller-supplied fields of a new log entry.
// Step numbering is assigned by the store.
type AppendLogRequest struct {
	StageLabel    string   `json:"stage_label"`
	Level         LogLevel `json:"level"`
	Message       string   `json:"message"`
	ScreenshotRef *string  `json:"screenshot_ref,omitempty"`
}

// Validate validates the AppendLogRequest fields.
func (r *AppendLogRequest) Validate() error {
	if strings.TrimSpace(r.StageLabel) == "" {
		return errors.New("stage_label is required")
	}
	if !r.Level.Valid() {
		return errors.New("invalid log level")
	}
	return nil
}
