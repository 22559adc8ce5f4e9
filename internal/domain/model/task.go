// Package model defines the core data types and structures used throughout the execd task system.
package model

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// ActionKind identifies one of the supported storefront automation actions.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ActionKind string

// TaskStatus represents the current status of an execution task.
type TaskStatus string

// TaskSource records how a task entered the queue.
type TaskSource string

const (
	// ActionAdjustBudget changes a campaign's budget.
	ActionAdjustBudget ActionKind = "adjust_budget"
	// ActionToggleAd enables or pauses a campaign.
	ActionToggleAd ActionKind = "toggle_ad"
	// ActionUpdateTitle edits a product listing title.
	ActionUpdateTitle ActionKind = "update_title"
	// ActionUpdatePrice edits a product listing price.
	ActionUpdatePrice ActionKind = "update_price"

	// TaskStatusQueued indicates a task is waiting to be claimed.
	TaskStatusQueued TaskStatus = "queued"
	// TaskStatusRunning indicates a task is currently being executed.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusSuccess indicates a task finished successfully.
	TaskStatusSuccess TaskStatus = "success"
	// TaskStatusFailed indicates a task failed to complete.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates an operator cancelled the task before it ran.
	TaskStatusCancelled TaskStatus = "cancelled"

	// TaskSourceManual marks tasks created by an operator.
	TaskSourceManual TaskSource = "manual"
	// TaskSourceAutomated marks tasks created by an upstream decision system.
	TaskSourceAutomated TaskSource = "automated"
	// TaskSourceRetry marks tasks created by retrying a failed task.
	TaskSourceRetry TaskSource = "retry"
)

// ErrNoTasksAvailable is returned when no queued tasks are eligible for claiming.
var ErrNoTasksAvailable = errors.New("no tasks available")

// UnmarshalText implements encoding.TextUnmarshaler for ActionKind to allow env/JSON parsing.
func (a *ActionKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	kind := ActionKind(v)
	if kind.Valid() {
		*a = kind
		return nil
	}
	return fmt.Errorf("invalid ActionKind: %q", v)
}

// Valid returns true if the ActionKind is one of the supported actions.
func (a ActionKind) Valid() bool {
	return a == ActionAdjustBudget || a == ActionToggleAd || a == ActionUpdateTitle ||
		a == ActionUpdatePrice
}

// Label returns the operator-facing display label for the action.
func (a ActionKind) Label() string {
	switch a {
	case ActionAdjustBudget:
		return "Adjust Budget"
	case ActionToggleAd:
		return "Toggle Ad"
	case ActionUpdateTitle:
		return "Update Title"
	case ActionUpdatePrice:
		return "Update Price"
	default:
		return string(a)
	}
}

// Valid returns true if the TaskStatus is valid.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusQueued || s == TaskStatusRunning || s == TaskStatusSuccess ||
		s == TaskStatusFailed || s == TaskStatusCancelled
}

// Terminal returns true for statuses no further transition may leave.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Valid returns true if the TaskSource is valid.
func (s TaskSource) Valid() bool {
	return s == TaskSourceManual || s == TaskSourceAutomated || s == TaskSourceRetry
}

// Task represents one unit of requested automation work with its lifecycle and audit fields.
type Task struct {
	ID             string          `json:"id"                        db:"id"`
	TaskNo         string          `json:"task_no"                   db:"task_no"`
	ShopID         string          `json:"shop_id"                   db:"shop_id"`
	Action         ActionKind      `json:"action"                    db:"action"`
	ActionLabel    string          `json:"action_label"              db:"action_label"`
	Payload        json.RawMessage `json:"payload"                   db:"payload"`
	Priority       int             `json:"priority"                  db:"priority"`
	Source         TaskSource      `json:"source"                    db:"source"`
	SourceRef      *string         `json:"source_ref,omitempty"      db:"source_ref"`
	Status         TaskStatus      `json:"status"                    db:"status"`
	Result         json.RawMessage `json:"result,omitempty"          db:"result"`
	ErrorMessage   *string         `json:"error_message,omitempty"   db:"error_message"`
	EvidenceBefore *string         `json:"evidence_before,omitempty" db:"evidence_before"`
	EvidenceAfter  *string         `json:"evidence_after,omitempty"  db:"evidence_after"`
	EvidenceError  *string         `json:"evidence_error,omitempty"  db:"evidence_error"`
	CreatedAt      time.Time       `json:"created_at"                db:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"      db:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"    db:"completed_at"`
	DurationMS     *int64          `json:"duration_ms,omitempty"     db:"duration_ms"`
	CreatedBy      *string         `json:"created_by,omitempty"      db:"created_by"`
}

// CreateTaskRequest represents a request to enqueue a new task.
type CreateTaskRequest struct {
	ShopID    string          `json:"shop_id"`
	Action    ActionKind      `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority,omitempty"`
	Source    TaskSource      `json:"source,omitempty"`
	SourceRef *string         `json:"source_ref,omitempty"`
	CreatedBy *string         `json:"created_by,omitempty"`
}

// Validate validates the CreateTaskRequest fields.
func (r *CreateTaskRequest) Validate() error {
	if strings.TrimSpace(r.ShopID) == "" {
		return errors.New("shop_id is required")
	}
	if !r.Action.Valid() {
		return fmt.Errorf("invalid action: %q", r.Action)
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if r.Priority < 0 || r.Priority > 100 {
		return errors.New("priority must be between 0 and 100")
	}
	if r.Source != "" && !r.Source.Valid() {
		return fmt.Errorf("invalid source: %q", r.Source)
	}
	if r.Source == TaskSourceRetry && (r.SourceRef == nil || *r.SourceRef == "") {
		return errors.New("source_ref is required for retry tasks")
	}
	return nil
}

// TaskStats represents counts of tasks in each status.
type TaskStats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// NewTaskNo generates a correlation number of the form TASK-<unix ms>-<4 digits>.
// The suffix comes from crypto/rand so concurrent producers cannot collide
// within the same millisecond in practice.
func NewTaskNo(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	suffix := int64(0)
	if err == nil {
		suffix = n.Int64()
	}
	return fmt.Sprintf("TASK-%d-%04d", now.UnixMilli(), suffix)
}

// CanTransition reports whether moving from s to next follows the task state machine.
// Retry is not a transition: it creates a new task and leaves the original untouched.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusQueued:
		return next == TaskStatusRunning || next == TaskStatusCancelled
	case TaskStatusRunning:
		return next == TaskStatusSuccess || next == TaskStatusFailed
	default:
		return false
	}
}
