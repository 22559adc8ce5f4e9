package errors

import (
	"errors"
	"fmt"
)

// FailureKind labels the terminal failure categories an operator sees on a task.
// The distinction matters operationally: TargetNotFound and AutomationStepFailed
// point at the storefront UI, InfrastructureUnavailable points at tenant
// connectivity or the browser farm.
type FailureKind string

const (
	// FailureTargetNotFound means a handler could not unambiguously locate the
	// thing it was asked to act on (no match, or multiple candidates).
	FailureTargetNotFound FailureKind = "target_not_found"
	// FailureAutomationStep means an expected UI element did not appear or
	// respond in time.
	FailureAutomationStep FailureKind = "automation_step_failed"
	// FailureInfrastructure means provisioning or the browser transport failed.
	FailureInfrastructure FailureKind = "infrastructure_unavailable"
)

// ExecutionError carries a failure kind alongside the underlying cause so the
// dispatcher can record which category a terminal failure belongs to.
type ExecutionError struct {
	Kind    FailureKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// TargetNotFound builds an ExecutionError for an unresolvable automation target.
func TargetNotFound(message string) *ExecutionError {
	return &ExecutionError{Kind: FailureTargetNotFound, Message: message}
}

// AutomationStep builds an ExecutionError for a UI step that did not complete.
func AutomationStep(message string, cause error) *ExecutionError {
	return &ExecutionError{Kind: FailureAutomationStep, Message: message, Cause: cause}
}

// Infrastructure builds an ExecutionError for provisioning/transport faults.
func Infrastructure(message string, cause error) *ExecutionError {
	return &ExecutionError{Kind: FailureInfrastructure, Message: message, Cause: cause}
}

// KindOf extracts the FailureKind from an error chain. Unclassified faults
// default to FailureAutomationStep since they surface mid-execution.
func KindOf(err error) FailureKind {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	return FailureAutomationStep
}

// IsInfrastructure reports whether the error chain carries an infrastructure failure.
func IsInfrastructure(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr) && execErr.Kind == FailureInfrastructure
}
