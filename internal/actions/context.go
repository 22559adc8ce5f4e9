// Package actions implements the storefront automation handlers, one per
// action kind, over a small driver abstraction and an injected locator
// catalog.
package actions

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/gmvmax/execd/internal/domain/model"
	"github.com/gmvmax/execd/internal/locator"
)

// LogFunc appends one step-level log entry to the executing task's trail.
// Implementations must not fail the caller; logging problems are their own.
type LogFunc func(ctx context.Context, level model.LogLevel, stage, message string)

// Context carries everything one handler invocation needs.
type Context struct {
	TaskNo   string
	Site     string
	Payload  json.RawMessage
	Locators *locator.ActionLocators
	Driver   Driver
	Log      LogFunc
}

// log is a nil-safe shortcut around the injected LogFunc.
func (c *Context) log(ctx context.Context, level model.LogLevel, stage, message string) {
	if c.Log != nil {
		c.Log(ctx, level, stage, message)
	}
}

// Handler executes one action kind against a live storefront session.
// Execute returns the result data on success; expected failure modes come
// back as taxonomy errors, never panics.
type Handler interface {
	Kind() model.ActionKind
	// ValidatePayload checks payload shape without touching a browser, so
	// enqueue can reject bad input before a task exists.
	ValidatePayload(raw []byte) error
	Execute(ctx context.Context, run *Context) (map[string]any, error)
}

// validate is the shared payload validator. Handlers only use declarative
// struct tags, so one instance is safe to share.
var validate = validator.New(validator.WithRequiredStructEnabled())

// decodePayload unmarshals and tag-validates a payload into dst.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errEmptyPayload
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
