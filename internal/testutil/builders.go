// Package testutil provides testing utilities and helpers for the execd task system.
package testutil

import (
	"encoding/json"

	"github.com/gmvmax/execd/internal/domain/model"
)

// TaskRequestBuilder provides a fluent interface for building CreateTaskRequest objects for testing.
type TaskRequestBuilder struct {
	req *model.CreateTaskRequest
}

// NewTaskRequest creates a new TaskRequestBuilder with sensible defaults.
// The shop ID must be supplied by the caller since tasks reference real shops.
func NewTaskRequest(shopID string) *TaskRequestBuilder {
	return &TaskRequestBuilder{
		req: &model.CreateTaskRequest{
			ShopID:   shopID,
			Action:   model.ActionUpdatePrice,
			Priority: 5,
			Payload:  json.RawMessage(`{"product_id": "1001", "new_price": 19990}`),
		},
	}
}

// WithAction sets the action kind.
func (b *TaskRequestBuilder) WithAction(action model.ActionKind) *TaskRequestBuilder {
	b.req.Action = action
	return b
}

// WithPriority sets the task priority.
func (b *TaskRequestBuilder) WithPriority(priority int) *TaskRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithPayload sets the task payload.
func (b *TaskRequestBuilder) WithPayload(payload json.RawMessage) *TaskRequestBuilder {
	b.req.Payload = payload
	return b
}

// WithPayloadString sets the task payload from a string.
func (b *TaskRequestBuilder) WithPayloadString(payload string) *TaskRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithSource sets the task source.
func (b *TaskRequestBuilder) WithSource(source model.TaskSource) *TaskRequestBuilder {
	b.req.Source = source
	return b
}

// WithSourceRef sets the source reference (the retried task's number).
func (b *TaskRequestBuilder) WithSourceRef(ref string) *TaskRequestBuilder {
	b.req.SourceRef = &ref
	return b
}

// WithCreatedBy sets the operator who enqueued the task.
func (b *TaskRequestBuilder) WithCreatedBy(operator string) *TaskRequestBuilder {
	b.req.CreatedBy = &operator
	return b
}

// Build returns the constructed CreateTaskRequest.
func (b *TaskRequestBuilder) Build() *model.CreateTaskRequest {
	return b.req
}

// Common test task request presets

// AdjustBudgetTaskRequest creates an adjust_budget task request with default values.
func AdjustBudgetTaskRequest(shopID string) *model.CreateTaskRequest {
	return NewTaskRequest(shopID).
		WithAction(model.ActionAdjustBudget).
		WithPayloadString(`{"campaign_name": "Summer Sale", "new_budget": 50000}`).
		Build()
}

// ToggleAdTaskRequest creates a toggle_ad task request with default values.
func ToggleAdTaskRequest(shopID string) *model.CreateTaskRequest {
	return NewTaskRequest(shopID).
		WithAction(model.ActionToggleAd).
		WithPayloadString(`{"campaign_name": "Summer Sale", "enable": false}`).
		Build()
}

// UpdateTitleTaskRequest creates an update_title task request with default values.
func UpdateTitleTaskRequest(shopID string) *model.CreateTaskRequest {
	return NewTaskRequest(shopID).
		WithAction(model.ActionUpdateTitle).
		WithPayloadString(`{"product_id": "1001", "new_title": "Fresh Title"}`).
		Build()
}

// HighPriorityTaskRequest creates a high priority task request.
func HighPriorityTaskRequest(shopID string) *model.CreateTaskRequest {
	return NewTaskRequest(shopID).
		WithPriority(100).
		Build()
}

// LowPriorityTaskRequest creates a low priority task request.
func LowPriorityTaskRequest(shopID string) *model.CreateTaskRequest {
	return NewTaskRequest(shopID).
		WithPriority(1).
		Build()
}

// ShopRequest creates a shop request with default values. The external
// browser ID must be unique per shop, so the caller supplies it.
func ShopRequest(externalBrowserID string) *model.CreateShopRequest {
	return &model.CreateShopRequest{
		DisplayName:       "Test Shop " + externalBrowserID,
		Platform:          "shopee",
		Site:              "id",
		ExternalBrowserID: externalBrowserID,
	}
}
