package model

// TaskListOptions filters and pages task listings for the read surface.
type TaskListOptions struct {
	Status *TaskStatus `json:"status,omitempty"`
	ShopID *string     `json:"shop_id,omitempty"`
	Action *ActionKind `json:"action,omitempty"`
	Limit  int         `json:"limit,omitempty"`
	Offset int         `json:"offset,omitempty"`
}

// Normalize clamps paging values to safe bounds.
func (o *TaskListOptions) Normalize() {
	if o.Limit <= 0 || o.Limit > 200 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
}
