package model

import "encoding/json"

// ActionResult is the transient outcome every action handler returns.
// Expected business failures are reported with OK=false rather than an error;
// only infrastructure faults propagate as Go errors.
type ActionResult struct {
	OK    bool           `json:"ok"`
	Data  map[string]any `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
}

// Failure builds a failed ActionResult with the given message.
func Failure(msg string) ActionResult {
	return ActionResult{OK: false, Error: msg}
}

// Success builds an ActionResult carrying audit data (old/new values etc.).
func Success(data map[string]any) ActionResult {
	return ActionResult{OK: true, Data: data}
}

// MarshalResult serializes the result for storage on the task row.
// Marshal failure cannot happen for the map types handlers produce, but a
// degenerate value still yields a usable record.
func (r ActionResult) MarshalResult() json.RawMessage {
	b, err := json.Marshal(r)
	if err != nil {
		return json.RawMessage(`{"ok":false,"error":"unencodable result"}`)
	}
	return b
}
