package actions

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gmvmax/execd/internal/domain/model"
)

var errEmptyPayload = errors.New("payload is empty")

// Registry is the sealed action-kind dispatch table. It is built once at
// startup and never mutated afterwards; adding an action kind means adding a
// handler here, not patching a global at runtime.
type Registry struct {
	handlers map[model.ActionKind]Handler
}

// NewRegistry builds the registry with every supported handler.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[model.ActionKind]Handler)}
	for _, h := range []Handler{
		&adjustBudgetHandler{},
		&toggleAdHandler{},
		&updateTitleHandler{},
		&updatePriceHandler{},
	} {
		r.handlers[h.Kind()] = h
	}
	return r
}

// Lookup resolves the handler for an action kind.
func (r *Registry) Lookup(kind model.ActionKind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", kind)
	}
	return h, nil
}

// ValidatePayload checks that a payload is acceptable for the given action
// kind, without executing anything.
func (r *Registry) ValidatePayload(kind model.ActionKind, raw []byte) error {
	h, err := r.Lookup(kind)
	if err != nil {
		return err
	}
	return h.ValidatePayload(raw)
}

// Kinds lists the registered action kinds in stable order.
func (r *Registry) Kinds() []model.ActionKind {
	kinds := make([]model.ActionKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
