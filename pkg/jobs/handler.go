package jobs

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Handler executes jobs of a single type.
	Handler interface {
		Type() Type
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	// HandlerFunc is the typed function a handler wraps.
	HandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewHandler wraps a typed function as a Handler for the given job type.
// The payload is unmarshalled into T before the function runs; a payload
// that does not decode is a handler failure, not a panic.
func NewHandler[T any](jobType Type, handler HandlerFunc[T]) Handler {
	return &typedHandler[T]{
		jobType: jobType,
		handler: handler,
	}
}

type typedHandler[T any] struct {
	jobType Type
	handler HandlerFunc[T]
}

func (h *typedHandler[T]) Type() Type {
	return h.jobType
}

func (h *typedHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("failed to unmarshal payload for job type %q: %w", h.jobType, err)
	}
	return h.handler(ctx, t)
}
