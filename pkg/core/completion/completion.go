// Package completion defines the structured completion contract shared by
// every trial role and the research collaborator, plus the repair cascade
// that turns whatever the model returned into a typed value.
package completion

import (
	"context"
)

// Shape is the response format requested from the completion service.
type Shape string

const (
	ShapeJSON Shape = "json"
	ShapeText Shape = "text"
)

// Service is a text completion endpoint bound to one role.
// Implementations may be slow, may truncate, and may answer with prose
// even when ShapeJSON was requested.
type Service interface {
	Generate(ctx context.Context, prompt string, shape Shape) (string, error)
}

// ServiceFunc adapts a plain function to Service.
type ServiceFunc func(ctx context.Context, prompt string, shape Shape) (string, error)

func (f ServiceFunc) Generate(ctx context.Context, prompt string, shape Shape) (string, error) {
	return f(ctx, prompt, shape)
}
