// Package assessment talks to the language model that scores placement tests
// and gives feedback on lesson answers. Callers must treat every method as
// fallible and degrade gracefully.
package assessment

import (
	"context"

	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
)

// Oracle is the assessment capability the engine depends on.
type Oracle interface {
	// ClassifyPlacement scores a placement answer and returns Beginner,
	// Intermediate or Advanced.
	ClassifyPlacement(ctx context.Context, question, answer string) (entities.Level, error)

	// AssessResponse produces free-text feedback on a lesson answer.
	// benchmark and history are optional conditioning and may be empty.
	AssessResponse(ctx context.Context, question, answer, benchmark, history string) (string, error)
}
