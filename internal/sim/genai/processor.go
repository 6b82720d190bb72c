// Package genai defines the generation-step boundary of the engine: the
// abstract prompt-processor capability, the bounded retry wrapper around it,
// the model-key router, and the typed, schema-constrained step contracts.
//
// The engine never trusts raw generator output; every step's response is
// parsed strictly and rejected on any mismatch.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Processor is the abstract prompt-processing capability. Implementations
// turn a system instruction plus a user prompt into either a value conforming
// to a target shape or free text.
type Processor interface {
	// GenerateJSON returns raw JSON expected to conform to the provided
	// output shape. Conformance is re-checked by the caller; a processor
	// may use the shape to constrain decoding but must not be trusted.
	GenerateJSON(ctx context.Context, system, prompt string, shape map[string]any) (json.RawMessage, error)
	// GenerateText returns a free-text response.
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// StepError reports a generation step that failed after its retry budget.
// It carries the step name and every attempt's underlying error.
type StepError struct {
	Step     string
	Attempts []error
}

func (e *StepError) Error() string {
	messages := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		messages = append(messages, attempt.Error())
	}
	return fmt.Sprintf("generation step %s failed after %d attempts: %s",
		e.Step, len(e.Attempts), strings.Join(messages, "; "))
}

// Unwrap exposes the attempt errors for errors.Is/As matching.
func (e *StepError) Unwrap() []error {
	return e.Attempts
}

// maxStepAttempts bounds retries per generation step: one retry, then fail.
const maxStepAttempts = 2

// retryInterval spaces the single retry; generation failures are usually
// transient upstream errors, not load problems.
const retryInterval = 250 * time.Millisecond

// retryStep runs op with the step retry policy and converts exhaustion into
// a StepError.
func retryStep[T any](ctx context.Context, step string, op func() (T, error)) (T, error) {
	var attempts []error

	result, err := backoff.Retry(ctx, func() (T, error) {
		value, opErr := op()
		if opErr != nil {
			attempts = append(attempts, opErr)
		}
		return value, opErr
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(retryInterval)),
		backoff.WithMaxTries(maxStepAttempts),
	)
	if err != nil {
		var zero T
		return zero, &StepError{Step: step, Attempts: attempts}
	}
	return result, nil
}
