package question

import (
	"context"
	"fmt"
)

// Source produces an ordered question set for a free-text topic. A call is
// fallible and possibly slow; callers bound it with a context deadline.
type Source interface {
	Generate(ctx context.Context, topic string, count int, difficulty string) ([]Question, error)
}

// GenerationError reports a generator failure or a malformed payload.
// Callers may retry but must never accept the partial output.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("question generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("question generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ValidatePack enforces the generator contract: exactly count questions,
// each with a non-empty option list and an answer string-equal to one option.
func ValidatePack(questions []Question, count int) error {
	if len(questions) != count {
		return &GenerationError{Reason: fmt.Sprintf("expected %d questions, got %d", count, len(questions))}
	}
	for i, q := range questions {
		if q.Prompt == "" {
			return &GenerationError{Reason: fmt.Sprintf("question %d has empty prompt", i)}
		}
		if len(q.Options) == 0 {
			return &GenerationError{Reason: fmt.Sprintf("question %d has no options", i)}
		}
		found := false
		for _, opt := range q.Options {
			if opt == q.Answer {
				found = true
				break
			}
		}
		if !found {
			return &GenerationError{Reason: fmt.Sprintf("question %d answer not among options", i)}
		}
	}
	return nil
}
