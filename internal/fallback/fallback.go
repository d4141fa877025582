// Package fallback перебирает равнозначные стратегии по порядку до первой успешной.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoStrategies возвращается, если не передано ни одной стратегии.
var ErrNoStrategies = errors.New("no strategies configured")

// Strategy описывает один способ получить результат.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// AttemptError хранит ошибку одной неудачной стратегии.
type AttemptError struct {
	Name string
	Err  error
}

// ExhaustedError возвращается, когда не сработала ни одна стратегия.
type ExhaustedError struct {
	Attempts []AttemptError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Name, a.Err))
	}
	return "all strategies failed: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// First выполняет стратегии по порядку и возвращает результат первой успешной вместе с её именем.
func First[T any](ctx context.Context, strategies ...Strategy[T]) (T, string, error) {
	var zero T
	if len(strategies) == 0 {
		return zero, "", ErrNoStrategies
	}

	exhausted := &ExhaustedError{}
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			exhausted.Attempts = append(exhausted.Attempts, AttemptError{Name: s.Name, Err: err})
			return zero, "", exhausted
		}

		res, err := s.Run(ctx)
		if err == nil {
			return res, s.Name, nil
		}
		exhausted.Attempts = append(exhausted.Attempts, AttemptError{Name: s.Name, Err: err})
	}

	return zero, "", exhausted
}
