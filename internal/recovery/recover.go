// Package recovery turns panics raised inside a pipeline stage into ordinary
// errors so one bad request cannot take the server down.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError is returned when the wrapped function panicked.
type PanicError struct {
	Operation string
	Value     any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Operation, e.Value)
}

// RecoverToValue calls fn and converts a panic into a zero result and a
// *PanicError. The stack is logged, never returned.
//
//	rows, err := recovery.RecoverToValue(logger, "execute", func() (store.ResultSet, error) {
//	    return executor.Query(ctx, vetted)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("panic recovered",
					"operation", operation,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
			var zero T
			result = zero
			err = &PanicError{Operation: operation, Value: r}
		}
	}()

	return fn()
}
