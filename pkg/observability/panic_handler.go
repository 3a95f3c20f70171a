package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with its stack trace.
// It must be deferred directly:
//
//	defer observability.RecoverPanic(logger, "scheduled billing run")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
	}
}

// RecoverPanicWithCallback recovers from a panic, logs it and then runs
// callback. The callback only runs when a panic occurred.
func RecoverPanicWithCallback(logger *Logger, context string, callback func()) {
	if r := recover(); r != nil {
		logPanic(logger, context, r)
		if callback != nil {
			callback()
		}
	}
}

func logPanic(logger *Logger, context string, r interface{}) {
	logger.WithField("panic", r).
		WithField("stack", string(debug.Stack())).
		WithField("context", context).
		Error("PANIC recovered")
}

// PanicError logs a recovered panic value with its stack trace and converts
// it into an error. It returns nil if r is nil.
//
//	defer func() {
//	    if perr := observability.PanicError(logger, "billing customer", recover()); perr != nil {
//	        err = perr
//	    }
//	}()
func PanicError(logger *Logger, context string, r interface{}) error {
	if r == nil {
		return nil
	}
	logPanic(logger, context, r)
	return fmt.Errorf("panic: %v", r)
}
