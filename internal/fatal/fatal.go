// Package fatal terminates the process on unrecoverable runtime errors.
// Configuration and system-call failures are not returned to callers: by the
// time they surface the runtime state is unusable. The exit hook is a
// variable so tests can intercept termination.
package fatal

import (
	"fmt"
	"os"
)

// ExitFunc is invoked with the formatted diagnostic; it must not return.
// Tests override it to capture failures.
var ExitFunc = func(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}

// Handle terminates the process when err is non nil, appending the supplied
// identifying data (thread id, cpu id, message id) to the diagnostic.
func Handle(err error, context ...interface{}) {
	if err == nil {
		return
	}
	message := "fatal: " + err.Error()
	if len(context) > 0 {
		message += fmt.Sprint(context...)
	}
	ExitFunc(message)
}

// FailIf terminates the process when the condition holds.
func FailIf(condition bool, format string, args ...interface{}) {
	if !condition {
		return
	}
	ExitFunc("fatal: " + fmt.Sprintf(format, args...))
}
