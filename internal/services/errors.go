package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBuildFailed marks a nonzero exit from the external build tool.
	ErrBuildFailed = errors.New("build failed")
	// ErrTimeout marks a subprocess that exceeded its configured deadline.
	// Timeouts are fatal and never retried.
	ErrTimeout = errors.New("timeout")
	// ErrClosureUnreadable marks a closure path that could not be introspected.
	ErrClosureUnreadable = errors.New("closure unreadable")
	// ErrRegistryWrite marks a failure to update the durable generation registry.
	ErrRegistryWrite = errors.New("registry write error")
	// ErrUserAborted marks a declined confirmation. It is a normal outcome,
	// not a fault, and is reported without error styling.
	ErrUserAborted = errors.New("aborted by user")
	// ErrWriteOutput marks an I/O fault while writing formatted output.
	ErrWriteOutput = errors.New("output write error")
	// ErrActivationFailed marks a nonzero exit from the activation subprocess.
	ErrActivationFailed = errors.New("activation failed")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		if err != nil {
			return fmt.Errorf("%s: %w", detail, err)
		}
		return errors.New(detail)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps a command error to the process exit status. Build failures and
// timeouts exit 1, activation and registry failures exit 2, a declined
// confirmation exits 3, and anything else exits 4.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrBuildFailed), errors.Is(err, ErrTimeout):
		return 1
	case errors.Is(err, ErrActivationFailed), errors.Is(err, ErrRegistryWrite):
		return 2
	case errors.Is(err, ErrUserAborted):
		return 3
	default:
		return 4
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "command failure"
	}
	return strings.Join(parts, ": ")
}
