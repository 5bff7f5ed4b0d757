// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"errors"

	"taskman/internal/service"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, validation, not found).
	UserError = 1

	// AuthError indicates a missing or expired session.
	AuthError = 2

	// BackendError indicates a backend, network or local storage error.
	BackendError = 3
)

// For returns the exit code for a failed backend operation.
func For(err error) int {
	if err == nil {
		return Success
	}
	var e *service.Error
	if !errors.As(err, &e) {
		return BackendError
	}
	switch e.Kind {
	case service.KindUnauthenticated:
		return AuthError
	case service.KindValidation, service.KindNotFound:
		return UserError
	default:
		return BackendError
	}
}
