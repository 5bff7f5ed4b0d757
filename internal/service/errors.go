package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a backend failure.
type ErrorKind int

const (
	// KindUnknown is an unclassified failure.
	KindUnknown ErrorKind = iota

	// KindUnauthenticated is a 401: the session is no longer valid.
	KindUnauthenticated

	// KindValidation is a 4xx other than 401/404, or a local check.
	KindValidation

	// KindNotFound is a 404.
	KindNotFound

	// KindTransient covers network failures, timeouts, 5xx and malformed bodies.
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// ErrUnauthenticated matches any error of KindUnauthenticated via errors.Is.
var ErrUnauthenticated = errors.New("session expired")

// Error describes a failed backend operation.
type Error struct {
	Op      string
	Kind    ErrorKind
	Status  int
	Message string // backend-provided or fallback, shown to the user
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "backend error"
	}
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	default:
		return e.Op + ": " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrUnauthenticated for 401 errors.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthenticated && e.Kind == KindUnauthenticated
}

// KindOf returns the kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsUnauthenticated reports whether err means the session is invalid.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// IsTransient reports whether err is a network/5xx style failure, or an
// unclassified one (which is treated the same way).
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindUnknown:
		return err != nil
	}
	return false
}
