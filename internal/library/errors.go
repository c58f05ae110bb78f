package library

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input rejected before any write.
	ErrValidation = errors.New("validation")
	// ErrConflict marks an update whose expected updatedAt no longer matches storage.
	ErrConflict = errors.New("conflict")
	// ErrNotFound marks an operation targeting an id absent from the expected table.
	ErrNotFound = errors.New("not_found")
	// ErrUnauthorized marks a missing, expired or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable marks a storage backend that could not be reached.
	ErrUnavailable = errors.New("unavailable")
	// ErrMalformedInput marks an import payload that is not a record array.
	ErrMalformedInput = errors.New("malformed_input")

	// ErrRecordAbsent is returned by a RecordStore get on a missing id.
	ErrRecordAbsent = errors.New("library: record absent")

	errMissingStore = errors.New("record store is required")
)

var errorKinds = []error{
	ErrValidation,
	ErrConflict,
	ErrNotFound,
	ErrUnauthorized,
	ErrUnavailable,
	ErrMalformedInput,
}

// ServiceError carries a stable code of the form "<operation>.<reason>" together
// with the error kind callers branch on.
type ServiceError struct {
	code string
	kind error
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Is reports whether target is the kind of this error.
func (e *ServiceError) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

// Code returns the operation-scoped error code.
func (e *ServiceError) Code() string {
	return e.code
}

// Kind returns the error kind, or nil for internal failures.
func (e *ServiceError) Kind() error {
	return e.kind
}

func newServiceError(operation, reason string, kind, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, kind: kind, err: cause}
}

// KindOf returns the error kind carried by err, or nil when err is not one of
// the library kinds.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// storageKind keeps the unavailable classification of adapter failures and
// leaves every other failure kindless.
func storageKind(err error) error {
	if errors.Is(err, ErrUnavailable) {
		return ErrUnavailable
	}
	return nil
}
