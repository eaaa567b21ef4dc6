package errors

import "errors"

// This package defines the sentinel errors shared by every layer. Services wrap
// them with fmt.Errorf("%w: ...") and the outer surfaces (HTTP handlers, the
// REPL, the session snapshot) classify failures with errors.Is.

var (
	// ErrConfiguration signifies that no current account exists or that one of
	// its required fields is blank. Fatal to the current send, never retried.
	ErrConfiguration = errors.New("no configuration")

	// ErrTransport signifies a connectivity failure or a malformed stream from
	// the remote completion service.
	ErrTransport = errors.New("transport failed")

	// ErrPersistence signifies that a write transaction failed and was rolled back.
	ErrPersistence = errors.New("persistence failed")

	// ErrValidation signifies that input failed a business rule before any I/O
	// (empty rename, duplicate account, out-of-range setting).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound signifies that a requested record could not be located.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict signifies that an operation conflicts with the current state
	// of a resource.
	ErrConflict = errors.New("resource conflict")

	// ErrPermission signifies that the record may not be changed, e.g. a
	// built-in prompt template.
	ErrPermission = errors.New("permission denied")

	// ErrBusy signifies that a session already has an exchange in flight.
	ErrBusy = errors.New("session busy")

	// ErrInternal signifies an unexpected failure.
	ErrInternal = errors.New("internal error")
)

// Kind names the taxonomy entry of err for the notification surface.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "internal"
	}
}

// IsKnown reports whether err wraps one of the sentinels above.
func IsKnown(err error) bool {
	return err != nil && (Kind(err) != "internal" || errors.Is(err, ErrInternal))
}
