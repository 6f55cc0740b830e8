// Package deployerr classifies failures raised while provisioning a site.
//
// Every component wraps its failures in an *Error carrying a Kind. The orchestrator
// uses the kind to decide between retry, abort and continue, and the CLI uses it to
// pick an exit code.
package deployerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindAuthentication means the hosting account rejected our credentials.
	KindAuthentication Kind = "authentication"

	// KindTransientNetwork covers network errors, timeouts and 5xx responses.
	KindTransientNetwork Kind = "transient_network"

	// KindResourceConflict means the remote resource already exists.
	KindResourceConflict Kind = "resource_conflict"

	// KindIntegrity means an uploaded archive failed checksum verification.
	KindIntegrity Kind = "integrity"

	// KindBestEffort marks a failure in a stage that does not halt the deployment.
	KindBestEffort Kind = "best_effort"

	// KindInvalidInput means the request or parameters were rejected before any remote call.
	KindInvalidInput Kind = "invalid_input"

	// KindRemote is a logical failure reported by the remote side.
	KindRemote Kind = "remote"

	// KindCancelled means the caller's context ended.
	KindCancelled Kind = "cancelled"

	KindInternal Kind = "internal"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(message)}
}

func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain.
// Errors that were never classified are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether a failed call may be issued again.
func Retryable(err error) bool {
	return Is(err, KindTransientNetwork)
}

// Fatal reports whether a failure of this kind must stop the pipeline regardless of stage criticality.
func Fatal(kind Kind) bool {
	switch kind {
	case KindAuthentication, KindCancelled:
		return true
	default:
		return false
	}
}
