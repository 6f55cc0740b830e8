package deployclient

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/pipeline"
)

type ExitCode int

// Keep separate to avoid skewing exit codes
const (
	ExitSuccess ExitCode = iota
	ExitDeploymentFailure
	ExitAuthentication
	ExitConflict
	ExitIntegrity
	ExitUnavailable
	ExitInvocationFailure
	ExitInternalError
	ExitTemplateError
	ExitTimeout
)

// When several deployments fail, the code earliest in this list is reported.
var exitPriority = []ExitCode{
	ExitInternalError,
	ExitAuthentication,
	ExitTimeout,
	ExitUnavailable,
	ExitIntegrity,
	ExitConflict,
	ExitInvocationFailure,
	ExitDeploymentFailure,
}

type Error struct {
	Code ExitCode
	Err  error
}

func (err *Error) Error() string {
	return err.Err.Error()
}

func (err *Error) Unwrap() error {
	return err.Err
}

func Errorf(exitCode ExitCode, format string, args ...interface{}) *Error {
	return &Error{
		Code: exitCode,
		Err:  fmt.Errorf(format, args...),
	}
}

func ErrorWrap(exitCode ExitCode, err error) *Error {
	return &Error{
		Code: exitCode,
		Err:  err,
	}
}

func ErrorExitCode(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var e *Error
	if !errors.As(err, &e) {
		return ExitInternalError
	}
	return e.Code
}

// KindExitCode maps a pipeline error kind onto the exit code reported for it.
func KindExitCode(kind deployerr.Kind) ExitCode {
	switch kind {
	case deployerr.KindAuthentication:
		return ExitAuthentication
	case deployerr.KindResourceConflict:
		return ExitConflict
	case deployerr.KindIntegrity:
		return ExitIntegrity
	case deployerr.KindTransientNetwork:
		return ExitUnavailable
	case deployerr.KindCancelled:
		return ExitTimeout
	case deployerr.KindInvalidInput:
		return ExitInvocationFailure
	case deployerr.KindInternal:
		return ExitInternalError
	default:
		return ExitDeploymentFailure
	}
}

// ErrorStatus returns nil when every deployment succeeded. Otherwise the error names the failed
// domains and carries the most significant exit code among them.
func ErrorStatus(results []*pipeline.Result) error {
	codes := make(map[ExitCode]bool)
	failed := make([]string, 0)

	for _, result := range results {
		if result.Succeeded() {
			continue
		}
		code := ExitDeploymentFailure
		if failure := result.Failure(); failure != nil {
			code = KindExitCode(failure.Kind)
			failed = append(failed, fmt.Sprintf("%s (%s: %s)", result.Domain, failure.Name, failure.Kind))
		} else {
			failed = append(failed, result.Domain)
		}
		codes[code] = true
	}

	if len(failed) == 0 {
		return nil
	}

	for _, code := range exitPriority {
		if codes[code] {
			return Errorf(code, "%d of %d deployment(s) failed: %s", len(failed), len(results), strings.Join(failed, ", "))
		}
	}
	return Errorf(ExitDeploymentFailure, "%d of %d deployment(s) failed: %s", len(failed), len(results), strings.Join(failed, ", "))
}
