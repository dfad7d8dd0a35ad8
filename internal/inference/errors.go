package inference

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds of invocation failure. Every error returned by Invoke is an
// *Error whose Kind is one of these, so callers match with errors.Is.
var (
	ErrScorerUnavailable = errors.New("scorer unavailable")
	ErrScorerNotFound    = errors.New("scorer executable not found")
	ErrScorerProcess     = errors.New("scorer process failed")
	ErrResultParse       = errors.New("scorer result parse failed")
	ErrScorerReported    = errors.New("scorer reported error")
	ErrScorerTimeout     = errors.New("scorer timed out")
	ErrEncodePayload     = errors.New("payload encode failed")
)

// Error is the failure half of an invocation outcome. It keeps the raw
// streams of the scorer process for diagnostics.
type Error struct {
	Kind     error
	Op       string
	Msg      string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *Error) Error() string { return e.Msg }

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Outcome returns a short label for the kind, used for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrScorerNotFound):
		return "not_found"
	case errors.Is(err, ErrScorerUnavailable):
		return "unavailable"
	case errors.Is(err, ErrScorerTimeout):
		return "timeout"
	case errors.Is(err, ErrScorerProcess):
		return "process_error"
	case errors.Is(err, ErrResultParse):
		return "parse_error"
	case errors.Is(err, ErrScorerReported):
		return "reported_error"
	case errors.Is(err, ErrEncodePayload):
		return "encode_error"
	default:
		return "canceled"
	}
}

func notFoundError(command string, cause error) *Error {
	return &Error{
		Kind: ErrScorerNotFound,
		Op:   "inference.start",
		Msg: fmt.Sprintf(
			"scorer executable not found; ensure it is installed and in PATH. Tried: %s", command),
		ExitCode: -1,
		Err:      errors.Join(ErrScorerUnavailable, cause),
	}
}

func launchError(cause error) *Error {
	return &Error{
		Kind:     ErrScorerUnavailable,
		Op:       "inference.start",
		Msg:      fmt.Sprintf("failed to start scorer process: %v", cause),
		ExitCode: -1,
		Err:      cause,
	}
}

func processError(code int, stdout, stderr string) *Error {
	detail := stderr
	if strings.TrimSpace(detail) == "" {
		detail = stdout
	}
	if strings.TrimSpace(detail) == "" {
		detail = "Unknown error"
	}
	return &Error{
		Kind:     ErrScorerProcess,
		Op:       "inference.wait",
		Msg:      fmt.Sprintf("scorer process failed (code %d): %s", code, strings.TrimSpace(detail)),
		ExitCode: code,
		Stdout:   stdout,
		Stderr:   stderr,
	}
}

func parseError(cause error, stdout, stderr string) *Error {
	return &Error{
		Kind:   ErrResultParse,
		Op:     "inference.decode",
		Msg:    fmt.Sprintf("failed to parse prediction result: %v\nOutput: %s\nError: %s", cause, stdout, stderr),
		Stdout: stdout,
		Stderr: stderr,
		Err:    cause,
	}
}

func reportedError(msg, stdout, stderr string) *Error {
	return &Error{
		Kind:   ErrScorerReported,
		Op:     "inference.decode",
		Msg:    msg,
		Stdout: stdout,
		Stderr: stderr,
	}
}

func timeoutError(kind error, cause error, stdout, stderr string) *Error {
	msg := fmt.Sprintf("scorer process interrupted: %v", cause)
	if errors.Is(kind, ErrScorerTimeout) {
		msg = fmt.Sprintf("scorer process timed out: %v", cause)
	}
	return &Error{
		Kind:     kind,
		Op:       "inference.wait",
		Msg:      msg,
		ExitCode: -1,
		Stdout:   stdout,
		Stderr:   stderr,
		Err:      cause,
	}
}
