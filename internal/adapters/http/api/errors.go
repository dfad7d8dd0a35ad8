package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrValidation = errors.New("validation failed")
	ErrBadRequest = errors.New("bad request")
	ErrPrediction = errors.New("prediction failed")
)

// opError tags an error with the handler operation that produced it.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	switch {
	case e.kind != nil && e.err != nil:
		return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.err)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.op, e.err)
	default:
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	}
}

func (e *opError) Unwrap() []error {
	var errs []error
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.err != nil {
		errs = append(errs, e.err)
	}
	return errs
}

// Wrap tags err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// WrapKind tags err with op and a sentinel kind so both match errors.Is.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}

// NewKind returns an error of the given kind with no further cause.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}
