package models

import "github.com/pkg/errors"

// StatusError carries a ResultStatus through Go error returns below the
// loader boundary.
type StatusError struct {
	Status ResultStatus
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return e.Status.Message() + ": " + e.Err.Error()
	}
	return e.Status.Message()
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusErr wraps cause (which may be nil) with status s.
func StatusErr(s ResultStatus, cause error) error {
	return errors.WithStack(&StatusError{Status: s, Err: cause})
}

// StatusOf extracts the status carried by err. nil maps to Success and an
// error without a status maps to fallback.
func StatusOf(err error, fallback ResultStatus) ResultStatus {
	if err == nil {
		return Success
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return fallback
}
