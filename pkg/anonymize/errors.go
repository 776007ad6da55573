package anonymize

import (
	"errors"
)

var (
	ErrInvalidK            = errors.New("k must be at least 2")
	ErrInvalidEpsilon      = errors.New("epsilon must be positive")
	ErrBatchLengthMismatch = errors.New("texts and records differ in length")
	ErrNoEmbedder          = errors.New("no embedder configured")
)

// CallerInputError marks a request the caller must fix. It is the only error
// class that leaves the engine; everything else degrades locally.
type CallerInputError struct {
	reason error
}

func (e CallerInputError) Error() string {
	return e.reason.Error()
}

func (e CallerInputError) Unwrap() error {
	return e.reason
}

func IsCallerInputError(err error) bool {
	var ce CallerInputError
	return errors.As(err, &ce)
}

func callerError(err error) error {
	return CallerInputError{reason: err}
}
