package job

import (
	"errors"
	"fmt"
)

// permanentError marks a handler failure as non-retryable.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the retry controller fails the job immediately,
// regardless of remaining attempts. Use it for malformed payloads,
// validation failures, and business-rule rejections where retrying can
// never succeed. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Permanentf is Permanent with fmt.Errorf formatting.
func Permanentf(format string, args ...any) error {
	return &permanentError{err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether any error in err's chain was wrapped by
// Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
