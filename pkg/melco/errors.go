package melco

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError indicates the controller could not be reached or the
// exchange was cut short (connection refused, timeout, cancellation).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("melco %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was caused by a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// HTTPStatusError indicates the controller answered with a status outside 2xx.
type HTTPStatusError struct {
	Op         string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("melco %s: http status %d", e.Op, e.StatusCode)
}

// DecodeError indicates a response that is not a well-formed Packet document.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("melco: decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError indicates a caller supplied value outside the known
// vocabulary. It is returned before anything is sent.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("melco: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ErrorKind classifies errors returned by this package.
type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindHTTPStatus ErrorKind = "http"
	KindDecode     ErrorKind = "decode"
	KindValidation ErrorKind = "validation"
	KindUnknown    ErrorKind = "unknown"
)

// KindOf returns the kind of err, looking through wrapped errors.
func KindOf(err error) ErrorKind {
	var (
		transportErr  *TransportError
		statusErr     *HTTPStatusError
		decodeErr     *DecodeError
		validationErr *ValidationError
	)
	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &statusErr):
		return KindHTTPStatus
	case errors.As(err, &decodeErr):
		return KindDecode
	default:
		return KindUnknown
	}
}
