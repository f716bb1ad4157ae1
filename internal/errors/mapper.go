// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Error kinds. Service code wraps these with a caller-facing message; callers
// classify with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrStorage         = errors.New("storage error")
	ErrPaymentRequired = errors.New("payment required")
)

// Error carries a kind, a message safe to show to clients and an optional cause.
type Error struct {
	Kind  error
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.Error() + ": " + e.Msg + ": " + e.Cause.Error()
	}
	return e.Kind.Error() + ": " + e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// InvalidArgument creates an error for bad input; msg names the violated constraint.
func InvalidArgument(msg string) error {
	return &Error{Kind: ErrInvalidArgument, Msg: msg}
}

// Forbidden creates an error for an authenticated caller lacking access.
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Msg: msg}
}

// NotFound creates an error for a missing resource.
func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Msg: msg}
}

// PaymentRequired creates an error for a feature gated behind a subscription.
func PaymentRequired(msg string) error {
	return &Error{Kind: ErrPaymentRequired, Msg: msg}
}

// Storage wraps a store failure. Context errors and already classified errors
// pass through untouched so their kind survives.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: ErrNotFound, Msg: "record not found", Cause: err}
	}
	return &Error{Kind: ErrStorage, Msg: op, Cause: err}
}

// Map converts repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code, msg := classify(err)
	return status.Error(code, msg)
}

// HTTPStatus returns the HTTP status, a stable error code and the client message for err.
func HTTPStatus(err error) (int, string, string) {
	code, msg := classify(err)
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "BAD_REQUEST", msg
	case codes.PermissionDenied:
		return http.StatusForbidden, "FORBIDDEN", msg
	case codes.NotFound:
		return http.StatusNotFound, "NOT_FOUND", msg
	case codes.FailedPrecondition:
		return http.StatusPaymentRequired, "PAYMENT_REQUIRED", msg
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, "TIMEOUT", msg
	case codes.Canceled:
		return 499, "CANCELED", msg
	case codes.Unavailable:
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", msg
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", msg
	}
}

// IsRetryable reports whether the client may safely retry the call.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage) || errors.Is(err, context.DeadlineExceeded)
}

func classify(err error) (codes.Code, string) {
	var e *Error
	msg := ""
	if errors.As(err, &e) {
		msg = e.Msg
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, "request timed out, please retry"

	case errors.Is(err, context.Canceled):
		return codes.Canceled, "request was canceled"

	case errors.Is(err, ErrInvalidArgument):
		return codes.InvalidArgument, msg

	case errors.Is(err, ErrForbidden):
		return codes.PermissionDenied, msg

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		if msg == "" {
			msg = "record not found"
		}
		return codes.NotFound, msg

	case errors.Is(err, ErrPaymentRequired):
		return codes.FailedPrecondition, msg

	case errors.Is(err, ErrStorage):
		return codes.Unavailable, "storage temporarily unavailable, please retry"

	default:
		return codes.Internal, "internal error"
	}
}
