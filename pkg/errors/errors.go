package errors

import (
	"errors"
	"fmt"
)

// Error kinds. Every error surfaced to a caller wraps exactly one of these;
// the HTTP layer maps kinds to status codes.
var (
	ErrNotFound               = errors.New("resource not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidMember          = errors.New("invalid member")
	ErrOutOfStock             = errors.New("out of stock")
	ErrPaymentFailed          = errors.New("payment failed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrServiceUnavail         = errors.New("service unavailable")
	ErrExternalClient         = errors.New("external service client error")
	ErrInternal               = errors.New("internal error")
)

// AppError is a classified application error. Err carries the kind sentinel
// (or, for Internal, the underlying cause).
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Err:     ErrNotFound,
	}
}

// InvalidInput reports a request that failed validation.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Err:     ErrInvalidInput,
	}
}

// InvalidMember reports a member that does not exist or is not active.
func InvalidMember(memberID int64) *AppError {
	return &AppError{
		Code:    "INVALID_MEMBER",
		Message: fmt.Sprintf("member %d does not exist or is not active", memberID),
		Err:     ErrInvalidMember,
	}
}

// OutOfStock reports insufficient or unavailable stock for a product.
func OutOfStock(productID int64, requested int) *AppError {
	return &AppError{
		Code:    "OUT_OF_STOCK",
		Message: fmt.Sprintf("product %d is out of stock or has fewer than %d units", productID, requested),
		Err:     ErrOutOfStock,
	}
}

// PaymentFailed reports a declined or failed payment charge.
func PaymentFailed(message string) *AppError {
	return &AppError{
		Code:    "PAYMENT_FAILED",
		Message: message,
		Err:     ErrPaymentFailed,
	}
}

// InvalidStateTransition reports a status change that the current status forbids.
func InvalidStateTransition(from, to string) *AppError {
	return &AppError{
		Code:    "INVALID_STATE_TRANSITION",
		Message: fmt.Sprintf("cannot transition order from %s to %s", from, to),
		Err:     ErrInvalidStateTransition,
	}
}

// ServiceUnavailable reports a downstream 5xx, timeout or unreachable service.
func ServiceUnavailable(message string) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Err:     ErrServiceUnavail,
	}
}

// ExternalServiceClient reports a downstream 4xx response.
func ExternalServiceClient(message string) *AppError {
	return &AppError{
		Code:    "EXTERNAL_SERVICE_CLIENT_ERROR",
		Message: message,
		Err:     ErrExternalClient,
	}
}

// Internal wraps an unclassified failure. The message is never shown to clients.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Kind returns the kind sentinel err wraps, or ErrInternal when err is
// unclassified.
func Kind(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrInvalidMember,
		ErrOutOfStock,
		ErrPaymentFailed,
		ErrInvalidStateTransition,
		ErrServiceUnavail,
		ErrExternalClient,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
