package httputil

import (
	"net/http"

	apperrors "github.com/utafrali/order-service/pkg/errors"
)

// StatusCode maps an error kind to its HTTP status. This is the only place
// error kinds are translated into response codes.
func StatusCode(err error) int {
	switch apperrors.Kind(err) {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrInvalidInput,
		apperrors.ErrInvalidMember,
		apperrors.ErrOutOfStock,
		apperrors.ErrExternalClient:
		return http.StatusBadRequest
	case apperrors.ErrPaymentFailed:
		return http.StatusUnprocessableEntity
	case apperrors.ErrInvalidStateTransition:
		return http.StatusConflict
	case apperrors.ErrServiceUnavail:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func defaultCode(err error) string {
	switch apperrors.Kind(err) {
	case apperrors.ErrNotFound:
		return "NOT_FOUND"
	case apperrors.ErrInvalidInput:
		return "INVALID_INPUT"
	case apperrors.ErrInvalidMember:
		return "INVALID_MEMBER"
	case apperrors.ErrOutOfStock:
		return "OUT_OF_STOCK"
	case apperrors.ErrExternalClient:
		return "EXTERNAL_SERVICE_CLIENT_ERROR"
	case apperrors.ErrPaymentFailed:
		return "PAYMENT_FAILED"
	case apperrors.ErrInvalidStateTransition:
		return "INVALID_STATE_TRANSITION"
	case apperrors.ErrServiceUnavail:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
