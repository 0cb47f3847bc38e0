// Package apperr defines the error taxonomy shared by the service and HTTP layers.
//
// Every coded error belongs to exactly one kind. errors.Is matches both the
// coded error itself and its kind, so callers can branch on whichever is more
// convenient:
//
//	errors.Is(err, apperr.ErrSessionNotActive) // specific
//	errors.Is(err, apperr.InvalidState)        // category
package apperr

import (
	"errors"
	"fmt"
)

// Kinds
var (
	NotFound            = errors.New("not found")
	InvalidState        = errors.New("invalid state")
	Validation          = errors.New("validation error")
	ConcurrencyConflict = errors.New("concurrency conflict")
	UpstreamFailure     = errors.New("upstream failure")
)

// Error is a coded error of a given kind.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrRestaurantNotFound = newError(NotFound, "RESTAURANT_NOT_FOUND", "restaurant not found")
	ErrTableNotFound      = newError(NotFound, "TABLE_NOT_FOUND", "invalid QR code or table not found")
	ErrSessionNotFound    = newError(NotFound, "SESSION_NOT_FOUND", "session not found")
	ErrOrderNotFound      = newError(NotFound, "ORDER_NOT_FOUND", "order not found")
	ErrMenuItemNotFound   = newError(NotFound, "MENU_ITEM_NOT_FOUND", "menu item not found")
	ErrCartItemNotFound   = newError(NotFound, "CART_ITEM_NOT_FOUND", "cart item not found")
	ErrPaymentNotFound    = newError(NotFound, "PAYMENT_NOT_FOUND", "payment not found")
	ErrBillNotFound       = newError(NotFound, "BILL_NOT_FOUND", "bill not found")
	ErrCouponNotFound     = newError(NotFound, "COUPON_NOT_FOUND", "coupon not found")

	ErrRestaurantClosed    = newError(InvalidState, "RESTAURANT_CLOSED", "restaurant is currently closed")
	ErrSessionNotActive    = newError(InvalidState, "SESSION_NOT_ACTIVE", "session is not active")
	ErrMenuItemUnavailable = newError(InvalidState, "MENU_ITEM_UNAVAILABLE", "menu item is not available")
	ErrInvalidTransition   = newError(InvalidState, "INVALID_TRANSITION", "illegal order status transition")
	ErrPaymentNotPending   = newError(InvalidState, "PAYMENT_NOT_PENDING", "payment is no longer pending")
	ErrNotFullyPaid        = newError(InvalidState, "NOT_FULLY_PAID", "session has not been fully paid")
	ErrCouponInvalid       = newError(InvalidState, "COUPON_INVALID", "coupon cannot be applied")
	ErrFeedbackExists      = newError(InvalidState, "FEEDBACK_EXISTS", "feedback already submitted for this session")

	ErrEmptyOrder     = newError(Validation, "EMPTY_ORDER", "order must contain at least one item")
	ErrReasonRequired = newError(Validation, "REASON_REQUIRED", "cancellation reason is required")
	ErrInvalidAmount  = newError(Validation, "INVALID_AMOUNT", "payment amount is invalid")
	ErrInvalidInput   = newError(Validation, "INVALID_INPUT", "invalid request")

	ErrStaleState = newError(ConcurrencyConflict, "STALE_STATE", "state changed concurrently, retry")

	ErrBillNumberExhausted = newError(UpstreamFailure, "BILL_NUMBER_UNAVAILABLE", "could not allocate a unique bill number")
)

// Wrap attaches detail to a coded error while keeping errors.Is working.
func Wrap(err *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
}

// Upstream marks err as an upstream failure (store, broker, gateway).
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, UpstreamFailure, err)
}

// CodeOf returns the code of the first coded error in err's chain.
func CodeOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	switch {
	case errors.Is(err, NotFound):
		return "NOT_FOUND"
	case errors.Is(err, Validation):
		return "VALIDATION_ERROR"
	case errors.Is(err, InvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ConcurrencyConflict):
		return "CONFLICT"
	case errors.Is(err, UpstreamFailure):
		return "UPSTREAM_FAILURE"
	default:
		return "INTERNAL_ERROR"
	}
}
