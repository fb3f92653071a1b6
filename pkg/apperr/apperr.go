package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInsufficientStock
	KindNotFound
	KindEmptyCart
	KindAlreadyPaid
	KindNotPaid
	KindPaymentMismatch
	KindProviderUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindNotFound:
		return "NOT_FOUND"
	case KindEmptyCart:
		return "EMPTY_CART"
	case KindAlreadyPaid:
		return "ALREADY_PAID"
	case KindNotPaid:
		return "NOT_PAID"
	case KindPaymentMismatch:
		return "PAYMENT_MISMATCH"
	case KindProviderUnavailable:
		return "PROVIDER_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

// Error messages shared by the cart and order services.
const (
	MsgCartNotFound       = "Cart not found"
	MsgItemNotFound       = "Item not found"
	MsgProductNotFound    = "Product not found"
	MsgNotEnoughStock     = "Not enough stock"
	MsgQuantityPositive   = "Quantity must be at least 1"
	MsgProductIDRequired  = "Product ID is required"
	MsgCartEmpty          = "Your cart is empty"
	MsgOrderNotFound      = "Order not found"
	MsgOrderAlreadyPaid   = "Order is already paid"
	MsgOrderNotPaid       = "Order is not paid"
	MsgPaymentMismatch    = "Captured amount does not match order total"
	MsgProviderDown       = "Payment provider is unavailable"
	MsgPaymentIncomplete  = "Payment was not completed"
	MsgSessionMismatch    = "Payment session does not belong to this order"
	MsgPaymentMethodValid = "Payment method is not supported"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return New(KindValidation, message) }

func Validationf(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func InsufficientStock(message string) *Error { return New(KindInsufficientStock, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func EmptyCart() *Error { return New(KindEmptyCart, MsgCartEmpty) }

func AlreadyPaid() *Error { return New(KindAlreadyPaid, MsgOrderAlreadyPaid) }

func NotPaid() *Error { return New(KindNotPaid, MsgOrderNotPaid) }

func PaymentMismatch(message string) *Error { return New(KindPaymentMismatch, message) }

func ProviderUnavailable(err error) *Error {
	return Wrap(KindProviderUnavailable, MsgProviderDown, err)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf reports KindInternal for errors that did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsValidation also matches InsufficientStock.
func IsValidation(err error) bool {
	k := KindOf(err)
	return err != nil && (k == KindValidation || k == KindInsufficientStock)
}

func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindValidation, KindInsufficientStock, KindEmptyCart, KindPaymentMismatch:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyPaid:
		return http.StatusOK
	case KindNotPaid:
		return http.StatusConflict
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func GRPCCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	switch KindOf(err) {
	case KindValidation, KindInsufficientStock, KindEmptyCart, KindPaymentMismatch:
		return codes.InvalidArgument
	case KindNotFound:
		return codes.NotFound
	case KindAlreadyPaid:
		return codes.OK
	case KindNotPaid:
		return codes.FailedPrecondition
	case KindProviderUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
