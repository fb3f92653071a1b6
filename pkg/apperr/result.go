package apperr

import (
	"errors"
	"net/http"
)

const msgInternal = "Something went wrong, please try again"

// Result is the envelope every mutating storefront operation returns to its caller.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func OK(message string, data interface{}) Result {
	return Result{Success: true, Message: message, Data: data}
}

// FromError converts a failed operation into a Result. AlreadyPaid is absorbed as success so
// duplicate payment confirmations look identical to the first one.
func FromError(err error, data interface{}) Result {
	if err == nil {
		return Result{Success: true, Data: data}
	}

	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return Result{Success: false, Message: msgInternal, status: http.StatusInternalServerError}
	}
	if e.Kind == KindAlreadyPaid {
		return Result{Success: true, Message: e.Message, Data: data}
	}
	return Result{Success: false, Message: e.Message, status: HTTPStatus(err)}
}

// HTTPStatus is the status a failed Result was built with, 200 for successes.
func (r Result) HTTPStatus() int {
	switch {
	case r.Success:
		return http.StatusOK
	case r.status != 0:
		return r.status
	default:
		return http.StatusInternalServerError
	}
}
