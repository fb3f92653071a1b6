package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestFromError(t *testing.T) {
	r := FromError(AlreadyPaid(), "order")
	assert.True(t, r.Success)
	assert.Equal(t, MsgOrderAlreadyPaid, r.Message)
	assert.Equal(t, "order", r.Data)
	assert.Equal(t, http.StatusOK, r.HTTPStatus())

	r = FromError(fmt.Errorf("wrapped: %w", NotFound(MsgOrderNotFound)), nil)
	assert.False(t, r.Success)
	assert.Equal(t, MsgOrderNotFound, r.Message)
	assert.Equal(t, http.StatusNotFound, r.HTTPStatus())

	r = FromError(errors.New("connection refused"), nil)
	assert.False(t, r.Success)
	assert.Equal(t, msgInternal, r.Message)
	assert.Equal(t, http.StatusInternalServerError, r.HTTPStatus())

	r = FromError(ProviderUnavailable(errors.New("timeout")), nil)
	assert.Equal(t, MsgProviderDown, r.Message)
	assert.Equal(t, http.StatusServiceUnavailable, r.HTTPStatus())
}

func TestKinds(t *testing.T) {
	err := fmt.Errorf("add: %w", InsufficientStock(MsgNotEnoughStock))
	assert.True(t, IsValidation(err))
	assert.Equal(t, KindInsufficientStock, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsValidation(nil))

	assert.Equal(t, codes.FailedPrecondition, GRPCCode(NotPaid()))
	assert.Equal(t, codes.InvalidArgument, GRPCCode(EmptyCart()))
	assert.Equal(t, http.StatusConflict, HTTPStatus(NotPaid()))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(PaymentMismatch(MsgPaymentMismatch)))
}
