package order

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
)

// The *Result methods are the operation boundary: every error becomes a {success, message, data}
// envelope and AlreadyPaid reads as success.

func (s *Service) CreateOrderResult(ctx context.Context, userID string, req CreateOrderRequest) apperr.Result {
	o, err := s.CreateOrder(ctx, userID, req)
	return s.result("create order", MsgOrderCreated, o, err)
}

func (s *Service) MarkPaidResult(ctx context.Context, orderID string, pr *models.PaymentResult) apperr.Result {
	o, err := s.MarkPaid(ctx, orderID, pr)
	return s.result("mark paid", MsgOrderPaid, o, err)
}

func (s *Service) MarkPaidCashOnDeliveryResult(ctx context.Context, orderID string) apperr.Result {
	o, err := s.MarkPaidCashOnDelivery(ctx, orderID)
	return s.result("mark paid cod", MsgOrderPaid, o, err)
}

func (s *Service) MarkDeliveredResult(ctx context.Context, orderID string) apperr.Result {
	o, err := s.MarkDelivered(ctx, orderID)
	return s.result("mark delivered", MsgOrderDelivered, o, err)
}

func (s *Service) CreateProviderOrderResult(ctx context.Context, orderID string) apperr.Result {
	sess, o, err := s.CreateProviderOrder(ctx, orderID)
	if err != nil {
		return s.result("create provider order", MsgSessionCreated, o, err)
	}
	return apperr.OK(MsgSessionCreated, sess)
}

func (s *Service) ApproveProviderOrderResult(ctx context.Context, orderID string, req ApproveRequest) apperr.Result {
	o, err := s.ApproveProviderOrder(ctx, orderID, req)
	return s.result("approve provider order", MsgOrderPaid, o, err)
}

func (s *Service) result(op, okMessage string, o *models.Order, err error) apperr.Result {
	if err == nil {
		return apperr.OK(okMessage, o)
	}
	switch apperr.KindOf(err) {
	case apperr.KindAlreadyPaid:
	case apperr.KindInternal, apperr.KindProviderUnavailable:
		s.logger.Error("Order operation failed", zap.String("op", op), zap.Error(err))
	default:
		s.logger.Debug("Order operation rejected", zap.String("op", op), zap.String("reason", err.Error()))
	}
	return apperr.FromError(err, o)
}
