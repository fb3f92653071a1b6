package order

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/payment"
)

// CreateProviderOrder opens a provider checkout for the order total. Calling it again while the
// order is unpaid reads the stored session back from the provider instead of opening a second one.
func (s *Service) CreateProviderOrder(ctx context.Context, orderID string) (payment.Session, *models.Order, error) {
	sess, o, err := s.createProviderOrder(ctx, orderID)
	s.metrics.OrderTransition("open_session", err)
	return sess, o, err
}

func (s *Service) createProviderOrder(ctx context.Context, orderID string) (payment.Session, *models.Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return payment.Session{}, nil, err
	}
	if o.IsPaid {
		return payment.Session{}, o, apperr.AlreadyPaid()
	}
	provider, err := s.providerFor(o.PaymentMethod)
	if err != nil {
		return payment.Session{}, nil, err
	}

	if id := o.OpenSession(provider.Name()); id != "" {
		sess, _, err := provider.SessionStatus(ctx, id)
		if err != nil {
			return payment.Session{}, nil, err
		}
		return sess, o, nil
	}

	sess, err := provider.OpenSession(ctx, o.TotalPrice, s.currency)
	if err != nil {
		s.logger.Warn("Failed to open payment session",
			zap.String("order_id", orderID),
			zap.String("provider", provider.Name()),
			zap.Error(err))
		return payment.Session{}, nil, err
	}

	applied, err := s.store.UpdateOrderPaymentState(ctx, orderID, models.OrderStateUpdate{
		Transition: models.TransitionSessionOpened,
		At:         s.now(),
		PaymentResult: &models.PaymentResult{
			Provider:  provider.Name(),
			SessionID: sess.ID,
			Status:    statusCreated,
			Amount:    o.TotalPrice,
		},
	})
	if err != nil {
		return payment.Session{}, nil, err
	}

	o, err = s.store.FindOrder(ctx, orderID)
	if err != nil {
		return payment.Session{}, nil, err
	}
	if !applied {
		return payment.Session{}, o, apperr.AlreadyPaid()
	}

	s.logger.Info("Payment session opened",
		zap.String("order_id", orderID),
		zap.String("provider", provider.Name()),
		zap.String("session_id", sess.ID))
	s.publish(notify.Event{
		Type:     notify.EventOrderSessionOpened,
		EntityID: orderID,
		OwnerID:  o.UserID,
		Data:     map[string]interface{}{"provider": provider.Name(), "session_id": sess.ID},
	})
	return sess, o, nil
}

// ApproveProviderOrder captures the buyer-approved session and marks the order paid. The order
// is only paid when the captured amount equals its total to the cent.
func (s *Service) ApproveProviderOrder(ctx context.Context, orderID string, req ApproveRequest) (*models.Order, error) {
	o, err := s.approveProviderOrder(ctx, orderID, req)
	s.metrics.OrderTransition("approve", err)
	return o, err
}

func (s *Service) approveProviderOrder(ctx context.Context, orderID string, req ApproveRequest) (*models.Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return o, apperr.AlreadyPaid()
	}
	provider, err := s.providerFor(o.PaymentMethod)
	if err != nil {
		return nil, err
	}

	stored := o.OpenSession(provider.Name())
	if stored == "" || req.SessionID != stored {
		return nil, apperr.Validation(apperr.MsgSessionMismatch)
	}

	capture, err := provider.CaptureSession(ctx, req.SessionID)
	if err != nil {
		prior, ok := s.earlierCapture(ctx, provider, orderID, req.SessionID, err)
		if !ok {
			return nil, err
		}
		capture = prior
	}
	if !capture.Completed() {
		s.logger.Warn("Payment not completed",
			zap.String("order_id", orderID),
			zap.String("status", capture.Status))
		return nil, apperr.Validation(apperr.MsgPaymentIncomplete)
	}

	currencyOK := capture.Currency == "" || strings.EqualFold(capture.Currency, s.currency)
	if !currencyOK || !money.Round2(capture.CapturedAmount).Equal(o.TotalPrice) {
		s.logger.Error("Captured amount does not match order total",
			zap.String("order_id", orderID),
			zap.String("captured", money.Format(capture.CapturedAmount)),
			zap.String("currency", capture.Currency),
			zap.String("total", money.Format(o.TotalPrice)))
		s.publish(notify.Event{
			Type:     notify.EventOrderPaymentMismatch,
			EntityID: orderID,
			OwnerID:  o.UserID,
			Data: map[string]interface{}{
				"captured":       money.Format(capture.CapturedAmount),
				"total":          money.Format(o.TotalPrice),
				"transaction_id": capture.TransactionID,
			},
		})
		return nil, apperr.PaymentMismatch(apperr.MsgPaymentMismatch)
	}

	return s.MarkPaid(ctx, orderID, &models.PaymentResult{
		Provider:      provider.Name(),
		SessionID:     req.SessionID,
		TransactionID: capture.TransactionID,
		Status:        capture.Status,
		Amount:        capture.CapturedAmount,
		EmailAddress:  capture.PayerEmail,
	})
}

// earlierCapture looks the session up after a failed capture. A capture whose response was lost,
// or a retry the provider refuses as already captured, still leaves the session completed there.
func (s *Service) earlierCapture(ctx context.Context, provider payment.Provider, orderID, sessionID string, captureErr error) (payment.Capture, bool) {
	if !apperr.Is(captureErr, apperr.KindProviderUnavailable) {
		return payment.Capture{}, false
	}
	_, c, err := provider.SessionStatus(ctx, sessionID)
	if err != nil || !c.Completed() {
		return payment.Capture{}, false
	}
	s.logger.Info("Recovered earlier capture",
		zap.String("order_id", orderID),
		zap.String("session_id", sessionID),
		zap.String("transaction_id", c.TransactionID))
	return c, true
}

func (s *Service) providerFor(method models.PaymentMethod) (payment.Provider, error) {
	if !method.UsesProvider() || s.providers == nil {
		return nil, apperr.Validation(apperr.MsgPaymentMethodValid)
	}
	p, err := s.providers.For(method)
	if err != nil {
		return nil, apperr.Validation(apperr.MsgPaymentMethodValid)
	}
	return p, nil
}
