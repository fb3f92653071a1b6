package payment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/models"
)

type stubProvider struct {
	openCalls    int32
	captureCalls int32
	failOpens    int32
	lookups      int32
	failLookups  int32
	delay        time.Duration
	capture      Capture
	err          error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) OpenSession(ctx context.Context, amount decimal.Decimal, currency string) (Session, error) {
	n := atomic.AddInt32(&s.openCalls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if n <= s.failOpens {
		return Session{}, errors.New("connection reset by peer")
	}
	return Session{ID: "sess-1", Provider: "stub"}, nil
}

func (s *stubProvider) CaptureSession(ctx context.Context, sessionID string) (Capture, error) {
	atomic.AddInt32(&s.captureCalls, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return Capture{}, s.err
	}
	return s.capture, nil
}

func (s *stubProvider) SessionStatus(ctx context.Context, sessionID string) (Session, Capture, error) {
	n := atomic.AddInt32(&s.lookups, 1)
	if n <= s.failLookups {
		return Session{}, Capture{}, errors.New("503 service unavailable")
	}
	return Session{ID: sessionID, Provider: "stub", ClientSecret: sessionID + "_secret"}, s.capture, nil
}

func testConfig() *config.PaymentConfig {
	return &config.PaymentConfig{Timeout: 50 * time.Millisecond, MaxAttempts: 3, Backoff: time.Millisecond}
}

func TestGuard_RetriesOpenSession(t *testing.T) {
	stub := &stubProvider{failOpens: 2}
	g := NewGuard(stub, testConfig(), metrics.New(), zap.NewNop())

	s, err := g.OpenSession(context.Background(), decimal.RequireFromString("39.33"), "USD")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", s.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&stub.openCalls))
}

func TestGuard_OpenSessionGivesUp(t *testing.T) {
	stub := &stubProvider{failOpens: 10}
	g := NewGuard(stub, testConfig(), nil, zap.NewNop())

	_, err := g.OpenSession(context.Background(), decimal.RequireFromString("1.00"), "USD")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindProviderUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&stub.openCalls))
}

func TestGuard_RetriesSessionStatus(t *testing.T) {
	stub := &stubProvider{failLookups: 1, capture: Capture{Status: StatusStripeSucceeded}}
	g := NewGuard(stub, testConfig(), nil, zap.NewNop())

	sess, c, err := g.SessionStatus(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", sess.ClientSecret)
	assert.True(t, c.Completed())
	assert.Equal(t, int32(2), atomic.LoadInt32(&stub.lookups))
}

func TestGuard_CaptureTimesOutOnce(t *testing.T) {
	stub := &stubProvider{delay: 200 * time.Millisecond}
	g := NewGuard(stub, testConfig(), nil, zap.NewNop())

	start := time.Now()
	_, err := g.CaptureSession(context.Background(), "sess-1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindProviderUnavailable))
	assert.Less(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&stub.captureCalls))
}

func TestGuard_PassesDomainErrorsThrough(t *testing.T) {
	stub := &stubProvider{err: apperr.Validation("declined")}
	g := NewGuard(stub, testConfig(), nil, zap.NewNop())

	_, err := g.CaptureSession(context.Background(), "sess-1")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCapture_Completed(t *testing.T) {
	assert.True(t, Capture{Status: StatusPayPalCompleted}.Completed())
	assert.True(t, Capture{Status: StatusStripeSucceeded}.Completed())
	assert.False(t, Capture{Status: "requires_capture"}.Completed())
	assert.False(t, Capture{Status: "PENDING"}.Completed())
}

func TestRegistry(t *testing.T) {
	stub := &stubProvider{}
	r := NewRegistry().Register(models.PaymentMethodPayPal, stub)

	p, err := r.For(models.PaymentMethodPayPal)
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())

	_, err = r.For(models.PaymentMethodStripe)
	assert.Error(t, err)
}
