package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/metrics"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
)

// Guard wraps a Provider so every call has a deadline and provider faults surface as
// ProviderUnavailable. Reads and session opens are retried; CaptureSession runs once.
type Guard struct {
	next        Provider
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewGuard(next Provider, cfg *config.PaymentConfig, m *metrics.Metrics, logger *zap.Logger) *Guard {
	g := &Guard{
		next:        next,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		metrics:     m,
		logger:      logger.Named("payment").With(zap.String("provider", next.Name())),
	}
	if g.timeout <= 0 {
		g.timeout = defaultTimeout
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultMaxAttempts
	}
	return g
}

func (g *Guard) Name() string {
	return g.next.Name()
}

func (g *Guard) OpenSession(ctx context.Context, amount decimal.Decimal, currency string) (Session, error) {
	return retried(ctx, g, "open_session", func(ctx context.Context) (Session, error) {
		return g.next.OpenSession(ctx, amount, currency)
	})
}

type sessionState struct {
	session Session
	capture Capture
}

// SessionStatus is read-only on the provider side, so it is retried like OpenSession.
func (g *Guard) SessionStatus(ctx context.Context, sessionID string) (Session, Capture, error) {
	st, err := retried(ctx, g, "session_status", func(ctx context.Context) (sessionState, error) {
		s, c, err := g.next.SessionStatus(ctx, sessionID)
		return sessionState{session: s, capture: c}, err
	})
	return st.session, st.capture, err
}

func (g *Guard) CaptureSession(ctx context.Context, sessionID string) (Capture, error) {
	c, err := guarded(ctx, g, "capture_session", func(ctx context.Context) (Capture, error) {
		return g.next.CaptureSession(ctx, sessionID)
	})
	if err != nil {
		g.logger.Error("Capture failed", zap.String("session_id", sessionID), zap.Error(err))
		return Capture{}, err
	}
	return c, nil
}

func retried[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		var v T
		v, err = guarded(ctx, g, op, fn)
		if err == nil {
			return v, nil
		}
		if !apperr.Is(err, apperr.KindProviderUnavailable) || ctx.Err() != nil {
			return zero, err
		}

		g.logger.Warn("Provider call attempt failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxAttempts),
			zap.Error(err))

		if attempt < g.maxAttempts && g.backoff > 0 {
			select {
			case <-time.After(time.Duration(attempt) * g.backoff):
			case <-ctx.Done():
				return zero, apperr.ProviderUnavailable(ctx.Err())
			}
		}
	}
	return zero, err
}

type outcome[T any] struct {
	val T
	err error
}

// guarded runs fn with a deadline. fn runs on its own goroutine so an SDK that ignores ctx cannot
// hold the caller past the deadline; its late result is discarded.
func guarded[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome[T]{val: v, err: err}
	}()

	var res outcome[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	res.err = classify(res.err)
	g.metrics.ProviderCall(g.next.Name(), op, time.Since(start).Seconds(), res.err)
	if res.err != nil {
		var zero T
		return zero, res.err
	}
	return res.val, nil
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.ProviderUnavailable(err)
}
