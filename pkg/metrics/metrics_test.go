package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/pkg/apperr"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(apperr.NotFound(apperr.MsgOrderNotFound)))
	assert.Equal(t, "internal", Outcome(errors.New("boom")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.CartMutation("add", nil)
	m.CartMutation("add", nil)
	m.OrderTransition("mark_paid", apperr.AlreadyPaid())
	m.HTTPRequest(http.MethodGet, "/health", http.StatusOK, 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cartMutations.WithLabelValues("add", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderTransitions.WithLabelValues("mark_paid", Outcome(apperr.AlreadyPaid()))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/health", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "storefront_cart_mutations_total"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CartMutation("add", nil)
		m.OrderTransition("create", nil)
		m.ProviderCall("paypal", "capture", 1, nil)
		m.HTTPRequest(http.MethodGet, "/", http.StatusOK, 0)
	})
	assert.Nil(t, m.Registry())
}
