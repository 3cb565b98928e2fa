package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.OrderPlaced("wallet")
	m.OrderPlaced("wallet")
	m.OrderCancelled(true)
	m.WalletMutation("debit", "success")
	m.WebhookEvent("charge.success", "processed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersPlaced.WithLabelValues("wallet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCancelled.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WalletMutations.WithLabelValues("debit", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookEvents.WithLabelValues("charge.success", "processed")))
}

func TestObserveRequest_AndHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/v1/orders", "POST", 201, 12*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/v1/orders", "POST", "201")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "shipa_http_requests_total")
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics
	m.OrderPlaced("cash")
	m.OrderCancelled(false)
	m.WalletMutation("credit", "success")
	m.WebhookEvent("charge.success", "ignored")
	m.ObserveRequest("/", "GET", 200, time.Millisecond)
	assert.NotNil(t, m.Handler())
}
