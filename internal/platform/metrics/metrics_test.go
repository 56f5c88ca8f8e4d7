package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.ObserveLogin("password", "success")
	m.ObserveLogin("password", "success")
	m.ObserveLogin("otp", "failure")
	m.ObserveChatQuery("answered")
	m.ObserveUpload("image", "success", 2048)
	m.ObserveUpload("image", "rejected", 999)
	m.ObserveEmail(true)
	m.ObserveEmail(false)
	m.ObserveHTTPRequest("GET", "/api/news", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("password", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("otp", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatQueries.WithLabelValues("answered")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.UploadBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmailsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmailsFailed))

	count, err := testutil.GatherAndCount(reg, "intranet_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
