package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	r.IncCounter("negotiation_accepted", map[string]string{"network": "solana-devnet"})
	r.IncCounter("negotiation_accepted", map[string]string{"network": "solana-devnet"})
	r.IncCounter("gateway_failure", nil)
	r.ObserveLatency("negotiate", 5*time.Millisecond, map[string]string{"network": "solana-devnet"})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.counters.WithLabelValues("negotiation_accepted", "solana-devnet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.counters.WithLabelValues("gateway_failure", "")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.histogram))
}

func TestPrometheusRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err)
}
