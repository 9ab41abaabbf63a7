package embedding

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordFallbackIncrementsCounter(t *testing.T) {
	m := NewMetrics()
	m.recordFallback(TargetGPU, TargetCPU)
	m.recordFallback(TargetGPU, TargetCPU)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.routingFallback.WithLabelValues("gpu", "cpu")))
}

func TestMetricsRecordTargetErrorIncrementsCounter(t *testing.T) {
	m := NewMetrics()
	m.recordTargetError(TargetCPU)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.routingTargetErrors.WithLabelValues("cpu")))
}

func TestMetricsRecordLatencyObservesHistogram(t *testing.T) {
	m := NewMetrics()
	m.recordLatency(TargetGPU, 5*time.Millisecond)
	count := testutil.CollectAndCount(m.latencyByTarget)
	assert.Equal(t, 1, count)
}

func TestMetricsNilReceiverIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.recordFallback(TargetGPU, TargetCPU)
		m.recordTargetError(TargetCPU)
		m.recordLatency(TargetCPU, time.Millisecond)
		_ = m.Registry()
	})
}
