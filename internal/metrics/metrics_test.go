package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestAttemptsByModeAndOutcome(t *testing.T) {
	c := AttemptsTotal.WithLabelValues("software", "retryable")
	before := counterValue(t, c)
	c.Inc()
	assert.Equal(t, before+1, counterValue(t, c))
}

func TestSpeedGauge(t *testing.T) {
	SpeedMultiplier.Set(1.75)
	var m dto.Metric
	require.NoError(t, SpeedMultiplier.Write(&m))
	assert.InDelta(t, 1.75, m.GetGauge().GetValue(), 1e-9)
}

func TestManifestReadyHistogram(t *testing.T) {
	ManifestReadySeconds.WithLabelValues("hardware").Observe(3)
	var m dto.Metric
	obs, err := ManifestReadySeconds.GetMetricWithLabelValues("hardware")
	require.NoError(t, err)
	require.NoError(t, obs.(interface{ Write(*dto.Metric) error }).Write(&m))
	assert.GreaterOrEqual(t, m.GetHistogram().GetSampleCount(), uint64(1))
}
