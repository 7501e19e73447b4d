package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleReportsPlausibleValues(t *testing.T) {
	m := NewSystemMonitor()
	stats, err := m.Sample(context.Background())
	if err != nil {
		t.Skipf("host statistics unavailable: %v", err)
	}
	assert.GreaterOrEqual(t, stats.RAMPercent, 0.0)
	assert.LessOrEqual(t, stats.RAMPercent, 100.0)
	assert.GreaterOrEqual(t, stats.CPUPercent, 0.0)
}

func TestSampleCancelledContext(t *testing.T) {
	m := NewSystemMonitor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// gopsutil may or may not honour an already-cancelled context depending
	// on the platform; it must not panic either way.
	_, err := m.Sample(ctx)
	if err != nil {
		require.ErrorContains(t, err, "stats")
	}
}
