package performance

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/structenc/pkg/metrics"
)

func TestResourceMonitorUsage(t *testing.T) {
	rm, err := NewResourceMonitor()
	require.NoError(t, err)

	u := rm.Usage()
	assert.Positive(t, u.GoroutineCount)
	assert.GreaterOrEqual(t, u.CPUPercent, 0.0)
	assert.Equal(t, u.MemoryRSS, rm.PeakRSS())
}

func TestResourceMonitorSample(t *testing.T) {
	rm, err := NewResourceMonitor()
	require.NoError(t, err)

	u := rm.Sample()
	assert.Equal(t, float64(u.GoroutineCount),
		testutil.ToFloat64(metrics.ProcessResources.WithLabelValues("goroutines")))
}

func TestResourceMonitorRunStopsWithContext(t *testing.T) {
	rm, err := NewResourceMonitor()
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rm.Run(ctx, 5*time.Millisecond, zap.New(core))
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.Equal(t, 1, logs.FilterMessage("resource usage").Len())
}
