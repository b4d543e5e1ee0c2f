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

func TestCollectorCounters(t *testing.T) {
	c := NewCollector("metrics-test")
	assert.Equal(t, "metrics-test", c.Pipeline())

	c.RowsEncoded(10)
	c.RowsEncoded(5)
	c.BatchWritten("file", 128)
	c.BatchWritten("file", 64)
	c.BatchSkipped()
	c.BatchFailed()
	c.Rejected("trace_id")
	c.Elided("status")
	c.Elided("status")

	assert.Equal(t, 15.0, testutil.ToFloat64(RowsEncoded.WithLabelValues("metrics-test")))
	assert.Equal(t, 2.0, testutil.ToFloat64(Batches.WithLabelValues("metrics-test", OutcomeWritten)))
	assert.Equal(t, 1.0, testutil.ToFloat64(Batches.WithLabelValues("metrics-test", OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(Batches.WithLabelValues("metrics-test", OutcomeFailed)))
	assert.Equal(t, 192.0, testutil.ToFloat64(BytesWritten.WithLabelValues("metrics-test", "file")))
	assert.Equal(t, 1.0, testutil.ToFloat64(RejectedValues.WithLabelValues("metrics-test", "trace_id")))
	assert.Equal(t, 2.0, testutil.ToFloat64(ElidedFields.WithLabelValues("metrics-test", "status")))
}

func TestTrackInFlight(t *testing.T) {
	c := NewCollector("inflight-test")
	done := c.TrackInFlight()
	assert.Equal(t, 1.0, testutil.ToFloat64(InFlightBatches.WithLabelValues("inflight-test")))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(InFlightBatches.WithLabelValues("inflight-test")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("handler-test")
	c.ObserveStage("encode", 3*time.Millisecond)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `structenc_stage_latency_seconds_count{pipeline="handler-test",stage="encode"} 1`)
}

func TestTimer(t *testing.T) {
	timer := NewTimer("op")
	assert.Equal(t, "op", timer.Name())
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)
}
