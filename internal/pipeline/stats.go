package pipeline

import (
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// Stats summarizes one Run.
type Stats struct {
	Rows           int64 `json:"rows"`
	BatchesWritten int64 `json:"batches_written"`
	BatchesSkipped int64 `json:"batches_skipped"`
	RejectedValues int64 `json:"rejected_values"`
	ElidedFields   int64 `json:"elided_fields"`
	BytesWritten   int64 `json:"bytes_written"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("rows", s.Rows)
	enc.AddInt64("batches_written", s.BatchesWritten)
	enc.AddInt64("batches_skipped", s.BatchesSkipped)
	enc.AddInt64("rejected_values", s.RejectedValues)
	enc.AddInt64("elided_fields", s.ElidedFields)
	enc.AddInt64("bytes_written", s.BytesWritten)
	return nil
}

type stats struct {
	rows     atomic.Int64
	written  atomic.Int64
	skipped  atomic.Int64
	rejected atomic.Int64
	elided   atomic.Int64
	bytes    atomic.Int64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Rows:           s.rows.Load(),
		BatchesWritten: s.written.Load(),
		BatchesSkipped: s.skipped.Load(),
		RejectedValues: s.rejected.Load(),
		ElidedFields:   s.elided.Load(),
		BytesWritten:   s.bytes.Load(),
	}
}
