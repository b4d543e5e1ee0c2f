package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

// Row is one decoded input object. Numbers are kept as json.Number so
// integer fields can be range checked without float rounding.
type Row map[string]interface{}

type batch struct {
	seq      int64
	firstRow int64
	rows     []Row
}

// readBatches decodes a stream of JSON objects from r, separated by
// whitespace or newlines, and sends them to out in batches of size rows.
// It closes out when r is exhausted.
func readBatches(ctx context.Context, r io.Reader, size int, out chan<- batch) error {
	defer close(out)

	dec := json.NewDecoder(r)
	dec.UseNumber()

	var (
		seq   int64
		total int64
		cur   = batch{rows: make([]Row, 0, size)}
	)
	send := func() error {
		select {
		case out <- cur:
		case <-ctx.Done():
			return ctx.Err()
		}
		seq++
		cur = batch{seq: seq, firstRow: total, rows: make([]Row, 0, size)}
		return nil
	}

	for {
		var row Row
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return encerrors.Wrap(err, encerrors.ErrorTypeData, "malformed input row").
				WithDetail("row", total)
		}
		if row == nil {
			// a bare null carries no fields
			row = Row{}
		}
		cur.rows = append(cur.rows, row)
		total++

		if len(cur.rows) == size {
			if err := send(); err != nil {
				return err
			}
		}
	}

	if len(cur.rows) > 0 {
		return send()
	}
	return nil
}
