package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

func collect(t *testing.T, input string, size int) ([]batch, error) {
	t.Helper()
	out := make(chan batch, 16)
	err := readBatches(context.Background(), strings.NewReader(input), size, out)
	var got []batch
	for b := range out {
		got = append(got, b)
	}
	return got, err
}

func TestReadBatches(t *testing.T) {
	got, err := collect(t, `{"a":1} {"a":2}
{"a":3}
null
{"a":"x"}`, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(0), got[0].seq)
	assert.Equal(t, int64(2), got[1].firstRow)
	assert.Equal(t, int64(2), got[2].seq)
	assert.Equal(t, int64(4), got[2].firstRow)
	require.Len(t, got[2].rows, 1)

	assert.Equal(t, json.Number("1"), got[0].rows[0]["a"])
	assert.Equal(t, Row{}, got[1].rows[1])
}

func TestReadBatchesEmptyInput(t *testing.T) {
	got, err := collect(t, "\n  \n", 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadBatchesMalformedRow(t *testing.T) {
	got, err := collect(t, `{"a":1}`+"\n"+`[1,2]`, 10)
	require.Error(t, err)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeData))
	assert.Equal(t, int64(1), encerrors.GetDetails(err)["row"])
	assert.Empty(t, got, "a partial batch is not flushed after a decode error")
}

func TestReadBatchesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan batch)
	err := readBatches(ctx, strings.NewReader(`{"a":1}`), 1, out)
	assert.ErrorIs(t, err, context.Canceled)
	_, open := <-out
	assert.False(t, open)
}
