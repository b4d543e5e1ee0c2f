package encerrors_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

func Example() {
	err := encerrors.New(encerrors.ErrorTypeConfig, "batch size must be positive").
		WithDetail("batch_size", 0)

	fmt.Println(err.Error())

	// Output:
	// config: batch size must be positive
}

func ExampleWrap() {
	err := encerrors.Wrap(io.ErrUnexpectedEOF, encerrors.ErrorTypeData, "truncated input line").
		WithDetail("line", 42)

	if encerrors.IsType(err, encerrors.ErrorTypeData) {
		fmt.Println("data error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("caused by unexpected EOF")
	}

	// Output:
	// data error
	// caused by unexpected EOF
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, encerrors.Wrap(nil, encerrors.ErrorTypeInternal, "nothing"))
}

func TestWrapKeepsStack(t *testing.T) {
	inner := encerrors.New(encerrors.ErrorTypeValidation, "bad width")
	outer := encerrors.Wrap(inner, encerrors.ErrorTypeEncoding, "append failed")

	assert.Equal(t, inner.Stack, outer.Stack)
	assert.Equal(t, "encoding: append failed: validation: bad width", outer.Error())
}

func TestIsTypeWalksChain(t *testing.T) {
	inner := encerrors.New(encerrors.ErrorTypeValidation, "bad width")
	outer := encerrors.Wrap(fmt.Errorf("row 3: %w", inner), encerrors.ErrorTypeEncoding, "batch failed")

	assert.True(t, encerrors.IsType(outer, encerrors.ErrorTypeEncoding))
	assert.True(t, encerrors.IsType(outer, encerrors.ErrorTypeValidation))
	assert.False(t, encerrors.IsType(outer, encerrors.ErrorTypeSink))
	assert.False(t, encerrors.IsType(io.EOF, encerrors.ErrorTypeSink))
}

func TestGetDetails(t *testing.T) {
	err := encerrors.New(encerrors.ErrorTypeValidation, "rejected").
		WithDetail("expected_width", 4).
		WithDetail("actual_width", 3)

	details := encerrors.GetDetails(fmt.Errorf("wrapped: %w", err))
	assert.Equal(t, 4, details["expected_width"])
	assert.Equal(t, 3, details["actual_width"])
	assert.Nil(t, encerrors.GetDetails(io.EOF))
}
