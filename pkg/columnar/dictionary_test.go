package columnar

import (
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringDictionaryUint8(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := NewStringBuilder(mem, Options{Dictionary: &DictionaryOptions{}})
	for _, v := range []string{"GET", "POST", "GET", "GET"} {
		b.Append(v)
	}
	b.AppendNull()

	arr, ok := b.Finish()
	require.True(t, ok)
	defer arr.Release()

	dict, ok := arr.(*array.Dictionary)
	require.True(t, ok, "expected dictionary array, got %T", arr)
	dt := dict.DataType().(*arrow.DictionaryType)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Uint8, dt.IndexType))
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.String, dt.ValueType))
	assert.Equal(t, 5, dict.Len())
	assert.Equal(t, 2, dict.Dictionary().Len())
	assert.True(t, dict.IsNull(4))

	values := dict.Dictionary().(*array.String)
	assert.Equal(t, "GET", values.Value(dict.GetValueIndex(0)))
	assert.Equal(t, "POST", values.Value(dict.GetValueIndex(1)))
}

func TestDictionaryWidensToUint16(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := NewBinaryBuilder(mem, Options{Dictionary: &DictionaryOptions{}})
	for i := 0; i < 300; i++ {
		b.Append([]byte(fmt.Sprintf("v%03d", i)))
	}

	arr, ok := b.Finish()
	require.True(t, ok)
	defer arr.Release()

	dt, ok := arr.DataType().(*arrow.DictionaryType)
	require.True(t, ok)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Uint16, dt.IndexType))
	assert.True(t, arrow.TypeEqual(arrow.BinaryTypes.Binary, dt.ValueType))
	assert.Equal(t, 300, arr.Len())
}

func TestDictionaryIndexWidthBoundary(t *testing.T) {
	tests := []struct {
		distinct int
		index    arrow.DataType
	}{
		{255, arrow.PrimitiveTypes.Uint8},
		{256, arrow.PrimitiveTypes.Uint8},
		{257, arrow.PrimitiveTypes.Uint16},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.distinct), func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			b := NewStringBuilder(mem, Options{Dictionary: &DictionaryOptions{}})
			for i := 0; i < tt.distinct; i++ {
				b.Append(fmt.Sprintf("v%03d", i))
			}

			arr, ok := b.Finish()
			require.True(t, ok)
			defer arr.Release()

			dict, ok := arr.(*array.Dictionary)
			require.True(t, ok, "expected dictionary array, got %T", arr)
			dt := dict.DataType().(*arrow.DictionaryType)
			assert.True(t, arrow.TypeEqual(tt.index, dt.IndexType), "index type %s", dt.IndexType)
			assert.Equal(t, tt.distinct, dict.Dictionary().Len())
			last := tt.distinct - 1
			assert.Equal(t, fmt.Sprintf("v%03d", last), dict.ValueStr(last))
		})
	}
}

func TestDictionaryMinCardinality(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := NewStringBuilder(mem, Options{Dictionary: &DictionaryOptions{MinCardinality: 1000}})
	b.Append("only")

	arr, ok := b.Finish()
	require.True(t, ok)
	defer arr.Release()

	dt := arr.DataType().(*arrow.DictionaryType)
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Uint16, dt.IndexType))
}

func TestDictionaryFallsBackAboveMaxCardinality(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := NewStringBuilder(mem, Options{Dictionary: &DictionaryOptions{MaxCardinality: 3}})
	for _, v := range []string{"a", "b", "c", "d", "a"} {
		b.Append(v)
	}

	arr, ok := b.Finish()
	require.True(t, ok)
	defer arr.Release()

	strs, ok := arr.(*array.String)
	require.True(t, ok, "expected native string array, got %T", arr)
	assert.Equal(t, 5, strs.Len())
	assert.Equal(t, "d", strs.Value(3))
}

func TestFixedSizeBinaryDictionary(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := NewFixedSizeBinaryBuilder(mem, 2, Options{Dictionary: &DictionaryOptions{}})
	require.NoError(t, b.Append([]byte{1, 2}))
	b.AppendNull()
	require.NoError(t, b.Append([]byte{1, 2}))

	arr, ok := b.Finish()
	require.True(t, ok)
	defer arr.Release()

	dict := arr.(*array.Dictionary)
	assert.Equal(t, 3, dict.Len())
	assert.Equal(t, 1, dict.Dictionary().Len())
	assert.True(t, arrow.TypeEqual(&arrow.FixedSizeBinaryType{ByteWidth: 2}, dict.Dictionary().DataType()))
}
