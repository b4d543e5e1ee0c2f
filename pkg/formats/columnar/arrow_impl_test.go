package columnar

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coldata "github.com/ajitpratap0/structenc/pkg/columnar"
	"github.com/ajitpratap0/structenc/pkg/encerrors"
	"github.com/ajitpratap0/structenc/pkg/record"
)

func buildStruct(t *testing.T, mem memory.Allocator) *array.Struct {
	t.Helper()
	sb := record.New([]record.Slot{
		{Descriptor: record.Descriptor{Name: "method", Nullable: true},
			Builder: coldata.NewStringBuilder(mem, coldata.Options{Dictionary: &coldata.DictionaryOptions{}})},
		{Descriptor: record.Descriptor{Name: "status", Nullable: false},
			Builder: coldata.NewUInt16Builder(mem, coldata.Options{})},
		{Descriptor: record.Descriptor{Name: "span_id", Nullable: true},
			Builder: coldata.NewFixedSizeBinaryBuilder(mem, 8, coldata.Options{})},
	})

	methods, _ := record.FieldBuilder[*coldata.StringBuilder](sb, 0)
	status, _ := record.FieldBuilder[*coldata.UInt16Builder](sb, 1)
	spans, _ := record.CheckedFieldBuilder[*coldata.FixedSizeBinaryBuilder](sb, 2)
	for i, m := range []string{"GET", "POST", "GET"} {
		methods.Append(m)
		status.Append(uint16(200 + i))
		require.NoError(t, spans.Append([]byte{byte(i), 0, 0, 0, 0, 0, 0, 1}))
	}

	arr, err := sb.Finish()
	require.NoError(t, err)
	return arr
}

func TestEncodeDecodeStream(t *testing.T) {
	for _, codec := range []BodyCompression{BodyNone, BodyZstd, BodyLZ4} {
		t.Run(string(codec), func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			arr := buildStruct(t, mem)
			defer arr.Release()

			data, err := Encode(arr, &WriterConfig{
				Format:      ArrowStream,
				Compression: codec,
				Metadata:    map[string]string{MetaPipeline: "spans", MetaBatch: "7"},
				Allocator:   mem,
			})
			require.NoError(t, err)
			require.NotEmpty(t, data)

			p, err := Decode(data, &ReaderConfig{Format: ArrowStream, Allocator: mem})
			require.NoError(t, err)
			defer p.Release()

			assert.Equal(t, 1, p.Batches)
			assert.Equal(t, 3, p.Rows())
			assert.True(t, array.Equal(arr, p.Struct), "decoded struct differs")

			v, ok := p.Metadata(MetaPipeline)
			require.True(t, ok)
			assert.Equal(t, "spans", v)
			_, ok = p.Metadata("missing")
			assert.False(t, ok)

			_, isDict := p.Schema.Field(0).Type.(*arrow.DictionaryType)
			assert.True(t, isDict)
			assert.False(t, p.Schema.Field(1).Nullable)
		})
	}
}

func TestEncodeDecodeFile(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	arr := buildStruct(t, mem)
	defer arr.Release()

	data, err := Encode(arr, &WriterConfig{Format: ArrowFile, Allocator: mem})
	require.NoError(t, err)

	p, err := Decode(data, &ReaderConfig{Format: ArrowFile, Allocator: mem})
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, 3, p.Rows())
	assert.True(t, array.Equal(arr, p.Struct))

	lines := p.Describe()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "status: uint16 nullable=false nulls=0")
}

func TestEncodeRejectsEmptyStruct(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	sb := record.New([]record.Slot{
		{Descriptor: record.Descriptor{Name: "unused", Nullable: true}, Builder: coldata.NewStringBuilder(mem, coldata.Options{})},
	})
	arr, err := sb.Finish()
	require.NoError(t, err)
	defer arr.Release()

	_, err = Encode(arr, nil)
	assert.ErrorIs(t, err, ErrEmptyStruct)
}

func TestDecodeFileChecksMagic(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	arr := buildStruct(t, mem)
	defer arr.Release()

	data, err := Encode(arr, &WriterConfig{Format: ArrowFile, Allocator: mem})
	require.NoError(t, err)

	_, err = Decode(data[:len(data)-3], &ReaderConfig{Format: ArrowFile, Allocator: mem})
	require.Error(t, err)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeData))

	// a stream payload is not a file
	stream, err := Encode(arr, &WriterConfig{Format: ArrowStream, Allocator: mem})
	require.NoError(t, err)
	_, err = Decode(stream, &ReaderConfig{Format: ArrowFile, Allocator: mem})
	assert.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte("not arrow"), nil)
	require.Error(t, err)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeData))
}

func TestParseBodyCompression(t *testing.T) {
	c, err := ParseBodyCompression("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, BodyZstd, c)
	c, err = ParseBodyCompression("")
	require.NoError(t, err)
	assert.Equal(t, BodyNone, c)
	_, err = ParseBodyCompression("gzip")
	assert.Error(t, err)
}

func TestFormatInfo(t *testing.T) {
	assert.Equal(t, ".arrows", GetFormatInfo(ArrowStream).FileExtension)
	assert.Equal(t, ".arrow", GetFormatInfo(ArrowFile).FileExtension)
	assert.Nil(t, GetFormatInfo("parquet"))

	assert.Equal(t, ArrowStream, FormatFromPath("out/spans-000001.arrows.zst"))
	assert.Equal(t, ArrowFile, FormatFromPath("out/spans.arrow"))
}
