package pipeline

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
	"github.com/ajitpratap0/structenc/pkg/schema"
)

func TestAppendValue(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s, err := schema.Compile(schema.Spec{Fields: []schema.FieldSpec{
		{Name: "s", Type: "string", Nullable: true},
		{Name: "b", Type: "binary", Nullable: true},
		{Name: "u8", Type: "uint8", Nullable: true},
		{Name: "u64", Type: "uint64", Nullable: true},
		{Name: "i32", Type: "int32", Nullable: true},
		{Name: "i64", Type: "int64", Nullable: true},
		{Name: "f", Type: "float64", Nullable: true},
		{Name: "ok", Type: "bool", Nullable: true},
		{Name: "id", Type: "fixed_size_binary", ByteWidth: 2, Nullable: true},
	}})
	require.NoError(t, err)

	sb, err := s.NewStructBuilder(mem)
	require.NoError(t, err)

	row := Row{
		"s":   "hello",
		"b":   "aGk=",
		"u8":  json.Number("255"),
		"u64": json.Number("18446744073709551615"),
		"i32": json.Number("-7"),
		"i64": json.Number("-9223372036854775808"),
		"f":   json.Number("1.5e3"),
		"ok":  true,
		"id":  "beef",
	}
	for i, f := range s.Fields() {
		require.NoError(t, appendValue(sb, i, f, row[f.Name], true), f.Name)
	}

	arr, err := sb.Finish()
	require.NoError(t, err)
	defer arr.Release()

	require.Equal(t, 9, arr.NumField())
	assert.Equal(t, "hello", arr.Field(0).ValueStr(0))
	assert.Equal(t, "255", arr.Field(2).ValueStr(0))
	assert.Equal(t, "18446744073709551615", arr.Field(3).ValueStr(0))
	assert.Equal(t, "-7", arr.Field(4).ValueStr(0))
	assert.Equal(t, "1500", arr.Field(6).ValueStr(0))
	assert.Equal(t, "true", arr.Field(7).ValueStr(0))
}

func TestAppendValueRejections(t *testing.T) {
	tests := []struct {
		typ   string
		width int
		value interface{}
	}{
		{"string", 0, json.Number("1")},
		{"binary", 0, "not base64!"},
		{"uint8", 0, json.Number("256")},
		{"uint16", 0, json.Number("-1")},
		{"uint32", 0, json.Number("1.5")},
		{"int32", 0, json.Number("2147483648")},
		{"int64", 0, "12"},
		{"float64", 0, true},
		{"bool", 0, "true"},
		{"fixed_size_binary", 4, "abc"},
		{"fixed_size_binary", 4, "AAAAAAA="},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			s, err := schema.Compile(schema.Spec{Fields: []schema.FieldSpec{
				{Name: "v", Type: tt.typ, ByteWidth: tt.width, Nullable: true},
			}})
			require.NoError(t, err)
			sb, err := s.NewStructBuilder(mem)
			require.NoError(t, err)

			err = appendValue(sb, 0, s.Field(0), tt.value, true)
			require.Error(t, err)
			assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeValidation), "%v", err)

			arr, err := sb.Finish()
			require.NoError(t, err)
			defer arr.Release()
			assert.Equal(t, 0, arr.NumField(), "a rejected value leaves only a null behind")
		})
	}
}

func TestAppendValueNonNullable(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	s, err := schema.Compile(schema.Spec{Fields: []schema.FieldSpec{
		{Name: "status", Type: "uint16", Nullable: false},
		{Name: "id", Type: "fixed_size_binary", ByteWidth: 2, Nullable: false},
	}})
	require.NoError(t, err)
	sb, err := s.NewStructBuilder(mem)
	require.NoError(t, err)

	err = appendValue(sb, 0, s.Field(0), nil, true)
	assert.ErrorIs(t, err, ErrNullNotAllowed)
	assert.True(t, encerrors.IsType(err, encerrors.ErrorTypeValidation))

	err = appendValue(sb, 0, s.Field(0), "oops", true)
	assert.Error(t, err)
	err = appendValue(sb, 1, s.Field(1), "abc", true)
	assert.Error(t, err)

	arr, err := sb.Finish()
	require.NoError(t, err)
	defer arr.Release()
	assert.Equal(t, 0, arr.NumField(), "no null reaches a non-nullable field")
}
