package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

// StringBuilder builds a utf8 column, dictionary encoded when
// Options.Dictionary is set and the cardinality allows it.
type StringBuilder struct {
	adaptive[string]
	dict *cardinality
}

// NewStringBuilder returns an empty string builder.
func NewStringBuilder(mem memory.Allocator, opts Options) *StringBuilder {
	return &StringBuilder{
		adaptive: newAdaptive(mem, KindString, opts,
			func(mem memory.Allocator) valueBuilder[string] { return array.NewStringBuilder(mem) },
			func(v string) bool { return v == "" }),
		dict: newCardinality(opts.Dictionary),
	}
}

// Append appends v.
func (b *StringBuilder) Append(v string) {
	b.append(v)
	b.dict.observe(v)
}

// Finish implements Builder.
func (b *StringBuilder) Finish() (arrow.Array, bool) {
	arr := b.finish()
	if arr == nil {
		return nil, false
	}
	return b.dict.encode(b.mem, arr), true
}

func (b *StringBuilder) appendCapability() {}

// BinaryBuilder builds a variable length binary column, dictionary encoded
// when Options.Dictionary is set and the cardinality allows it.
type BinaryBuilder struct {
	adaptive[[]byte]
	dict *cardinality
}

// NewBinaryBuilder returns an empty binary builder.
func NewBinaryBuilder(mem memory.Allocator, opts Options) *BinaryBuilder {
	return &BinaryBuilder{
		adaptive: newAdaptive(mem, KindBinary, opts,
			func(mem memory.Allocator) valueBuilder[[]byte] {
				return array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
			},
			func(v []byte) bool { return len(v) == 0 }),
		dict: newCardinality(opts.Dictionary),
	}
}

// Append appends v. The bytes are copied.
func (b *BinaryBuilder) Append(v []byte) {
	b.append(v)
	b.dict.observe(string(v))
}

// Finish implements Builder.
func (b *BinaryBuilder) Finish() (arrow.Array, bool) {
	arr := b.finish()
	if arr == nil {
		return nil, false
	}
	return b.dict.encode(b.mem, arr), true
}

func (b *BinaryBuilder) appendCapability() {}

// FixedSizeBinaryBuilder builds a column of byte strings that all have the
// same width. It is the only checked builder: values of any other width are
// rejected.
type FixedSizeBinaryBuilder struct {
	adaptive[[]byte]
	width int
	dict  *cardinality
}

// NewFixedSizeBinaryBuilder returns an empty builder for width-byte values.
// It panics if width is not positive.
func NewFixedSizeBinaryBuilder(mem memory.Allocator, width int, opts Options) *FixedSizeBinaryBuilder {
	if width <= 0 {
		panic("columnar: fixed size binary width must be positive")
	}
	dt := &arrow.FixedSizeBinaryType{ByteWidth: width}
	return &FixedSizeBinaryBuilder{
		adaptive: newAdaptive(mem, KindFixedSizeBinary, opts,
			func(mem memory.Allocator) valueBuilder[[]byte] { return array.NewFixedSizeBinaryBuilder(mem, dt) },
			allZero),
		width: width,
		dict:  newCardinality(opts.Dictionary),
	}
}

// ByteWidth returns the width every appended value must have.
func (b *FixedSizeBinaryBuilder) ByteWidth() int { return b.width }

// Append appends v, or rejects it with an error wrapping ErrInvalidWidth if
// len(v) is not the builder's width. A rejected value leaves the builder
// unchanged.
func (b *FixedSizeBinaryBuilder) Append(v []byte) error {
	b.checkOpen()
	if len(v) != b.width {
		return encerrors.Wrap(ErrInvalidWidth, encerrors.ErrorTypeValidation, "fixed size binary value rejected").
			WithDetail("expected_width", b.width).
			WithDetail("actual_width", len(v))
	}
	b.append(v)
	b.dict.observe(string(v))
	return nil
}

// Finish implements Builder.
func (b *FixedSizeBinaryBuilder) Finish() (arrow.Array, bool) {
	arr := b.finish()
	if arr == nil {
		return nil, false
	}
	return b.dict.encode(b.mem, arr), true
}

func (b *FixedSizeBinaryBuilder) checkedAppendCapability() {}

func allZero(v []byte) bool {
	for _, c := range v {
		if c != 0 {
			return false
		}
	}
	return true
}
