package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Number is the set of Go types backing the numeric kinds.
type Number interface {
	uint8 | uint16 | uint32 | uint64 | int32 | int64 | float64
}

// PrimitiveBuilder builds a fixed width numeric column. Use the aliases
// below and their constructors rather than instantiating it directly.
type PrimitiveBuilder[T Number] struct {
	adaptive[T]
}

type (
	UInt8Builder   = PrimitiveBuilder[uint8]
	UInt16Builder  = PrimitiveBuilder[uint16]
	UInt32Builder  = PrimitiveBuilder[uint32]
	UInt64Builder  = PrimitiveBuilder[uint64]
	Int32Builder   = PrimitiveBuilder[int32]
	Int64Builder   = PrimitiveBuilder[int64]
	Float64Builder = PrimitiveBuilder[float64]
)

func NewUInt8Builder(mem memory.Allocator, opts Options) *UInt8Builder {
	return newPrimitive[uint8](mem, KindUInt8, arrow.PrimitiveTypes.Uint8, opts)
}

func NewUInt16Builder(mem memory.Allocator, opts Options) *UInt16Builder {
	return newPrimitive[uint16](mem, KindUInt16, arrow.PrimitiveTypes.Uint16, opts)
}

func NewUInt32Builder(mem memory.Allocator, opts Options) *UInt32Builder {
	return newPrimitive[uint32](mem, KindUInt32, arrow.PrimitiveTypes.Uint32, opts)
}

func NewUInt64Builder(mem memory.Allocator, opts Options) *UInt64Builder {
	return newPrimitive[uint64](mem, KindUInt64, arrow.PrimitiveTypes.Uint64, opts)
}

func NewInt32Builder(mem memory.Allocator, opts Options) *Int32Builder {
	return newPrimitive[int32](mem, KindInt32, arrow.PrimitiveTypes.Int32, opts)
}

func NewInt64Builder(mem memory.Allocator, opts Options) *Int64Builder {
	return newPrimitive[int64](mem, KindInt64, arrow.PrimitiveTypes.Int64, opts)
}

func NewFloat64Builder(mem memory.Allocator, opts Options) *Float64Builder {
	return newPrimitive[float64](mem, KindFloat64, arrow.PrimitiveTypes.Float64, opts)
}

func newPrimitive[T Number](mem memory.Allocator, kind Kind, dt arrow.DataType, opts Options) *PrimitiveBuilder[T] {
	return &PrimitiveBuilder[T]{
		adaptive: newAdaptive(mem, kind, opts,
			func(mem memory.Allocator) valueBuilder[T] {
				return array.NewBuilder(mem, dt).(valueBuilder[T])
			},
			func(v T) bool { return v == 0 }),
	}
}

// Append appends v.
func (b *PrimitiveBuilder[T]) Append(v T) {
	b.append(v)
}

// Finish implements Builder.
func (b *PrimitiveBuilder[T]) Finish() (arrow.Array, bool) {
	arr := b.finish()
	return arr, arr != nil
}

func (b *PrimitiveBuilder[T]) appendCapability() {}

// BooleanBuilder builds a bit-packed boolean column.
type BooleanBuilder struct {
	adaptive[bool]
}

func NewBooleanBuilder(mem memory.Allocator, opts Options) *BooleanBuilder {
	return &BooleanBuilder{
		adaptive: newAdaptive(mem, KindBoolean, opts,
			func(mem memory.Allocator) valueBuilder[bool] { return array.NewBooleanBuilder(mem) },
			func(v bool) bool { return !v }),
	}
}

// Append appends v.
func (b *BooleanBuilder) Append(v bool) {
	b.append(v)
}

// Finish implements Builder.
func (b *BooleanBuilder) Finish() (arrow.Array, bool) {
	arr := b.finish()
	return arr, arr != nil
}

func (b *BooleanBuilder) appendCapability() {}
