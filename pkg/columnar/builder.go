package columnar

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/structenc/pkg/encerrors"
)

var (
	// ErrInvalidWidth is the cause of every fixed size binary rejection.
	ErrInvalidWidth = errors.New("value width does not match the fixed byte width")
	// ErrUnknownKind is returned for kind names or values outside the closed set.
	ErrUnknownKind = errors.New("unknown column kind")
	// ErrDictionaryUnsupported is returned when dictionary options are given
	// for a kind that cannot be dictionary encoded.
	ErrDictionaryUnsupported = errors.New("kind does not support dictionary encoding")
)

// Builder is implemented by every column builder in this package and only by
// them.
type Builder interface {
	// Kind returns the encoding kind. It never changes.
	Kind() Kind
	// Len returns the number of values and nulls appended so far.
	Len() int
	// AppendNull appends a null. Builders that have not seen a value yet
	// only count it.
	AppendNull()
	// Finish consumes the builder. It returns false when the builder has no
	// data to contribute; otherwise the caller owns the returned array.
	Finish() (arrow.Array, bool)
	// Release frees an unfinished builder. It is a no-op after Finish.
	Release()

	sealed()
}

// Appender is a builder with DirectAppend capability. The concrete type adds
// an Append method for its Go value type.
type Appender interface {
	Builder
	appendCapability()
}

// CheckedAppender is a builder with CheckedAppend capability. The concrete
// type adds an Append method that returns an error on rejection.
type CheckedAppender interface {
	Builder
	checkedAppendCapability()
}

var (
	_ Appender        = (*StringBuilder)(nil)
	_ Appender        = (*BinaryBuilder)(nil)
	_ Appender        = (*UInt8Builder)(nil)
	_ Appender        = (*UInt16Builder)(nil)
	_ Appender        = (*UInt32Builder)(nil)
	_ Appender        = (*UInt64Builder)(nil)
	_ Appender        = (*Int32Builder)(nil)
	_ Appender        = (*Int64Builder)(nil)
	_ Appender        = (*Float64Builder)(nil)
	_ Appender        = (*BooleanBuilder)(nil)
	_ CheckedAppender = (*FixedSizeBinaryBuilder)(nil)
)

// New creates a builder of the given kind. byteWidth is only used by
// KindFixedSizeBinary and must be positive there.
func New(mem memory.Allocator, kind Kind, byteWidth int, opts Options) (Builder, error) {
	if opts.Dictionary != nil && !kind.SupportsDictionary() {
		return nil, encerrors.Wrap(ErrDictionaryUnsupported, encerrors.ErrorTypeConfig, "invalid column options").
			WithDetail("kind", kind.String())
	}

	switch kind {
	case KindBinary:
		return NewBinaryBuilder(mem, opts), nil
	case KindFixedSizeBinary:
		if byteWidth <= 0 {
			return nil, encerrors.Newf(encerrors.ErrorTypeConfig, "fixed size binary needs a positive byte width, got %d", byteWidth)
		}
		return NewFixedSizeBinaryBuilder(mem, byteWidth, opts), nil
	case KindString:
		return NewStringBuilder(mem, opts), nil
	case KindUInt8:
		return NewUInt8Builder(mem, opts), nil
	case KindUInt16:
		return NewUInt16Builder(mem, opts), nil
	case KindUInt32:
		return NewUInt32Builder(mem, opts), nil
	case KindUInt64:
		return NewUInt64Builder(mem, opts), nil
	case KindInt32:
		return NewInt32Builder(mem, opts), nil
	case KindInt64:
		return NewInt64Builder(mem, opts), nil
	case KindFloat64:
		return NewFloat64Builder(mem, opts), nil
	case KindBoolean:
		return NewBooleanBuilder(mem, opts), nil
	default:
		return nil, encerrors.Wrap(ErrUnknownKind, encerrors.ErrorTypeConfig, "cannot create column builder").
			WithDetail("kind", kind.String())
	}
}

// valueBuilder is the subset of an arrow builder the adaptive core drives.
type valueBuilder[T any] interface {
	array.Builder
	Append(T)
}

// adaptive holds the state shared by every builder: lazy allocation of the
// arrow builder, pending leading nulls and the default-value tracking used
// by Options.DefaultValuesOptional.
type adaptive[T any] struct {
	mem       memory.Allocator
	kind      Kind
	opts      Options
	newInner  func(memory.Allocator) valueBuilder[T]
	isDefault func(T) bool

	inner      valueBuilder[T]
	nulls      int
	length     int
	nonDefault bool
	finished   bool
}

func newAdaptive[T any](mem memory.Allocator, kind Kind, opts Options, newInner func(memory.Allocator) valueBuilder[T], isDefault func(T) bool) adaptive[T] {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return adaptive[T]{
		mem:       mem,
		kind:      kind,
		opts:      opts,
		newInner:  newInner,
		isDefault: isDefault,
	}
}

func (a *adaptive[T]) Kind() Kind { return a.kind }

func (a *adaptive[T]) Len() int { return a.length }

func (a *adaptive[T]) AppendNull() {
	a.checkOpen()
	a.length++
	if a.inner == nil {
		a.nulls++
		return
	}
	a.inner.AppendNull()
}

func (a *adaptive[T]) Release() {
	a.finished = true
	a.releaseInner()
}

func (a *adaptive[T]) sealed() {}

func (a *adaptive[T]) append(v T) {
	a.checkOpen()
	a.init()
	a.inner.Append(v)
	a.length++
	if !a.nonDefault && !a.isDefault(v) {
		a.nonDefault = true
	}
}

func (a *adaptive[T]) init() {
	if a.inner != nil {
		return
	}
	a.inner = a.newInner(a.mem)
	if a.nulls > 0 {
		a.inner.AppendNulls(a.nulls)
		a.nulls = 0
	}
}

// finish returns nil when the builder has nothing to contribute.
func (a *adaptive[T]) finish() arrow.Array {
	a.checkOpen()
	a.finished = true
	defer a.releaseInner()

	if a.opts.DefaultValuesOptional && !a.nonDefault {
		return nil
	}
	if a.inner == nil {
		if !a.opts.AlwaysMaterialize {
			return nil
		}
		a.init()
	}
	return a.inner.NewArray()
}

func (a *adaptive[T]) releaseInner() {
	if a.inner != nil {
		a.inner.Release()
		a.inner = nil
	}
}

func (a *adaptive[T]) checkOpen() {
	if a.finished {
		panic(fmt.Sprintf("columnar: %s builder used after Finish or Release", a.kind))
	}
}
